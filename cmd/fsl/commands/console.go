package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/panyam/fsl/console"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const historyFile = ".fsl_history"

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start an interactive FSL console",
	Long: `Start a REPL to load a file, change params and requests, and inspect
bounds and schedule references. Loads --file on start when given.

Example:
  fsl console -f examples/hist.fsl

Then in the REPL:
  fsl> set width 320
  fsl> request hist=0:63
  fsl> bounds
  fsl> resolve x hist`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := compileOptions()
		if err != nil {
			return err
		}
		session := console.NewSession(newLoader(), opts)
		if fslFilePath != "" {
			if err := session.Load(fslFilePath); err != nil {
				fmt.Fprintln(os.Stderr, color.RedString("%s", err))
			}
		}
		return runREPL(session)
	},
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}

func runREPL(session *console.Session) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		return complete(session, line)
	})

	histPath := historyPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	saveHistory := func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}
	defer saveHistory()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		saveHistory()
		ln.Close()
		os.Exit(130)
	}()

	fmt.Println("FSL console, type 'help' for commands, Ctrl+D to quit")
	for {
		line, err := ln.Prompt(prompt(session))
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		if line == "quit" || line == "exit" {
			return nil
		}
		if err := session.Execute(os.Stdout, line); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("%s", err))
		}
	}
}

func prompt(session *console.Session) string {
	if session.Path() == "" {
		return "fsl> "
	}
	return fmt.Sprintf("fsl[%s]> ", filepath.Base(session.Path()))
}

// complete offers command names first and pipeline names after them.
func complete(session *console.Session, line string) (out []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(line, " ")) {
		for _, c := range console.Commands() {
			if strings.HasPrefix(c, line) {
				out = append(out, c)
			}
		}
		return
	}
	prefix := ""
	if !strings.HasSuffix(line, " ") {
		prefix = fields[len(fields)-1]
		fields = fields[:len(fields)-1]
	}
	head := strings.Join(fields, " ") + " "
	for _, name := range session.Pipelines() {
		if strings.HasPrefix(name, prefix) {
			out = append(out, head+name)
		}
	}
	return
}

func init() {
	AddCommand(consoleCmd)
}
