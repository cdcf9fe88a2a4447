package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/panyam/fsl/config"
	"github.com/panyam/fsl/loader"
	"github.com/spf13/cobra"
)

var (
	fslFilePath string
	configPath  string
	requestArgs []string
	paramArgs   map[string]int64

	// LogLevel is shared with the slog handler installed by main.
	LogLevel = new(slog.LevelVar)

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fsl",
	Short: "FSL compiles func/schedule array pipelines",
	Long: `FSL (Func Schedule Language) lowers array pipeline definitions to an IR,
infers the region every pipeline must compute and resolves schedule references
for a backend compiler.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		if cfg.LogLevel != "" {
			level, _ := cfg.SlogLevel()
			LogLevel.Set(level)
		}
		if cfg.Path != "" {
			slog.Debug("loaded config", "path", cfg.Path)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("%s", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&fslFilePath, "file", "f", "", "Path to the FSL file (required by most commands)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Compile config (default: $FSL_CONFIG or ./fsl.yaml)")
	rootCmd.PersistentFlags().StringArrayVarP(&requestArgs, "request", "r", nil, "Region request pipeline=lo:hi[,lo:hi...], replaces outputs and config requests")
	rootCmd.PersistentFlags().StringToInt64VarP(&paramArgs, "param", "p", nil, "Param override name=value")
}

// AddCommand allows adding subcommands from other files.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// compileOptions merges the config with the command line. Command line
// params and requests win.
func compileOptions() (loader.CompileOptions, error) {
	c := *cfg
	if len(paramArgs) > 0 {
		c.Params = map[string]int64{}
		for k, v := range cfg.Params {
			c.Params[k] = v
		}
		for k, v := range paramArgs {
			c.Params[k] = v
		}
	}
	if len(requestArgs) > 0 {
		c.Requests = nil
		for _, arg := range requestArgs {
			req, err := config.ParseRequest(arg)
			if err != nil {
				return loader.CompileOptions{}, err
			}
			c.Requests = append(c.Requests, req)
		}
	}
	return loader.CompileOptions{
		Lower:    c.LowerOptions(),
		Bounds:   c.BoundsOptions(),
		Requests: c.BoundsRequests(),
	}, nil
}

func newLoader() *loader.Loader {
	return loader.NewLoader(nil, nil, cfg.MaxImportDepth)
}

// compileRoot compiles the file given with --file.
func compileRoot() (*loader.Unit, error) {
	if fslFilePath == "" {
		return nil, fmt.Errorf("FSL file path must be specified with -f or --file")
	}
	opts, err := compileOptions()
	if err != nil {
		return nil, err
	}
	return newLoader().Compile(fslFilePath, opts)
}
