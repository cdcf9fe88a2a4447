package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/panyam/fsl/loader"
	"github.com/spf13/cobra"
)

var maxErrors int

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Compiles FSL files and reports every failure",
	Long: `Runs the full compilation (lowering, bounds inference and schedule
resolution) over each file independently. Uses --file when no files are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		files := args
		if len(files) == 0 && fslFilePath != "" {
			files = []string{fslFilePath}
		}
		if len(files) == 0 {
			return fmt.Errorf("no files to validate, pass them as arguments or with --file")
		}
		opts, err := compileOptions()
		if err != nil {
			return err
		}

		errs := &loader.ErrorCollector{MaxErrors: maxErrors}
		if newLoader().Validate(errs, opts, files...) {
			fmt.Println(color.GreenString("%d file(s) validated", len(files)))
			return nil
		}
		for _, err := range errs.Errors {
			fmt.Fprintln(os.Stderr, color.RedString("%s", err))
		}
		for kind, n := range errs.CountByKind() {
			if kind == "" {
				kind = "other"
			}
			fmt.Fprintf(os.Stderr, "  %s: %d\n", kind, n)
		}
		return fmt.Errorf("%d of %d file(s) failed", len(errs.Errors), len(files))
	},
}

func init() {
	validateCmd.Flags().IntVar(&maxErrors, "max-errors", 0, "Stop after this many failing files (0 means no limit)")
	AddCommand(validateCmd)
}
