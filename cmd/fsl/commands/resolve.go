package commands

import (
	"fmt"

	"github.com/panyam/fsl/ir"
	"github.com/panyam/fsl/loader"
	"github.com/spf13/cobra"
)

var resolveScope string

var resolveCmd = &cobra.Command{
	Use:   "resolve <reference>...",
	Short: "Resolves schedule references to (pipeline, stage, var)",
	Long: `Resolves explicit chains such as hist.upd.x. With --scope each argument
is a bare name looked up in that pipeline or stage, the way strings in
schedule directives are.

Example:
  fsl resolve -f hist.fsl hist.upd.x
  fsl resolve -f hist.fsl --scope hist x`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := compileRoot()
		if err != nil {
			return err
		}
		for _, arg := range args {
			ref, err := resolveRef(unit, resolveScope, arg)
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s (%s)\n", arg, unit.Program.RefString(ref), ref.Kind)
		}
		return nil
	},
}

// resolveRef resolves a chain, or a bare name when a scope is given.
func resolveRef(unit *loader.Unit, scope, arg string) (ir.ScheduleRef, error) {
	r := unit.Resolver()
	if scope == "" {
		return r.ResolvePath(arg)
	}
	s, err := r.ResolvePath(scope)
	if err != nil {
		return s, err
	}
	if s.Kind != ir.RefPipeline && s.Kind != ir.RefStage {
		return s, fmt.Errorf("scope '%s' must name a pipeline or a stage", scope)
	}
	return r.ResolveString(s, arg)
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveScope, "scope", "s", "", "Pipeline or stage to look bare names up in")
	AddCommand(resolveCmd)
}
