package commands

import (
	"fmt"

	"github.com/panyam/fsl/viz"
	"github.com/spf13/cobra"
)

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Prints the dataflow between inputs and pipelines",
	Long: `Generates a static diagram of which pipelines read which inputs and
pipelines, annotated with inferred allocations.

Example:
  fsl graph -f examples/blur.fsl --format dot | dot -Tsvg > blur.svg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, err := viz.Generator(graphFormat)
		if err != nil {
			return err
		}
		unit, err := compileRoot()
		if err != nil {
			return err
		}
		nodes, edges := viz.FromProgram(unit.Program, unit.Bounds)
		out, err := gen.Generate(fslFilePath, nodes, edges)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	graphCmd.Flags().StringVar(&graphFormat, "format", "dot", "Diagram format: dot or mermaid")
	AddCommand(graphCmd)
}
