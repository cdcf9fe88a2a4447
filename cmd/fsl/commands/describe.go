package commands

import (
	"fmt"

	"github.com/panyam/fsl/decl"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe [pipeline]",
	Short: "Prints the lowered program or one pipeline",
	Long: `Prints params, inputs, pipelines with their stages and the resolved
schedule. With --ast the merged source declarations are printed instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := compileRoot()
		if err != nil {
			return err
		}
		if ast, _ := cmd.Flags().GetBool("ast"); ast {
			cp := decl.NewCodePrinter()
			unit.File.PrettyPrint(cp)
			fmt.Print(cp.String())
			return nil
		}
		if len(args) == 0 {
			fmt.Print(unit.Program.String())
			return nil
		}
		ref, err := unit.Resolver().ResolvePath(args[0])
		if err != nil {
			return err
		}
		pd := unit.Program.Pipelines[ref.Pipeline]
		fmt.Print(pd.String())
		for _, d := range unit.Schedule.For(pd.Name) {
			fmt.Println(unit.Program.DirectiveString(d))
		}
		return nil
	},
}

func init() {
	describeCmd.Flags().Bool("ast", false, "Print the parsed declarations instead of the IR")
	AddCommand(describeCmd)
}
