package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/panyam/fsl/console"
	"github.com/spf13/cobra"
)

var boundsCmd = &cobra.Command{
	Use:   "bounds",
	Short: "Shows the region every pipeline must compute",
	Long: `Infers bounds for the output declarations of the file, or for the
requests given with --request or in the config.

Example:
  fsl bounds -f hist.fsl -r hist=0:255 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := compileRoot()
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			data, err := json.MarshalIndent(unit.Bounds, "", "  ")
			if err != nil {
				return fmt.Errorf("marshalling bounds: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}
		console.WriteBounds(os.Stdout, unit)
		return nil
	},
}

func init() {
	boundsCmd.Flags().Bool("json", false, "Output in JSON format")
	AddCommand(boundsCmd)
}
