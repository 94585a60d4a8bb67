package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/jenos-mcp/internal/ui"
	"github.com/josephgoksu/jenos-mcp/mcp"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the gateway exposes",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := mcp.NewDispatcher(mcp.Services{}).Catalog()
		out := cmd.OutOrStdout()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(catalog)
		}

		fixed := []int{0, len("ACCESS")}
		rows := make([][]string, 0, len(catalog))
		for _, tool := range catalog {
			access := "write"
			if tool.ReadOnly {
				access = "read"
			}
			fixed[0] = max(fixed[0], len(tool.Name))
			rows = append(rows, []string{tool.Name, access, tool.Description})
		}
		table := &ui.Table{
			Headers:  []string{"TOOL", "ACCESS", "DESCRIPTION"},
			Rows:     rows,
			MaxWidth: ui.ColumnBudget(ui.TerminalWidth(120), fixed, 30),
		}

		fmt.Fprintln(out, ui.StyleHeader.Render(fmt.Sprintf("Jen OS tools (%d)", len(catalog))))
		fmt.Fprint(out, table.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().Bool("json", false, "print the catalog as JSON")
}
