package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/jenos-mcp/internal/ui"
	"github.com/josephgoksu/jenos-mcp/mcp"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
			ui.StyleTitle.Render(mcp.ServerName),
			version,
			ui.StyleSubtle.Render(fmt.Sprintf("(%s %s/%s)", runtime.Version(), runtime.GOOS, runtime.GOARCH)),
		)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
