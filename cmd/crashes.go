package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/jenos-mcp/internal/logger"
	"github.com/josephgoksu/jenos-mcp/internal/ui"
)

var crashesCmd = &cobra.Command{
	Use:   "crashes",
	Short: "List crash logs written by earlier runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(cmd, nil); err != nil {
			return err
		}
		paths, err := logger.ListCrashLogs()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(paths) == 0 {
			fmt.Fprintln(out, ui.StyleSuccess.Render("No crash logs."))
			return nil
		}

		rows := make([][]string, 0, len(paths))
		for _, p := range paths {
			crash, err := logger.ReadCrashLog(p)
			if err != nil {
				rows = append(rows, []string{filepath.Base(p), "", "", "unreadable: " + err.Error()})
				continue
			}
			panicLine, _, _ := strings.Cut(crash.PanicValue, "\n")
			rows = append(rows, []string{
				filepath.Base(p),
				crash.Timestamp.Local().Format(time.DateTime),
				crash.Version,
				panicLine,
			})
		}
		table := &ui.Table{
			Headers:  []string{"FILE", "AT", "VERSION", "PANIC"},
			Rows:     rows,
			MaxWidth: 60,
		}
		fmt.Fprint(out, table.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(crashesCmd)
}
