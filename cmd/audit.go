package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/jenos-mcp/internal/audit"
	"github.com/josephgoksu/jenos-mcp/internal/ui"
)

var errAuditDisabled = errors.New("audit log disabled: set audit.path (JENOS_AUDIT_PATH)")

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the most recent tool invocations from the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		if cfg.Audit.Path == "" {
			return errAuditDisabled
		}
		limit, _ := cmd.Flags().GetInt("limit")

		log, err := audit.Open(cfg.Audit.Path, nil)
		if err != nil {
			return err
		}
		defer func() { _ = log.Close() }()

		entries, err := log.Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, ui.StyleSubtle.Render("No invocations recorded."))
			return nil
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.At.Local().Format(time.DateTime),
				e.Tool,
				e.Caller,
				e.Outcome,
				e.Code,
				strconv.FormatInt(e.DurationMS, 10) + "ms",
			})
		}
		table := &ui.Table{
			Headers:  []string{"AT", "TOOL", "CALLER", "OUTCOME", "CODE", "DURATION"},
			Rows:     rows,
			MaxWidth: 36,
		}
		fmt.Fprint(out, table.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
	auditCmd.Flags().Bool("json", false, "print entries as JSON")
}
