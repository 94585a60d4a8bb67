package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/jenos-mcp/internal/app"
	"github.com/josephgoksu/jenos-mcp/internal/policy"
	"github.com/josephgoksu/jenos-mcp/internal/safety"
	"github.com/josephgoksu/jenos-mcp/internal/ui"
	"github.com/josephgoksu/jenos-mcp/types"
)

// errRejected makes the process exit non-zero when a check fails.
var errRejected = errors.New("rejected by policy")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a URL or text against the safety policy",
	Long: `Run the same destination and content checks the gateway applies,
using the configured policy file. Exits 1 when the input is rejected.`,
}

var validateURLCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Check a destination against the private-address blocklist and allowlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		validator, err := loadValidateApp(cmd)
		if err != nil {
			return err
		}
		res := validator.URL(types.ValidateURLParams{URL: args[0]})
		return printVerdict(cmd, res, res.IsValid, res.Message, nil)
	},
}

var validateContentCmd = &cobra.Command{
	Use:   "content [text]",
	Short: "Check text for forbidden terms (reads stdin when no text is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		validator, err := loadValidateApp(cmd)
		if err != nil {
			return err
		}
		text := ""
		if len(args) == 1 {
			text = args[0]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text = strings.TrimRight(string(data), "\n")
		}
		res := validator.Content(types.ValidateContentParams{Text: text})
		return printVerdict(cmd, res, res.IsValid, res.Message, res.Violations)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.AddCommand(validateURLCmd, validateContentCmd)
	validateCmd.PersistentFlags().Bool("json", false, "print the tool result as JSON")
}

// loadValidateApp builds the validators from the configured policy only. No
// store is opened.
func loadValidateApp(cmd *cobra.Command) (*app.ValidateApp, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, err
	}
	pol, err := policy.Load(afero.NewOsFs(), cfg.Policy.File)
	if err != nil {
		return nil, err
	}
	private, err := pol.CompilePrivatePatterns()
	if err != nil {
		return nil, err
	}
	appCtx := app.NewContext(nil, nil,
		safety.NewContentValidator(pol.ForbiddenTerms),
		safety.NewDestinationValidator(private, pol.AllowedHosts),
	)
	return app.NewValidateApp(appCtx), nil
}

func printVerdict(cmd *cobra.Command, res any, ok bool, message string, details []string) error {
	out := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, ui.Verdict(ok, message, details))
	}
	if !ok {
		return errRejected
	}
	return nil
}
