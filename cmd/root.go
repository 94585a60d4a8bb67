/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/jenos-mcp/internal/config"
	"github.com/josephgoksu/jenos-mcp/internal/logger"
	"github.com/josephgoksu/jenos-mcp/types"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// envFile is the dotenv file loaded before the environment is read.
	envFile string
	// verbose enables debug logging.
	verbose bool
	// version is the application version, overridden at build time.
	version = "2.0.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jenos-mcp",
	Short: "Jen OS MCP gateway for the Notion workspace.",
	Long: `jenos-mcp exposes the Jen OS tools (router tasks, artifacts, patterns,
sessions, knowledge) over MCP. Every call passes the gateway first:
per-caller rate limiting, content moderation, destination checks and
optional policy rules, before anything reaches the document store.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetCommand(cmd.CommandPath())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetVersion returns the application version.
func GetVersion() string {
	return version
}

func init() {
	logger.SetVersion(version)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./jenos.yaml or $HOME/.jenos.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default is ./.env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig reads the configuration with the command's flags bound over
// their config keys. bindings maps config key to flag name.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*types.AppConfig, error) {
	v := viper.New()
	flags := map[string]string{"verbose": "verbose"}
	for key, name := range bindings {
		flags[key] = name
	}
	for key, name := range flags {
		if f := cmd.Flag(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	cfg, err := config.Load(v, config.Options{File: cfgFile, EnvFile: envFile})
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		cfg.Log.Level = "debug"
	}
	logger.SetBasePath(config.DataDir(cfg))
	return cfg, nil
}
