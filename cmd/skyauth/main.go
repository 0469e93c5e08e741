// Command skyauth runs the authentication service and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/skyAuth/internal/config"
)

var version = "dev"

type rootFlags struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "skyauth",
		Short:         "Authentication and session security service for the booking and crew APIs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is not an error; explicit files must exist.
			if err := godotenv.Load(flags.envFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("load %s: %w", flags.envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("SKYAUTH_CONFIG"), "path to YAML config (env SKYAUTH_CONFIG)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newServeCmd(flags),
		newMigrateCmd(flags),
		newHashPasswordCmd(),
		newLoadtestCmd(),
	)
	return root
}

func (f *rootFlags) load() (*config.Config, error) {
	return config.Load(f.configPath)
}
