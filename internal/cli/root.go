// Package cli wires the commands: setup, check, init, and version.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mhoffm/clusterkey/internal/logger"
	"github.com/mhoffm/clusterkey/internal/ui"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

// Persistent flags available on every command
var (
	configFlag string
)

// rootCmd is the base command; subcommands register themselves in init().
var rootCmd = &cobra.Command{
	Use:   "clusterkey",
	Short: "Passwordless SSH key setup for compute clusters",
	Long: `clusterkey sets up passwordless SSH access to remote compute hosts.

It detects working keys, generates a dedicated key pair when needed,
installs the public key on the remote account, writes an SSH config
alias, and verifies the connection.

Examples:
  clusterkey setup --host gpu01 --user alice
  clusterkey setup mycluster
  clusterkey check mycluster`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// NO_COLOR and dumb terminals get plain output everywhere.
		if !ui.ColorsEnabled() {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file path (default ~/.config/clusterkey/config.yaml)")
}

// Execute runs the root command. Structured errors already carry their
// what/why/fix rendering; everything else gets a plain prefix.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// Config returns the --config flag value.
func Config() string {
	return configFlag
}

// cliLogger returns the process-wide logger for command implementations.
func cliLogger() logger.Logger {
	return logger.NewEnvLogger("clusterkey")
}
