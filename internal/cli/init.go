package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mhoffm/clusterkey/internal/config"
	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/mhoffm/clusterkey/internal/ui"
	"github.com/spf13/cobra"
)

var (
	initHostFlag  string
	initUserFlag  string
	initPortFlag  int
	initAliasFlag string
	initNameFlag  string
)

// initCmd writes a starter config with one cluster profile.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter config file",
	Long: `Create a starter config file with one cluster profile.

The profile becomes the default, so later runs can say just
'clusterkey setup'.

Examples:
  clusterkey init --host gpu01.example.edu --user alice
  clusterkey init --name lab --host login.lab.edu --user alice --port 2222`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initNameFlag, "name", "", "profile name (default: derived from host)")
	initCmd.Flags().StringVar(&initHostFlag, "host", "", "cluster hostname")
	initCmd.Flags().StringVar(&initUserFlag, "user", "", "remote username")
	initCmd.Flags().IntVar(&initPortFlag, "port", 0, "SSH port (default 22)")
	initCmd.Flags().StringVar(&initAliasFlag, "alias", "", "SSH config alias for the cluster")
}

func initCommand() error {
	if initHostFlag == "" || initUserFlag == "" {
		return errors.New(errors.ErrConfig,
			"init needs --host and --user",
			"Example: clusterkey init --host gpu01.example.edu --user alice")
	}

	cluster := config.Cluster{
		Host:  initHostFlag,
		User:  initUserFlag,
		Port:  initPortFlag,
		Alias: initAliasFlag,
	}

	name := initNameFlag
	if name == "" {
		name = identityLabel(cluster)
	}

	if err := config.WriteStarter(Config(), name, cluster); err != nil {
		return err
	}

	path := Config()
	if path == "" {
		path = config.Path()
	}
	style := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	fmt.Println(style.Render(ui.SymbolSuccess) + " Wrote " + path)
	fmt.Println("  next: clusterkey setup " + name)
	return nil
}

func identityLabel(cluster config.Cluster) string {
	cfg := config.DefaultConfig()
	return cfg.Identity(cluster).Label()
}
