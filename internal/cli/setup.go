package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mhoffm/clusterkey/internal/config"
	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/mhoffm/clusterkey/internal/identity"
	"github.com/mhoffm/clusterkey/internal/logger"
	"github.com/mhoffm/clusterkey/internal/password"
	"github.com/mhoffm/clusterkey/internal/probe"
	"github.com/mhoffm/clusterkey/internal/setup"
	"github.com/mhoffm/clusterkey/internal/ui"
	"github.com/spf13/cobra"
)

var (
	setupHostFlag      string
	setupUserFlag      string
	setupPortFlag      int
	setupAliasFlag     string
	setupAlgorithmFlag string
	setupForceRefresh  bool
	setupPasswordStdin bool
)

// setupCmd runs the full key setup for one cluster.
var setupCmd = &cobra.Command{
	Use:   "setup [cluster]",
	Short: "Set up passwordless SSH access to a cluster",
	Long: `Set up passwordless SSH access to a cluster.

The cluster is named in the config file, or described directly with
--host and --user. A password is only needed the first time; it is
resolved from hosted secrets, the environment, or a prompt, used for
one deployment, and discarded.

Examples:
  clusterkey setup mycluster
  clusterkey setup --host gpu01.example.edu --user alice
  clusterkey setup --host gpu01 --user alice --force-refresh`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return setupCommand(name)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().StringVar(&setupHostFlag, "host", "", "cluster hostname")
	setupCmd.Flags().StringVar(&setupUserFlag, "user", "", "remote username")
	setupCmd.Flags().IntVar(&setupPortFlag, "port", 0, "SSH port (default 22)")
	setupCmd.Flags().StringVar(&setupAliasFlag, "alias", "", "SSH config alias for the cluster")
	setupCmd.Flags().StringVar(&setupAlgorithmFlag, "algorithm", "", "key algorithm: ed25519, ecdsa, or rsa")
	setupCmd.Flags().BoolVar(&setupForceRefresh, "force-refresh", false, "regenerate and redeploy even if a key already works")
	setupCmd.Flags().BoolVar(&setupPasswordStdin, "password-stdin", false, "read the password from the first line of stdin")
}

func setupCommand(name string) error {
	id, algorithm, err := resolveTarget(name, targetFlags{
		Host:      setupHostFlag,
		User:      setupUserFlag,
		Port:      setupPortFlag,
		Alias:     setupAliasFlag,
		Algorithm: setupAlgorithmFlag,
	})
	if err != nil {
		return err
	}

	log := cliLogger()

	ui.PrintHeader(ui.HeaderInfo{
		Version: formatVersion(version),
		Tagline: "Passwordless SSH key setup",
		Target:  id.String(),
	})

	var supplied *password.Secret
	if setupPasswordStdin {
		supplied, err = readPasswordStdin()
		if err != nil {
			return err
		}
	}

	orch := setup.NewOrchestrator(log)
	applyTuning(orch, loadTuning(log), log)
	coord := &setup.Coordinator{
		Orch:      orch,
		Passwords: password.NewResolver(log),
		Log:       log,
	}
	result := coord.SetupWithFallback(id, supplied, setup.Options{
		ForceRefresh: setupForceRefresh,
		Algorithm:    algorithm,
	})

	printSetupResult(id, result)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// targetFlags carries the host-selection flags shared by setup and check.
type targetFlags struct {
	Host      string
	User      string
	Port      int
	Alias     string
	Algorithm string
}

// resolveTarget builds the identity from flags when --host is given,
// otherwise from the named (or default) config profile. Flags override
// profile fields.
func resolveTarget(name string, flags targetFlags) (identity.ClusterIdentity, string, error) {
	if flags.Host != "" {
		id := identity.ClusterIdentity{
			Host:  flags.Host,
			User:  flags.User,
			Port:  flags.Port,
			Alias: flags.Alias,
		}
		return id, flags.Algorithm, id.Validate()
	}

	cfg, err := config.LoadOrDefault(Config())
	if err != nil {
		return identity.ClusterIdentity{}, "", err
	}
	cluster, err := cfg.Resolve(name)
	if err != nil {
		return identity.ClusterIdentity{}, "", err
	}

	id := cfg.Identity(cluster)
	if flags.User != "" {
		id.User = flags.User
	}
	if flags.Port != 0 {
		id.Port = flags.Port
	}
	if flags.Alias != "" {
		id.Alias = flags.Alias
	}

	algorithm := flags.Algorithm
	if algorithm == "" {
		algorithm = cfg.Algorithm(cluster)
	}
	return id, algorithm, id.Validate()
}

// loadTuning pulls timing defaults from the config file. A broken or
// missing file never blocks a flag-driven setup.
func loadTuning(log logger.Logger) config.Defaults {
	cfg, err := config.LoadOrDefault(Config())
	if err != nil {
		log.Debug("config defaults unavailable: %v", err)
		return config.DefaultConfig().Defaults
	}
	return cfg.Defaults
}

func applyTuning(orch *setup.Orchestrator, d config.Defaults, log logger.Logger) {
	if d.VerifyAttempts > 0 {
		orch.VerifyAttempts = d.VerifyAttempts
	}
	if d.VerifyDelay > 0 {
		orch.VerifyDelay = d.VerifyDelay
	}
	if d.ProbeTimeout > 0 {
		p := probe.New(log)
		p.Timeout = d.ProbeTimeout
		orch.Prober = p
	}
}

// readPasswordStdin reads exactly one line so the rest of stdin stays
// available to the process.
func readPasswordStdin() (*password.Secret, error) {
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read password from stdin", "")
		}
		return nil, errors.New(errors.ErrConfig,
			"No password on stdin",
			"Pipe the password in, or drop --password-stdin to be prompted")
	}
	return password.NewSecret(strings.TrimSpace(scanner.Text())), nil
}

func printSetupResult(id identity.ClusterIdentity, result setup.Result) {
	successStyle := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	warnStyle := lipgloss.NewStyle().Foreground(ui.ColorWarning)
	errorStyle := lipgloss.NewStyle().Foreground(ui.ColorError)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)

	if !result.Success {
		fmt.Println(errorStyle.Render(ui.SymbolFail) + " Setup failed: " + result.Err.Message)
		if detail, ok := result.Details["verify"]; ok {
			fmt.Println(mutedStyle.Render("  " + detail))
		}
		return
	}

	if result.KeyAlreadyExisted && result.ConnectionTested && !result.KeyDeployed {
		fmt.Println(successStyle.Render(ui.SymbolSuccess) + " Already set up: " + result.KeyPath + " authenticates to " + id.String())
		return
	}

	fmt.Println(successStyle.Render(ui.SymbolSuccess) + " Key deployed: " + result.KeyPath)
	if result.ConnectionTested {
		fmt.Println(successStyle.Render(ui.SymbolSuccess) + " Connection verified")
	} else {
		fmt.Println(warnStyle.Render(ui.SymbolWarn) + " Key deployed but connection not verified")
		if detail, ok := result.Details["verify"]; ok {
			fmt.Println(mutedStyle.Render("  " + detail))
		}
	}
	if result.UsedPasswordFallback {
		fmt.Println(mutedStyle.Render("  used password fallback for deployment"))
	}
	if alias := id.Alias; alias != "" {
		fmt.Println(mutedStyle.Render("  connect with: ssh " + alias))
	} else {
		fmt.Println(mutedStyle.Render("  connect with: ssh " + id.Label()))
	}
}
