package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mhoffm/clusterkey/internal/report"
	"github.com/mhoffm/clusterkey/pkg/sshutil"
	"github.com/spf13/cobra"
)

var (
	checkHostFlag string
	checkUserFlag string
	checkPortFlag int
	checkJSON     bool
)

// checkCmd validates an existing setup without changing anything.
var checkCmd = &cobra.Command{
	Use:   "check [cluster]",
	Short: "Validate passwordless access to a cluster",
	Long: `Validate passwordless access to a cluster without changing anything.

Checks the identity, the local key and its permissions, and whether the
key authenticates. Exits non-zero when any check fails.

Examples:
  clusterkey check mycluster
  clusterkey check --host gpu01 --user alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return checkCommand(name)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkHostFlag, "host", "", "cluster hostname")
	checkCmd.Flags().StringVar(&checkUserFlag, "user", "", "remote username")
	checkCmd.Flags().IntVar(&checkPortFlag, "port", 0, "SSH port (default 22)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "output in JSON format")
}

// checkOutput is the JSON shape for one check.
type checkOutput struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func checkCommand(name string) error {
	id, _, err := resolveTarget(name, targetFlags{
		Host: checkHostFlag,
		User: checkUserFlag,
		Port: checkPortFlag,
	})
	if err != nil {
		return err
	}

	reporter := report.New(cliLogger())
	keyPath := filepath.Join(sshutil.SSHDir(), id.KeyFileName())
	if _, statErr := os.Stat(keyPath); statErr != nil {
		// No managed key yet; let the reporter scan for any usable key.
		keyPath = ""
	}

	checks := reporter.RunChecks(id, keyPath)

	if checkJSON {
		out := make([]checkOutput, 0, len(checks))
		for _, c := range checks {
			out = append(out, checkOutput{
				Name:       c.Name,
				Status:     statusString(c.Status),
				Message:    c.Message,
				Suggestion: c.Suggestion,
			})
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Print(report.Render(id.String(), checks))
	}

	if !report.Passed(checks) {
		os.Exit(1)
	}
	return nil
}

func statusString(s report.Status) string {
	switch s {
	case report.StatusPass:
		return "pass"
	case report.StatusWarn:
		return "warn"
	default:
		return "fail"
	}
}
