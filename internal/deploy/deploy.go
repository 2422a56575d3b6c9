// Package deploy installs a public key into a remote account's
// authorized_keys. The assisted ssh-copy-id path is tried first; a manual
// authenticated-session edit is the guaranteed fallback.
package deploy

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/mhoffm/clusterkey/internal/identity"
	"github.com/mhoffm/clusterkey/internal/logger"
	"github.com/mhoffm/clusterkey/internal/util"
	"github.com/mhoffm/clusterkey/pkg/sshutil"
)

// DefaultTimeout bounds each remote operation during deployment.
const DefaultTimeout = 30 * time.Second

// MarkerPrefix tags authorized_keys lines managed by this tool, so reruns
// can prune stale entries without touching manually added keys.
const MarkerPrefix = "clusterkey:"

// ManagedComment returns the marker comment for an identity's key entries.
// One marker per identity keeps the prune scoped: other clusters' managed
// entries on the same account survive.
func ManagedComment(id identity.ClusterIdentity) string {
	return fmt.Sprintf("%s%s@%s", MarkerPrefix, identity.SanitizeHost(id.User), id.Label())
}

// Dialer opens an authenticated SSH connection. Swapped for a fake in tests.
type Dialer func(id identity.ClusterIdentity, auth sshutil.Auth, timeout time.Duration) (sshutil.SSHClient, error)

// Deployer installs public keys on remote hosts.
type Deployer struct {
	Timeout time.Duration
	Log     logger.Logger

	Dial            Dialer
	EnsureKnownHost func(id identity.ClusterIdentity, timeout time.Duration) error

	lookPath   func(file string) (string, error)
	runCommand func(stdin, name string, args ...string) ([]byte, error)
}

// New creates a Deployer using the real SSH stack and ssh-copy-id.
func New(log logger.Logger) *Deployer {
	if log == nil {
		log = logger.Noop()
	}
	return &Deployer{
		Timeout: DefaultTimeout,
		Log:     log,
		Dial: func(id identity.ClusterIdentity, auth sshutil.Auth, timeout time.Duration) (sshutil.SSHClient, error) {
			return sshutil.Dial(id, auth, timeout)
		},
		EnsureKnownHost: sshutil.EnsureKnownHost,
		lookPath:        exec.LookPath,
		runCommand: func(stdin, name string, args ...string) ([]byte, error) {
			cmd := exec.Command(name, args...)
			if stdin != "" {
				cmd.Stdin = strings.NewReader(stdin)
			}
			return cmd.CombinedOutput()
		},
	}
}

// Deploy installs publicKeyText into the remote account's authorized_keys.
// Returns whether the manual fallback path was the one that succeeded.
// A nil error means exactly one managed entry for this identity exists
// remotely afterward.
func (d *Deployer) Deploy(id identity.ClusterIdentity, publicKeyText, keyPath, password string) (usedManualPath bool, err error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	publicKeyText = strings.TrimSpace(publicKeyText)
	if publicKeyText == "" {
		return false, errors.New(errors.ErrDeploy,
			"No public key to deploy",
			"Generate a key first")
	}

	// Record the host key up front so neither path stalls on a trust prompt.
	if d.EnsureKnownHost != nil {
		if khErr := d.EnsureKnownHost(id, timeout); khErr != nil {
			d.Log.Warn("known_hosts pre-accept failed for %s: %v", id.Host, khErr)
		}
	}

	assistedErr := d.assistedCopy(id, keyPath, password)
	if assistedErr == nil {
		d.Log.Info("deployed key to %s via ssh-copy-id", id.String())
		// ssh-copy-id appends; stale managed entries from earlier runs
		// still need pruning. The fresh key authenticates now.
		d.pruneStale(id, publicKeyText, keyPath, timeout)
		return false, nil
	}
	d.Log.Debug("assisted copy failed, falling back to manual session: %v", assistedErr)

	manualErr := d.manualInstall(id, publicKeyText, password, timeout)
	if manualErr == nil {
		d.Log.Info("deployed key to %s via manual session", id.String())
		return true, nil
	}

	// Surface the most specific message captured across both paths.
	return false, errors.WrapWithCode(manualErr, errors.ErrDeploy,
		fmt.Sprintf("Couldn't install the key on %s", id.String()),
		fmt.Sprintf("Assisted path: %v\n  Try manually: ssh-copy-id -i %s %s@%s",
			assistedErr, keyPath+".pub", id.User, id.Host))
}

// assistedCopy runs ssh-copy-id with the password on its input channel.
func (d *Deployer) assistedCopy(id identity.ClusterIdentity, keyPath, password string) error {
	if _, err := d.lookPath("ssh-copy-id"); err != nil {
		return fmt.Errorf("ssh-copy-id not found: %w", err)
	}

	args := []string{
		"-i", keyPath + ".pub",
		"-p", fmt.Sprintf("%d", id.EffectivePort()),
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "NumberOfPasswordPrompts=1",
		fmt.Sprintf("%s@%s", id.User, id.Host),
	}

	stdin := ""
	if password != "" {
		stdin = password + "\n"
	}

	output, err := d.runCommand(stdin, "ssh-copy-id", args...)
	if err != nil {
		outputStr := strings.TrimSpace(string(output))
		if outputStr != "" {
			return fmt.Errorf("ssh-copy-id failed: %s", outputStr)
		}
		return fmt.Errorf("ssh-copy-id failed: %w", err)
	}
	return nil
}

// manualInstall edits authorized_keys over an authenticated session:
// password auth when a password was given, otherwise any already-trusted key.
func (d *Deployer) manualInstall(id identity.ClusterIdentity, publicKeyText, password string, timeout time.Duration) error {
	auth := sshutil.AnyTrusted()
	if password != "" {
		auth = sshutil.Password(password)
	}

	client, err := d.Dial(id, auth, timeout)
	if err != nil {
		return err
	}
	defer client.Close()

	script := installScript(publicKeyText, ManagedComment(id))
	_, stderr, exitCode, err := client.Exec(script)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("remote authorized_keys update exited %d: %s",
			exitCode, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// pruneStale removes managed entries for this identity that don't match the
// freshly installed key. Best-effort: a failure leaves a duplicate marker
// line, not a broken login, so it's logged and swallowed.
func (d *Deployer) pruneStale(id identity.ClusterIdentity, publicKeyText, keyPath string, timeout time.Duration) {
	client, err := d.Dial(id, sshutil.Key(keyPath), timeout)
	if err != nil {
		d.Log.Debug("stale-entry prune skipped, dial failed: %v", err)
		return
	}
	defer client.Close()

	script := installScript(publicKeyText, ManagedComment(id))
	if _, stderr, exitCode, execErr := client.Exec(script); execErr != nil || exitCode != 0 {
		d.Log.Debug("stale-entry prune failed (exit %d): %v %s", exitCode, execErr, stderr)
	}
}

// installScript builds the guarded remote edit: ensure the key directory,
// strip this identity's managed lines, append the new key, reset modes.
func installScript(publicKeyText, marker string) string {
	key := util.ShellQuote(publicKeyText)
	mark := util.ShellQuote(marker)
	return "set -eu\n" +
		"umask 077\n" +
		"mkdir -p ~/.ssh\n" +
		"chmod 700 ~/.ssh\n" +
		"touch ~/.ssh/authorized_keys\n" +
		"grep -vF " + mark + " ~/.ssh/authorized_keys > ~/.ssh/authorized_keys.tmp || true\n" +
		"printf '%s\\n' " + key + " >> ~/.ssh/authorized_keys.tmp\n" +
		"mv ~/.ssh/authorized_keys.tmp ~/.ssh/authorized_keys\n" +
		"chmod 600 ~/.ssh/authorized_keys\n"
}
