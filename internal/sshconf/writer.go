// Package sshconf upserts host aliases into the client-side SSH config.
package sshconf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/mhoffm/clusterkey/internal/identity"
	"github.com/mhoffm/clusterkey/internal/logger"
)

// Writer appends host stanzas to the SSH config file, leaving existing
// entries untouched.
type Writer struct {
	Path string // defaults to ~/.ssh/config when empty
	Log  logger.Logger
}

// New creates a Writer over the user's standard SSH config file.
func New(log logger.Logger) *Writer {
	if log == nil {
		log = logger.Noop()
	}
	return &Writer{Log: log}
}

func (w *Writer) path() (string, error) {
	if w.Path != "" {
		return w.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine home directory",
			"Set the HOME environment variable")
	}
	return filepath.Join(home, ".ssh", "config"), nil
}

// UpsertAlias ensures an alias stanza exists for the identity. An existing
// entry for the alias is preserved as-is (manual edits win) and changed is
// false. Creates the config file and directory owner-only when absent.
func (w *Writer) UpsertAlias(id identity.ClusterIdentity, keyPath, alias string) (changed bool, err error) {
	if alias == "" {
		alias = id.Label()
	}

	configPath, err := w.path()
	if err != nil {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to create SSH directory",
			"Check permissions on the home directory")
	}

	content, readErr := os.ReadFile(configPath)
	if readErr != nil && !os.IsNotExist(readErr) {
		return false, errors.WrapWithCode(readErr, errors.ErrConfig,
			fmt.Sprintf("Cannot read SSH config at %s", configPath),
			"Check file permissions")
	}

	if len(content) > 0 && hasAlias(content, alias) {
		w.Log.Debug("ssh config already has alias %q, leaving untouched", alias)
		return false, nil
	}

	stanza := buildStanza(id, keyPath, alias)

	f, err := os.OpenFile(configPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Cannot open SSH config at %s", configPath),
			"Check file permissions")
	}
	defer f.Close()

	prefix := ""
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		prefix = "\n"
	}
	if len(content) > 0 {
		prefix += "\n"
	}

	if _, err := f.WriteString(prefix + stanza); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write SSH config stanza",
			"Check disk space and file permissions")
	}

	w.Log.Info("added ssh config alias %q for %s", alias, id.String())
	return true, nil
}

// hasAlias reports whether the config already declares the alias as a host
// pattern. Parse failures are treated as "present" so a config this code
// can't read is never appended to blindly.
func hasAlias(content []byte, alias string) bool {
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return true
	}

	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			if pattern.String() == alias {
				return true
			}
		}
	}
	return false
}

// buildStanza renders the Host block appended for a new alias.
func buildStanza(id identity.ClusterIdentity, keyPath, alias string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Host %s\n", alias)
	fmt.Fprintf(&b, "    HostName %s\n", id.Host)
	fmt.Fprintf(&b, "    User %s\n", id.User)
	if id.EffectivePort() != identity.DefaultPort {
		fmt.Fprintf(&b, "    Port %d\n", id.EffectivePort())
	}
	if keyPath != "" {
		fmt.Fprintf(&b, "    IdentityFile %s\n", keyPath)
		b.WriteString("    IdentitiesOnly yes\n")
	}
	return b.String()
}
