// Package identity defines the cluster identity record that every setup
// operation receives as input.
package identity

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mhoffm/clusterkey/internal/errors"
)

// DefaultPort is the SSH port used when an identity does not specify one.
const DefaultPort = 22

// ClusterIdentity describes the remote account a setup run targets.
// It is immutable input: constructed once by the caller and passed by value.
type ClusterIdentity struct {
	Host  string
	User  string
	Port  int
	Alias string // optional SSH config alias; defaults to a sanitized hostname
}

// New builds a ClusterIdentity with the default port applied.
func New(host, user string) ClusterIdentity {
	return ClusterIdentity{Host: host, User: user, Port: DefaultPort}
}

// Validate checks the identity before any I/O happens.
// Missing host or user is a configuration error, not a connection error.
func (id ClusterIdentity) Validate() error {
	if strings.TrimSpace(id.Host) == "" {
		return errors.New(errors.ErrConfig,
			"No host specified",
			"Provide the cluster hostname, e.g. login.cluster.example.edu")
	}
	if strings.TrimSpace(id.User) == "" {
		return errors.New(errors.ErrConfig,
			"No username specified",
			"Provide the account name used to log in to the cluster")
	}
	if id.Port < 0 || id.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid port: %d", id.Port),
			"Ports must be between 1 and 65535 (0 means default 22)")
	}
	return nil
}

// EffectivePort returns the configured port, or DefaultPort when unset.
func (id ClusterIdentity) EffectivePort() int {
	if id.Port == 0 {
		return DefaultPort
	}
	return id.Port
}

// Address returns the host:port string for dialing.
func (id ClusterIdentity) Address() string {
	return net.JoinHostPort(id.Host, strconv.Itoa(id.EffectivePort()))
}

// Label returns the alias if set, otherwise the sanitized hostname.
// Used anywhere a stable, filesystem-safe name for the cluster is needed.
func (id ClusterIdentity) Label() string {
	if id.Alias != "" {
		return SanitizeHost(id.Alias)
	}
	return SanitizeHost(id.Host)
}

// KeyFileName derives the deterministic private key filename for this
// identity: <user>_<label>. Stable across reruns so repeated setups find
// the key they generated before.
func (id ClusterIdentity) KeyFileName() string {
	return fmt.Sprintf("%s_%s", SanitizeHost(id.User), id.Label())
}

// String renders user@host:port for log lines. Never includes credentials.
func (id ClusterIdentity) String() string {
	return fmt.Sprintf("%s@%s:%d", id.User, id.Host, id.EffectivePort())
}

// SanitizeHost reduces a hostname or alias to a filesystem- and
// environment-variable-safe token: lowercase alphanumerics with
// underscores for everything else, collapsed.
func SanitizeHost(host string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(host)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
