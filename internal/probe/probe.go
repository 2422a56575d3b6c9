// Package probe performs one bounded, authenticated liveness check against
// a host. Retry policy belongs to callers; a probe never retries.
package probe

import (
	"strings"
	"time"

	"github.com/mhoffm/clusterkey/internal/identity"
	"github.com/mhoffm/clusterkey/internal/logger"
	"github.com/mhoffm/clusterkey/pkg/sshutil"
)

// DefaultTimeout bounds the connect and handshake of a single probe.
const DefaultTimeout = 10 * time.Second

// noopCommand is the trivial remote command confirming a session is usable.
// A handshake alone can succeed against hosts that reject every session.
const noopCommand = "echo ok"

// Category classifies why a probe failed.
type Category string

const (
	CategoryAuthRejected Category = "auth-rejected"
	CategoryTransport    Category = "transport-error"
	CategoryTimeout      Category = "timeout"
	CategoryUnknown      Category = "unknown"
)

// Result is the outcome of a single probe.
type Result struct {
	OK       bool
	Category Category
	Latency  time.Duration
	Err      error
}

// Dialer opens an authenticated SSH connection. Swapped for a fake in tests.
type Dialer func(id identity.ClusterIdentity, auth sshutil.Auth, timeout time.Duration) (sshutil.SSHClient, error)

// Prober runs single-shot connection checks.
type Prober struct {
	Timeout time.Duration
	Log     logger.Logger
	Dial    Dialer
}

// New creates a Prober with the default timeout and real SSH dialer.
func New(log logger.Logger) *Prober {
	if log == nil {
		log = logger.Noop()
	}
	return &Prober{
		Timeout: DefaultTimeout,
		Log:     log,
		Dial: func(id identity.ClusterIdentity, auth sshutil.Auth, timeout time.Duration) (sshutil.SSHClient, error) {
			return sshutil.Dial(id, auth, timeout)
		},
	}
}

// Probe opens one short-lived session, runs a no-op command to confirm the
// session is genuinely usable, and closes it.
func (p *Prober) Probe(id identity.ClusterIdentity, auth sshutil.Auth) Result {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	start := time.Now()
	client, err := p.Dial(id, auth, timeout)
	if err != nil {
		cat := Categorize(err)
		p.Log.Debug("probe %s failed during dial: %s (%v)", id.String(), cat, err)
		return Result{Category: cat, Err: err}
	}
	defer client.Close()

	stdout, stderr, exitCode, err := client.Exec(noopCommand)
	latency := time.Since(start)
	if err != nil {
		cat := Categorize(err)
		p.Log.Debug("probe %s failed during exec: %s (%v)", id.String(), cat, err)
		return Result{Category: cat, Latency: latency, Err: err}
	}
	if exitCode != 0 || strings.TrimSpace(string(stdout)) != "ok" {
		p.Log.Debug("probe %s: no-op returned exit %d, stderr %q", id.String(), exitCode, stderr)
		return Result{Category: CategoryUnknown, Latency: latency}
	}

	p.Log.Debug("probe %s ok in %dms", id.String(), latency.Milliseconds())
	return Result{OK: true, Latency: latency}
}

// Categorize converts a connection error into a probe failure category.
func Categorize(err error) Category {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return CategoryTimeout
	}

	if strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "authentication failed") {
		return CategoryAuthRejected
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "host is down") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "host key") {
		return CategoryTransport
	}

	return CategoryUnknown
}
