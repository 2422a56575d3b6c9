// Package report renders human-facing pass/fail checks over the probe and
// key store. It consumes the core's output; nothing in the core depends on
// it.
package report

import (
	"fmt"
	"os"
	"runtime"

	"github.com/mhoffm/clusterkey/internal/identity"
	"github.com/mhoffm/clusterkey/internal/keystore"
	"github.com/mhoffm/clusterkey/internal/logger"
	"github.com/mhoffm/clusterkey/internal/probe"
	"github.com/mhoffm/clusterkey/pkg/sshutil"
)

// Status of a single check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

// CheckResult is the outcome of one validation check.
type CheckResult struct {
	Name       string
	Status     Status
	Message    string
	Suggestion string
}

// Prober runs one bounded connection check.
type Prober interface {
	Probe(id identity.ClusterIdentity, auth sshutil.Auth) probe.Result
}

// Reporter runs validation checks against an identity.
type Reporter struct {
	Keys   *keystore.Store
	Prober Prober
	Log    logger.Logger
}

// New creates a Reporter over the real key store and prober.
func New(log logger.Logger) *Reporter {
	if log == nil {
		log = logger.Noop()
	}
	return &Reporter{
		Keys:   keystore.New(log),
		Prober: probe.New(log),
		Log:    log,
	}
}

// RunChecks validates the identity, local keys, key permissions, and the
// connection, in that order. Checks never abort each other; every result
// is reported.
func (r *Reporter) RunChecks(id identity.ClusterIdentity, keyPath string) []CheckResult {
	checks := []CheckResult{
		r.checkIdentity(id),
		r.checkLocalKey(keyPath),
		r.checkKeyPermissions(keyPath),
	}
	checks = append(checks, r.checkConnection(id, keyPath))
	return checks
}

func (r *Reporter) checkIdentity(id identity.ClusterIdentity) CheckResult {
	if err := id.Validate(); err != nil {
		return CheckResult{
			Name:       "identity",
			Status:     StatusFail,
			Message:    "Cluster identity is incomplete",
			Suggestion: "Provide both a host and a username",
		}
	}
	return CheckResult{
		Name:    "identity",
		Status:  StatusPass,
		Message: fmt.Sprintf("Target: %s", id.String()),
	}
}

func (r *Reporter) checkLocalKey(keyPath string) CheckResult {
	if keyPath != "" {
		if _, err := os.Stat(keyPath); err == nil {
			return CheckResult{
				Name:    "local_key",
				Status:  StatusPass,
				Message: fmt.Sprintf("Key found: %s (%s)", keyPath, keystore.KeyType(keyPath)),
			}
		}
		return CheckResult{
			Name:       "local_key",
			Status:     StatusFail,
			Message:    fmt.Sprintf("Key not found at %s", keyPath),
			Suggestion: "Run setup to generate and deploy a key",
		}
	}

	candidates := r.Keys.CandidateKeys()
	if len(candidates) == 0 {
		return CheckResult{
			Name:       "local_key",
			Status:     StatusFail,
			Message:    "No usable private keys found",
			Suggestion: "Run setup to generate one",
		}
	}
	return CheckResult{
		Name:    "local_key",
		Status:  StatusPass,
		Message: fmt.Sprintf("%d candidate key(s) available", len(candidates)),
	}
}

func (r *Reporter) checkKeyPermissions(keyPath string) CheckResult {
	if keyPath == "" || runtime.GOOS == "windows" {
		return CheckResult{
			Name:    "key_permissions",
			Status:  StatusPass,
			Message: "No key permissions to check",
		}
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		return CheckResult{
			Name:    "key_permissions",
			Status:  StatusPass,
			Message: "No key permissions to check",
		}
	}

	if info.Mode().Perm()&0077 != 0 {
		return CheckResult{
			Name:       "key_permissions",
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Insecure permissions on %s (%o)", keyPath, info.Mode().Perm()),
			Suggestion: fmt.Sprintf("Fix: chmod 600 %s", keyPath),
		}
	}
	return CheckResult{
		Name:    "key_permissions",
		Status:  StatusPass,
		Message: "Key permissions OK",
	}
}

func (r *Reporter) checkConnection(id identity.ClusterIdentity, keyPath string) CheckResult {
	if err := id.Validate(); err != nil {
		return CheckResult{
			Name:       "connection",
			Status:     StatusFail,
			Message:    "Skipped: identity incomplete",
			Suggestion: "Fix the identity first",
		}
	}

	auth := sshutil.AnyTrusted()
	if keyPath != "" {
		auth = sshutil.Key(keyPath)
	}

	res := r.Prober.Probe(id, auth)
	if res.OK {
		return CheckResult{
			Name:    "connection",
			Status:  StatusPass,
			Message: fmt.Sprintf("Connected to %s in %dms", id.String(), res.Latency.Milliseconds()),
		}
	}

	return CheckResult{
		Name:       "connection",
		Status:     StatusFail,
		Message:    fmt.Sprintf("Cannot authenticate to %s (%s)", id.String(), res.Category),
		Suggestion: suggestionForCategory(res.Category, id),
	}
}

func suggestionForCategory(cat probe.Category, id identity.ClusterIdentity) string {
	switch cat {
	case probe.CategoryAuthRejected:
		return "Run setup to deploy a key, or check the password"
	case probe.CategoryTimeout:
		return "Host might be offline or behind a firewall"
	case probe.CategoryTransport:
		return fmt.Sprintf("Make sure SSH is running on %s and the host is reachable", id.Host)
	default:
		return fmt.Sprintf("Try connecting manually: ssh %s@%s", id.User, id.Host)
	}
}

// Passed reports whether no check failed (warnings are tolerated).
func Passed(checks []CheckResult) bool {
	for _, c := range checks {
		if c.Status == StatusFail {
			return false
		}
	}
	return true
}
