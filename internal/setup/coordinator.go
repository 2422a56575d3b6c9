package setup

import (
	"fmt"

	"github.com/mhoffm/clusterkey/internal/identity"
	"github.com/mhoffm/clusterkey/internal/logger"
	"github.com/mhoffm/clusterkey/internal/password"
)

// Runner is the orchestrator as the coordinator sees it.
type Runner interface {
	Run(id identity.ClusterIdentity, pw string, opts Options) Result
}

// PasswordSource resolves a credential for an identity, or nil when no
// source produces one.
type PasswordSource interface {
	Resolve(id identity.ClusterIdentity) *password.Secret
}

// Coordinator is the top-level entry point: it tries the orchestrator,
// escalates to password resolution and a second attempt when the first
// can't be verified, and guarantees credential cleanup on every exit path.
type Coordinator struct {
	Orch      Runner
	Passwords PasswordSource
	Log       logger.Logger
}

// NewCoordinator wires the real orchestrator and resolver.
func NewCoordinator(log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Noop()
	}
	return &Coordinator{
		Orch:      NewOrchestrator(log),
		Passwords: password.NewResolver(log),
		Log:       log,
	}
}

// SetupWithFallback runs setup for the identity. The first attempt always
// runs, with the caller-supplied password (may be nil) or none at all:
// detection of an already-authorized key needs no credential, so it must
// short-circuit before any prompting. When the first attempt can't verify
// the connection, a password is resolved from the environment and the run
// repeats once. Both credentials are zeroed before returning, even if a
// lower layer panics.
func (c *Coordinator) SetupWithFallback(id identity.ClusterIdentity, supplied *password.Secret, opts Options) (result Result) {
	var resolved *password.Secret

	// Cleanup and the panic barrier share a defer so the zeroing happens
	// on every exit path, including propagation of unexpected failures.
	defer func() {
		supplied.Zero()
		resolved.Zero()
		if r := recover(); r != nil {
			c.log().Error("setup panicked: %v", r)
			res := newResult()
			res.fail(CategoryUnknown, fmt.Sprintf("unexpected failure: %v", r))
			result = res
		}
	}()

	if err := id.Validate(); err != nil {
		result = newResult()
		result.failFromError(err)
		return result
	}

	first := c.Orch.Run(id, supplied.Value(), opts)
	if first.Success && first.ConnectionTested {
		return first
	}
	c.log().Info("first setup attempt not verified, trying password fallback")

	resolved = c.Passwords.Resolve(id)
	if resolved.IsEmpty() {
		if first.Success {
			// A deployed-but-unverified run is still a success; report
			// it rather than discarding the work.
			first.note("fallback_attempted", "true")
			first.note("fallback_available", "false")
			return first
		}
		result = newResult()
		result.note("fallback_attempted", "true")
		result.note("fallback_available", "false")
		if first.Err != nil {
			result.note("first_attempt", first.Err.Message)
		}
		result.fail(CategoryNoFallback, "no fallback available")
		return result
	}

	res := c.Orch.Run(id, resolved.Value(), opts)
	res.UsedPasswordFallback = true
	res.note("used_password_fallback", "true")
	return res
}

func (c *Coordinator) log() logger.Logger {
	if c.Log == nil {
		return logger.Noop()
	}
	return c.Log
}
