package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mhoffm/clusterkey/internal/deploy"
	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/mhoffm/clusterkey/internal/identity"
	"github.com/mhoffm/clusterkey/internal/keygen"
	"github.com/mhoffm/clusterkey/internal/keystore"
	"github.com/mhoffm/clusterkey/internal/logger"
	"github.com/mhoffm/clusterkey/internal/probe"
	"github.com/mhoffm/clusterkey/internal/sshconf"
	"github.com/mhoffm/clusterkey/pkg/sshutil"
)

// Verification retry policy: the delay covers remote propagation of the new
// authorized_keys entry, so it is fixed rather than exponential.
const (
	DefaultVerifyAttempts = 3
	DefaultVerifyDelay    = 2 * time.Second
)

// Options tune a single setup run.
type Options struct {
	// ForceRefresh regenerates the managed key even when one exists.
	ForceRefresh bool
	// Algorithm for new keys; defaults to ed25519.
	Algorithm string
	// MaxKeyAge is accepted for interface stability but not evaluated;
	// no caller-observable behavior depends on it yet.
	MaxKeyAge time.Duration
}

// The orchestrator's collaborators, as interfaces so tests can substitute
// fakes for each stage.
type (
	// KeyLister enumerates locally available private keys.
	KeyLister interface {
		CandidateKeys() []string
	}

	// KeyGenerator creates a key pair at a path.
	KeyGenerator interface {
		Generate(path, algorithm, passphrase, comment string) (keygen.KeyMaterial, error)
	}

	// KeyDeployer installs a public key on the remote account.
	KeyDeployer interface {
		Deploy(id identity.ClusterIdentity, publicKeyText, keyPath, password string) (usedManualPath bool, err error)
	}

	// AliasWriter upserts a host alias into the client SSH config.
	AliasWriter interface {
		UpsertAlias(id identity.ClusterIdentity, keyPath, alias string) (changed bool, err error)
	}

	// Prober runs one bounded connection check.
	Prober interface {
		Probe(id identity.ClusterIdentity, auth sshutil.Auth) probe.Result
	}
)

// Orchestrator drives one setup run through its states:
// DETECT -> (done | GENERATE) -> DEPLOY -> CONFIGURE -> VERIFY.
type Orchestrator struct {
	Keys     KeyLister
	Gen      KeyGenerator
	Deployer KeyDeployer
	Conf     AliasWriter
	Prober   Prober
	Log      logger.Logger

	// KeyDir is where generated keys are written; defaults to ~/.ssh.
	KeyDir string

	VerifyAttempts int
	VerifyDelay    time.Duration

	// sleep is swapped out in tests so verification retries don't wait.
	sleep func(time.Duration)
}

// NewOrchestrator wires the real component implementations together.
func NewOrchestrator(log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Noop()
	}
	return &Orchestrator{
		Keys:           keystore.New(log),
		Gen:            keygen.New(log),
		Deployer:       deploy.New(log),
		Conf:           sshconf.New(log),
		Prober:         probe.New(log),
		Log:            log,
		VerifyAttempts: DefaultVerifyAttempts,
		VerifyDelay:    DefaultVerifyDelay,
		sleep:          time.Sleep,
	}
}

// Run executes the state machine for one identity. Every lower-layer
// failure is mapped into the result's error field; nothing escapes.
func (o *Orchestrator) Run(id identity.ClusterIdentity, password string, opts Options) (result Result) {
	result = newResult()

	defer func() {
		if r := recover(); r != nil {
			o.log().Error("setup run panicked: %v", r)
			result.fail(CategoryUnknown, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	if err := id.Validate(); err != nil {
		result.failFromError(err)
		return result
	}

	// DETECT: any candidate key that already authenticates ends the run.
	if !opts.ForceRefresh {
		if keyPath, ok := o.detect(id); ok {
			result.Success = true
			result.KeyPath = keyPath
			result.KeyAlreadyExisted = true
			result.ConnectionTested = true
			return result
		}
	}

	// GENERATE: deterministic filename so reruns find their own key.
	keyPath, existed, err := o.ensureKey(id, opts)
	if err != nil {
		result.failFromError(err)
		return result
	}
	result.KeyPath = keyPath
	result.KeyAlreadyExisted = existed

	publicKeyText, err := keygen.ReadPublicKey(keyPath + ".pub")
	if err != nil {
		result.failFromError(err)
		return result
	}

	// DEPLOY: terminal on failure; repeating the same call can't fix a
	// bad or missing password.
	usedManual, err := o.Deployer.Deploy(id, publicKeyText, keyPath, password)
	if err != nil {
		result.failFromError(err)
		return result
	}
	result.KeyDeployed = true
	if usedManual {
		result.note("deploy_method", "manual")
	} else {
		result.note("deploy_method", "assisted")
	}

	// CONFIGURE: best-effort; a config write failure never sinks the run.
	if changed, confErr := o.Conf.UpsertAlias(id, keyPath, id.Label()); confErr != nil {
		o.log().Warn("ssh config update failed: %v", confErr)
		result.note("configure_error", confErr.Error())
	} else if !changed {
		result.note("configure", "alias already present, left untouched")
	}

	// VERIFY: bounded retries tolerate remote propagation delay.
	result.Success = true
	result.ConnectionTested = o.verify(id, keyPath, &result)
	return result
}

func (o *Orchestrator) log() logger.Logger {
	if o.Log == nil {
		return logger.Noop()
	}
	return o.Log
}

func (o *Orchestrator) keyDir() string {
	if o.KeyDir != "" {
		return o.KeyDir
	}
	return sshutil.SSHDir()
}

// detect probes every candidate key and returns the first that works.
func (o *Orchestrator) detect(id identity.ClusterIdentity) (string, bool) {
	for _, keyPath := range o.Keys.CandidateKeys() {
		res := o.Prober.Probe(id, sshutil.Key(keyPath))
		if res.OK {
			o.log().Info("existing key %s already authorized for %s", keyPath, id.String())
			return keyPath, true
		}
		o.log().Debug("candidate %s not usable for %s: %s", keyPath, id.String(), res.Category)
	}
	return "", false
}

// ensureKey returns the managed key path for the identity, generating the
// pair when absent. ForceRefresh deletes both files first so generation
// always produces a fresh pair.
func (o *Orchestrator) ensureKey(id identity.ClusterIdentity, opts Options) (keyPath string, existed bool, err error) {
	keyPath = filepath.Join(o.keyDir(), id.KeyFileName())

	if opts.ForceRefresh {
		if _, statErr := os.Stat(keyPath); statErr == nil {
			o.log().Info("force refresh: removing %s", keyPath)
			if rmErr := os.Remove(keyPath); rmErr != nil {
				// A stale pair surviving a forced refresh would be
				// silently reused by the stat below.
				return "", false, errors.WrapWithCode(rmErr, errors.ErrKeygen,
					"Couldn't remove the old key at "+keyPath,
					"Check permissions on the key directory")
			}
			if rmErr := os.Remove(keyPath + ".pub"); rmErr != nil && !os.IsNotExist(rmErr) {
				return "", false, errors.WrapWithCode(rmErr, errors.ErrKeygen,
					"Couldn't remove the old public key at "+keyPath+".pub",
					"Check permissions on the key directory")
			}
		}
	}

	if _, statErr := os.Stat(keyPath); statErr == nil {
		o.log().Debug("reusing existing managed key %s", keyPath)
		return keyPath, true, nil
	}

	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = keygen.DefaultAlgorithm
	}

	_, err = o.Gen.Generate(keyPath, algorithm, "", deploy.ManagedComment(id))
	if err != nil {
		return "", false, err
	}
	return keyPath, false, nil
}

// verify probes with the deployed key, up to VerifyAttempts times with a
// fixed delay. Exhaustion downgrades to "deployed but unverified" rather
// than failing the run.
func (o *Orchestrator) verify(id identity.ClusterIdentity, keyPath string, result *Result) bool {
	attempts := o.VerifyAttempts
	if attempts <= 0 {
		attempts = DefaultVerifyAttempts
	}
	delay := o.VerifyDelay
	if delay <= 0 {
		delay = DefaultVerifyDelay
	}
	sleep := o.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var last probe.Result
	for attempt := 1; attempt <= attempts; attempt++ {
		last = o.Prober.Probe(id, sshutil.Key(keyPath))
		if last.OK {
			o.log().Info("verified key access to %s on attempt %d", id.String(), attempt)
			return true
		}
		o.log().Debug("verify attempt %d/%d failed: %s", attempt, attempts, last.Category)
		if attempt < attempts {
			sleep(delay)
		}
	}

	result.note("verify", fmt.Sprintf(
		"key deployed but connection not confirmed after %d attempts (last: %s)",
		attempts, last.Category))
	return false
}
