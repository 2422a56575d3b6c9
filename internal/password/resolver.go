package password

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mhoffm/clusterkey/internal/identity"
	"github.com/mhoffm/clusterkey/internal/logger"
	"golang.org/x/term"
)

// Environment variable names consulted by the resolver, generic forms.
const (
	EnvPasswordPrefix = "CLUSTERKEY_PASSWORD_" // + sanitized host, upper-cased
	EnvPassword       = "CLUSTERKEY_PASSWORD"
	EnvSSHPassword    = "SSH_PASSWORD"
)

// Resolver acquires a password through an ordered chain of sources.
// The first non-empty result short-circuits the rest. Cancellation at any
// interactive step resolves to nothing, never to an error.
type Resolver struct {
	Context ExecutionContext
	Secrets SecretStore // nil outside hosted environments
	Log     logger.Logger

	// Injection points for tests.
	Getenv         func(string) string
	Stdin          io.Reader
	promptModal    func(title string) (string, error)
	promptTerminal func(prompt string) (string, error)
}

// NewResolver builds a resolver for the detected execution context.
func NewResolver(log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Noop()
	}

	ctx := DetectContext()
	var store SecretStore
	if dir := SecretsDir(); dir != "" {
		store = DirStore{Dir: dir}
	}

	return &Resolver{
		Context:        ctx,
		Secrets:        store,
		Log:            log,
		Getenv:         os.Getenv,
		Stdin:          os.Stdin,
		promptModal:    runModalPrompt,
		promptTerminal: runTerminalPrompt,
	}
}

// Resolve walks the chain for the identity. A nil return means no source
// produced a password; the caller decides whether that's fatal.
func (r *Resolver) Resolve(id identity.ClusterIdentity) *Secret {
	if pw := r.fromSecretStore(id); pw != "" {
		r.Log.Debug("password resolved from hosted secret store")
		return NewSecret(pw)
	}

	if pw := r.fromEnv(id); pw != "" {
		r.Log.Debug("password resolved from environment variable")
		return NewSecret(pw)
	}

	switch r.Context {
	case Interactive:
		if pw := r.fromModal(id); pw != "" {
			return NewSecret(pw)
		}
		if pw := r.fromTerminal(id); pw != "" {
			return NewSecret(pw)
		}
	case Headless:
		if pw := r.fromStdin(id); pw != "" {
			return NewSecret(pw)
		}
	case Hosted:
		// A hosted kernel has no terminal to prompt on; the store and
		// environment above were its only sources.
	}

	return nil
}

// SecretNames returns the conventionally named store keys tried for a host,
// most specific first.
func SecretNames(id identity.ClusterIdentity) []string {
	label := id.Label()
	return []string{
		"ssh_password_" + label,
		label + "_password",
		"ssh_password",
	}
}

func (r *Resolver) fromSecretStore(id identity.ClusterIdentity) string {
	if r.Secrets == nil {
		return ""
	}
	for _, name := range SecretNames(id) {
		if value, ok := r.Secrets.Get(name); ok {
			return value
		}
	}
	return ""
}

// EnvNames returns the environment variables tried for a host,
// host-specific first, then generic.
func EnvNames(id identity.ClusterIdentity) []string {
	return []string{
		EnvPasswordPrefix + strings.ToUpper(id.Label()),
		EnvPassword,
		EnvSSHPassword,
	}
}

func (r *Resolver) fromEnv(id identity.ClusterIdentity) string {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, name := range EnvNames(id) {
		if value := getenv(name); value != "" {
			return value
		}
	}
	return ""
}

// fromModal runs the blocking modal prompt. Abort resolves empty; any
// other failure falls through to the plainer terminal prompt.
func (r *Resolver) fromModal(id identity.ClusterIdentity) string {
	pw, err := r.promptModal(fmt.Sprintf("Password for %s@%s", id.User, id.Host))
	if err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			r.Log.Debug("modal password prompt cancelled")
			return ""
		}
		r.Log.Debug("modal password prompt unavailable: %v", err)
		return ""
	}
	return pw
}

// fromTerminal prompts on the controlling terminal with echo suppressed.
func (r *Resolver) fromTerminal(id identity.ClusterIdentity) string {
	pw, err := r.promptTerminal(fmt.Sprintf("Password for %s@%s: ", id.User, id.Host))
	if err != nil {
		// Interrupt or closed terminal: resolve to nothing.
		r.Log.Debug("terminal password prompt ended: %v", err)
		return ""
	}
	return pw
}

// fromStdin reads one line from standard input, without echo suppression;
// headless callers pipe the password in.
func (r *Resolver) fromStdin(id identity.ClusterIdentity) string {
	stdin := r.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", id.User, id.Host)
	scanner := bufio.NewScanner(stdin)
	if !scanner.Scan() {
		// EOF or read error: resolve to nothing.
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

// runModalPrompt shows the huh password form. The form takes over the
// terminal; when it can't (no tty for its renderer), it errors and the
// caller falls back.
func runModalPrompt(title string) (string, error) {
	var pw string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&pw),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return pw, nil
}

// runTerminalPrompt reads a password with echo suppressed.
func runTerminalPrompt(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", stderrors.New("stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
