package password

import (
	"os"

	"golang.org/x/term"
)

// ExecutionContext is the environment class the process runs in, resolved
// once and passed as data rather than re-detected at each call site.
type ExecutionContext int

const (
	// Headless: no terminal; input, if any, arrives on stdin.
	Headless ExecutionContext = iota
	// Interactive: a real terminal is attached.
	Interactive
	// Hosted: a managed notebook-style environment with a mounted
	// secret store.
	Hosted
)

// String returns the context name for log lines.
func (c ExecutionContext) String() string {
	switch c {
	case Interactive:
		return "interactive"
	case Hosted:
		return "hosted"
	default:
		return "headless"
	}
}

// SecretsDirEnv overrides where a hosted environment mounts its secrets.
const SecretsDirEnv = "CLUSTERKEY_SECRETS_DIR"

// defaultSecretsDir is the conventional mount point for platform secrets.
const defaultSecretsDir = "/run/secrets"

// SecretsDir returns the active secrets directory, or "" when none exists.
func SecretsDir() string {
	if dir := os.Getenv(SecretsDirEnv); dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		return ""
	}
	if info, err := os.Stat(defaultSecretsDir); err == nil && info.IsDir() {
		return defaultSecretsDir
	}
	return ""
}

// DetectContext classifies the current process environment.
// A mounted secret store marks a hosted platform; otherwise a terminal on
// stdin and stdout means interactive; anything else is a headless script.
func DetectContext() ExecutionContext {
	if SecretsDir() != "" {
		return Hosted
	}
	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		return Interactive
	}
	return Headless
}
