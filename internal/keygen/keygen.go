// Package keygen creates SSH key pairs by delegating to ssh-keygen.
package keygen

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/mhoffm/clusterkey/internal/logger"
	"golang.org/x/crypto/ssh"
)

// DefaultAlgorithm is used when the caller doesn't pick one.
const DefaultAlgorithm = "ed25519"

// validAlgorithms are the key types ssh-keygen is asked to produce.
var validAlgorithms = map[string]bool{
	"ed25519": true,
	"ecdsa":   true,
	"rsa":     true,
}

// KeyMaterial describes a generated key pair. The key itself is owned by
// the filesystem; this record only carries paths and identifying metadata.
type KeyMaterial struct {
	Algorithm   string
	PrivatePath string
	PublicPath  string
	Fingerprint string
	Comment     string
}

// Generator produces key pairs with correct file permissions.
type Generator struct {
	Log logger.Logger

	// lookPath and runCommand are swapped out in tests.
	lookPath   func(file string) (string, error)
	runCommand func(name string, args ...string) ([]byte, error)
}

// New creates a Generator.
func New(log logger.Logger) *Generator {
	if log == nil {
		log = logger.Noop()
	}
	return &Generator{
		Log:      log,
		lookPath: exec.LookPath,
		runCommand: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
	}
}

// Generate creates a key pair at path using ssh-keygen. The parent directory
// is created owner-only if absent; the private key ends up 0600 and the
// public key 0644. An existing key at path is an error: deciding whether to
// replace a key is the caller's job.
func (g *Generator) Generate(path, algorithm, passphrase, comment string) (KeyMaterial, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	if !validAlgorithms[algorithm] {
		return KeyMaterial{}, errors.New(errors.ErrKeygen,
			fmt.Sprintf("Invalid key algorithm: %s", algorithm),
			"Supported algorithms: ed25519 (recommended), ecdsa, rsa")
	}

	if _, err := g.lookPath("ssh-keygen"); err != nil {
		return KeyMaterial{}, errors.WrapWithCode(err, errors.ErrKeygen,
			"Can't find ssh-keygen",
			"Install OpenSSH client tools")
	}

	keyDir := filepath.Dir(path)
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return KeyMaterial{}, errors.WrapWithCode(err, errors.ErrKeygen,
			fmt.Sprintf("Failed to create key directory: %s", keyDir),
			"Check permissions on the home directory")
	}

	if _, err := os.Stat(path); err == nil {
		return KeyMaterial{}, errors.New(errors.ErrKeygen,
			fmt.Sprintf("Key already exists at %s", path),
			"Use force refresh to replace it, or pick a different path")
	}

	args := []string{
		"-t", algorithm,
		"-f", path,
		"-N", passphrase,
		"-C", comment,
	}
	if algorithm == "rsa" {
		args = append(args, "-b", "4096")
	}

	g.Log.Debug("generating %s key at %s", algorithm, path)
	output, err := g.runCommand("ssh-keygen", args...)
	if err != nil {
		return KeyMaterial{}, errors.WrapWithCode(err, errors.ErrKeygen,
			fmt.Sprintf("ssh-keygen failed: %s", strings.TrimSpace(string(output))),
			"Check disk space and permissions on the key directory")
	}

	pubPath := path + ".pub"
	if _, err := os.Stat(path); err != nil {
		return KeyMaterial{}, errors.New(errors.ErrKeygen,
			"Key generation completed but key file not found",
			"Check disk space and permissions")
	}

	// ssh-keygen applies these itself, but permissions are part of the
	// contract, not an accident of the tool.
	if err := os.Chmod(path, 0600); err != nil {
		return KeyMaterial{}, errors.Wrap(err, "Failed to set private key permissions")
	}
	if err := os.Chmod(pubPath, 0644); err != nil {
		return KeyMaterial{}, errors.Wrap(err, "Failed to set public key permissions")
	}

	fingerprint, err := Fingerprint(pubPath)
	if err != nil {
		g.Log.Warn("couldn't fingerprint %s: %v", pubPath, err)
	}

	return KeyMaterial{
		Algorithm:   algorithm,
		PrivatePath: path,
		PublicPath:  pubPath,
		Fingerprint: fingerprint,
		Comment:     comment,
	}, nil
}

// Fingerprint returns the SHA256 fingerprint of a public key file.
func Fingerprint(pubPath string) (string, error) {
	data, err := os.ReadFile(pubPath)
	if err != nil {
		return "", err
	}

	key, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse public key %s: %w", pubPath, err)
	}

	return ssh.FingerprintSHA256(key), nil
}

// ReadPublicKey reads and trims the contents of a public key file.
func ReadPublicKey(pubPath string) (string, error) {
	data, err := os.ReadFile(pubPath)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrKeygen,
			fmt.Sprintf("Failed to read public key: %s", pubPath),
			"Check that the file exists and is readable")
	}
	return strings.TrimSpace(string(data)), nil
}
