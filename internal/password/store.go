package password

import (
	"os"
	"path/filepath"
	"strings"
)

// SecretStore fetches named secrets from a hosted platform's store.
type SecretStore interface {
	// Get returns the secret value and whether the name exists.
	Get(name string) (string, bool)
}

// DirStore reads secrets mounted as files in a directory, one file per
// secret name — the convention used by container and hosted-notebook
// platforms.
type DirStore struct {
	Dir string
}

// Get reads the file named after the secret, trimming a trailing newline.
func (d DirStore) Get(name string) (string, bool) {
	if d.Dir == "" || name == "" {
		return "", false
	}
	// Secret names never contain path separators; refuse traversal.
	if name != filepath.Base(name) {
		return "", false
	}

	data, err := os.ReadFile(filepath.Join(d.Dir, name))
	if err != nil {
		return "", false
	}

	value := strings.TrimRight(string(data), "\r\n")
	if value == "" {
		return "", false
	}
	return value, true
}
