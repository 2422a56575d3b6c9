// Package keystore enumerates locally available private keys.
package keystore

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/mhoffm/clusterkey/internal/logger"
)

// conventionalNames are checked first, in preference order.
var conventionalNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// nonKeyNames are files that live in the key directory but are never keys.
var nonKeyNames = map[string]bool{
	"config":          true,
	"known_hosts":     true,
	"known_hosts.old": true,
	"authorized_keys": true,
	"environment":     true,
}

// Store lists candidate private keys from a key directory.
type Store struct {
	Dir string // defaults to ~/.ssh when empty
	Log logger.Logger
}

// New creates a Store over the user's standard key directory.
func New(log logger.Logger) *Store {
	if log == nil {
		log = logger.Noop()
	}
	return &Store{Log: log}
}

// dir resolves the key directory.
func (s *Store) dir() string {
	if s.Dir != "" {
		return s.Dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh")
}

// CandidateKeys returns paths of usable private keys: owner-only permission
// (not enforced on Windows) and leading bytes that identify a private key.
// Conventional names come first in preference order, everything else sorted.
// Never fails; a missing directory yields an empty slice.
func (s *Store) CandidateKeys() []string {
	dir := s.dir()
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.Log.Debug("key directory %s not readable: %v", dir, err)
		return nil
	}

	var conventional, others []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if nonKeyNames[name] || strings.HasSuffix(name, ".pub") {
			continue
		}

		path := filepath.Join(dir, name)
		if !s.usable(path) {
			continue
		}

		if isConventional(name) {
			conventional = append(conventional, path)
		} else {
			others = append(others, path)
		}
	}

	sort.Slice(conventional, func(i, j int) bool {
		return conventionalRank(filepath.Base(conventional[i])) < conventionalRank(filepath.Base(conventional[j]))
	})
	sort.Strings(others)

	return append(conventional, others...)
}

// usable checks permission and content requirements for one file.
func (s *Store) usable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	// Group/other access disqualifies a private key. Windows has no
	// comparable permission bits, so the check is skipped there.
	if runtime.GOOS != "windows" {
		if info.Mode().Perm()&0077 != 0 {
			s.Log.Debug("skipping %s: permissions too open (%o)", path, info.Mode().Perm())
			return false
		}
	}

	return looksLikePrivateKey(path)
}

// looksLikePrivateKey inspects the leading bytes for a private key header.
func looksLikePrivateKey(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 64)
	n, err := f.Read(head)
	if err != nil || n == 0 {
		return false
	}
	head = head[:n]

	return bytes.Contains(head, []byte("PRIVATE KEY"))
}

// KeyType infers the algorithm from the key filename.
func KeyType(path string) string {
	base := filepath.Base(path)
	switch {
	case strings.Contains(base, "ed25519"):
		return "ed25519"
	case strings.Contains(base, "ecdsa"):
		return "ecdsa"
	case strings.Contains(base, "rsa"):
		return "rsa"
	default:
		return "unknown"
	}
}

func isConventional(name string) bool {
	for _, c := range conventionalNames {
		if name == c {
			return true
		}
	}
	return false
}

func conventionalRank(name string) int {
	for i, c := range conventionalNames {
		if name == c {
			return i
		}
	}
	return len(conventionalNames)
}
