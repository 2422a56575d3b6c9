package sshconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mhoffm/clusterkey/internal/identity"
	"github.com/mhoffm/clusterkey/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() identity.ClusterIdentity {
	return identity.ClusterIdentity{Host: "login.hpc.edu", User: "alice", Alias: "hpc"}
}

func TestUpsertAliasCreatesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ssh", "config")
	w := &Writer{Path: path, Log: logger.Noop()}

	changed, err := w.UpsertAlias(testIdentity(), "/home/alice/.ssh/alice_hpc", "hpc")
	require.NoError(t, err)
	assert.True(t, changed)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Host hpc")
	assert.Contains(t, string(content), "HostName login.hpc.edu")
	assert.Contains(t, string(content), "User alice")
	assert.Contains(t, string(content), "IdentityFile /home/alice/.ssh/alice_hpc")
	assert.Contains(t, string(content), "IdentitiesOnly yes")
	assert.NotContains(t, string(content), "Port", "default port is not written")
}

func TestUpsertAliasWritesNonDefaultPort(t *testing.T) {
	id := testIdentity()
	id.Port = 2222
	w := &Writer{Path: filepath.Join(t.TempDir(), "config"), Log: logger.Noop()}

	_, err := w.UpsertAlias(id, "", "hpc")
	require.NoError(t, err)

	content, err := os.ReadFile(w.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Port 2222")
}

func TestUpsertAliasIdempotent(t *testing.T) {
	w := &Writer{Path: filepath.Join(t.TempDir(), "config"), Log: logger.Noop()}
	id := testIdentity()

	changed, err := w.UpsertAlias(id, "/k", "hpc")
	require.NoError(t, err)
	require.True(t, changed)

	first, err := os.ReadFile(w.Path)
	require.NoError(t, err)

	// Rerun: alias exists, file must not change.
	changed, err = w.UpsertAlias(id, "/k", "hpc")
	require.NoError(t, err)
	assert.False(t, changed)

	second, err := os.ReadFile(w.Path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestUpsertAliasPreservesManualEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	manual := "Host hpc\n    HostName other.example.org\n    User bob\n"
	require.NoError(t, os.WriteFile(path, []byte(manual), 0600))

	w := &Writer{Path: path, Log: logger.Noop()}
	changed, err := w.UpsertAlias(testIdentity(), "/k", "hpc")
	require.NoError(t, err)
	assert.False(t, changed)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, manual, string(content), "manual edits win")
}

func TestUpsertAliasAppendsAfterOtherHosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	existing := "Host other\n    HostName other.example.org"
	require.NoError(t, os.WriteFile(path, []byte(existing), 0600))

	w := &Writer{Path: path, Log: logger.Noop()}
	changed, err := w.UpsertAlias(testIdentity(), "/k", "hpc")
	require.NoError(t, err)
	assert.True(t, changed)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Host other")
	assert.Contains(t, string(content), "Host hpc")
	// The appended stanza starts on its own line even though the existing
	// file had no trailing newline.
	assert.Contains(t, string(content), "example.org\n\nHost hpc")
}

func TestUpsertAliasDefaultsAliasToLabel(t *testing.T) {
	id := identity.ClusterIdentity{Host: "login.hpc.edu", User: "alice"}
	w := &Writer{Path: filepath.Join(t.TempDir(), "config"), Log: logger.Noop()}

	changed, err := w.UpsertAlias(id, "", "")
	require.NoError(t, err)
	assert.True(t, changed)

	content, err := os.ReadFile(w.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Host login_hpc_edu")
}

func TestHasAlias(t *testing.T) {
	content := []byte("Host hpc other\n    HostName login.hpc.edu\n")

	assert.True(t, hasAlias(content, "hpc"))
	assert.True(t, hasAlias(content, "other"))
	assert.False(t, hasAlias(content, "third"))
}
