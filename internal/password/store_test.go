package password

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStoreGet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ssh_password"), []byte("hunter2\n"), 0600))

	store := DirStore{Dir: dir}

	value, ok := store.Get("ssh_password")
	assert.True(t, ok)
	assert.Equal(t, "hunter2", value, "trailing newline trimmed")
}

func TestDirStoreMiss(t *testing.T) {
	store := DirStore{Dir: t.TempDir()}

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestDirStoreEmptyFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank"), []byte("\n"), 0600))

	_, ok := DirStore{Dir: dir}.Get("blank")
	assert.False(t, ok)
}

func TestDirStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real"), []byte("x"), 0600))

	store := DirStore{Dir: filepath.Join(dir, "sub")}

	_, ok := store.Get("../real")
	assert.False(t, ok)

	_, ok = store.Get("/etc/passwd")
	assert.False(t, ok)
}

func TestDirStoreEmptyInputs(t *testing.T) {
	_, ok := DirStore{}.Get("name")
	assert.False(t, ok)

	_, ok = DirStore{Dir: t.TempDir()}.Get("")
	assert.False(t, ok)
}

func TestSecretsDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(SecretsDirEnv, dir)
	assert.Equal(t, dir, SecretsDir())

	// Override pointing nowhere disables the store entirely.
	t.Setenv(SecretsDirEnv, filepath.Join(dir, "missing"))
	assert.Equal(t, "", SecretsDir())
}

func TestExecutionContextString(t *testing.T) {
	assert.Equal(t, "headless", Headless.String())
	assert.Equal(t, "interactive", Interactive.String())
	assert.Equal(t, "hosted", Hosted.String())
}
