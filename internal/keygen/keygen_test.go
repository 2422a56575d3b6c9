package keygen

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/mhoffm/clusterkey/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator returns a Generator whose ssh-keygen invocation writes fake
// key files instead of shelling out.
func fakeGenerator(t *testing.T, log logger.Logger) (*Generator, *[][]string) {
	t.Helper()
	var calls [][]string
	g := &Generator{
		Log:      log,
		lookPath: func(file string) (string, error) { return "/usr/bin/" + file, nil },
		runCommand: func(name string, args ...string) ([]byte, error) {
			calls = append(calls, append([]string{name}, args...))
			// Find the -f argument and create the pair there.
			for i, a := range args {
				if a == "-f" && i+1 < len(args) {
					path := args[i+1]
					if err := os.WriteFile(path, []byte("fake private"), 0600); err != nil {
						return nil, err
					}
					if err := os.WriteFile(path+".pub", []byte("ssh-ed25519 AAAA comment"), 0644); err != nil {
						return nil, err
					}
				}
			}
			return nil, nil
		},
	}
	return g, &calls
}

func TestGenerateInvalidAlgorithm(t *testing.T) {
	g, _ := fakeGenerator(t, logger.Noop())

	_, err := g.Generate(filepath.Join(t.TempDir(), "key"), "dsa", "", "c")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrKeygen))
}

func TestGenerateMissingSSHKeygen(t *testing.T) {
	g, _ := fakeGenerator(t, logger.Noop())
	g.lookPath = func(string) (string, error) { return "", stderrors.New("not found") }

	_, err := g.Generate(filepath.Join(t.TempDir(), "key"), "ed25519", "", "c")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrKeygen))
	assert.Contains(t, err.Error(), "ssh-keygen")
}

func TestGenerateRefusesExistingKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0600))

	g, calls := fakeGenerator(t, logger.Noop())
	_, err := g.Generate(path, "ed25519", "", "c")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Empty(t, *calls, "ssh-keygen must not run when the key exists")
}

func TestGenerateSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys", "alice_hpc")

	log := logger.NewBufferLogger()
	g, calls := fakeGenerator(t, log)

	material, err := g.Generate(path, "ed25519", "", "clusterkey:alice@hpc")
	require.NoError(t, err)

	assert.Equal(t, "ed25519", material.Algorithm)
	assert.Equal(t, path, material.PrivatePath)
	assert.Equal(t, path+".pub", material.PublicPath)
	assert.Equal(t, "clusterkey:alice@hpc", material.Comment)

	// Parent directory created owner-only, key pair has contract permissions.
	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	keyInfo, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), keyInfo.Mode().Perm())

	pubInfo, err := os.Stat(path + ".pub")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), pubInfo.Mode().Perm())

	require.Len(t, *calls, 1)
	args := (*calls)[0]
	assert.Equal(t, "ssh-keygen", args[0])
	assert.Contains(t, args, "-t")
	assert.Contains(t, args, "ed25519")
	assert.NotContains(t, args, "-b", "key size flag is rsa-only")
}

func TestGenerateRSAAddsKeySize(t *testing.T) {
	g, calls := fakeGenerator(t, logger.Noop())

	_, err := g.Generate(filepath.Join(t.TempDir(), "key"), "rsa", "", "c")
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	assert.Contains(t, (*calls)[0], "-b")
	assert.Contains(t, (*calls)[0], "4096")
}

func TestGenerateCommandFailure(t *testing.T) {
	g, _ := fakeGenerator(t, logger.Noop())
	g.runCommand = func(name string, args ...string) ([]byte, error) {
		return []byte("permission denied"), stderrors.New("exit status 1")
	}

	_, err := g.Generate(filepath.Join(t.TempDir(), "key"), "ed25519", "", "c")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrKeygen))
	assert.Contains(t, err.Error(), "permission denied")
}

func TestReadPublicKeyTrims(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(pubPath, []byte("ssh-ed25519 AAAA comment\n"), 0644))

	text, err := ReadPublicKey(pubPath)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAA comment", text)
}

func TestReadPublicKeyMissing(t *testing.T) {
	_, err := ReadPublicKey(filepath.Join(t.TempDir(), "nope.pub"))

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrKeygen))
}

func TestFingerprintRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(pubPath, []byte("not a key"), 0644))

	_, err := Fingerprint(pubPath)
	assert.Error(t, err)
}
