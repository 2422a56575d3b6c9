package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
version: 1
default: hpc
defaults:
  algorithm: ed25519
  probe_timeout: 5s
clusters:
  hpc:
    host: login.hpc.edu
    user: alice
    alias: hpc
  gpu:
    host: gpu01.lab.edu
    user: alice
    port: 2222
    algorithm: rsa
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "hpc", cfg.Default)
	assert.Equal(t, 5*time.Second, cfg.Defaults.ProbeTimeout)
	require.Len(t, cfg.Clusters, 2)

	gpu := cfg.Clusters["gpu"]
	assert.Equal(t, "gpu01.lab.edu", gpu.Host)
	assert.Equal(t, 2222, gpu.Port)
	assert.Equal(t, "rsa", gpu.Algorithm)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "clusters: [not a map"))

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadOrDefaultMissingYieldsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "ed25519", cfg.Defaults.Algorithm)
	assert.Empty(t, cfg.Clusters)
}

func TestResolve(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	named, err := cfg.Resolve("gpu")
	require.NoError(t, err)
	assert.Equal(t, "gpu01.lab.edu", named.Host)

	// Empty name falls back to the default profile.
	def, err := cfg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "login.hpc.edu", def.Host)

	_, err = cfg.Resolve("unknown")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestResolveNoDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clusters["hpc"] = Cluster{Host: "h", User: "u"}

	_, err := cfg.Resolve("")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestIdentityFromCluster(t *testing.T) {
	cfg := DefaultConfig()
	id := cfg.Identity(Cluster{Host: "login.hpc.edu", User: "alice", Port: 2222, Alias: "hpc"})

	assert.Equal(t, "login.hpc.edu", id.Host)
	assert.Equal(t, "alice", id.User)
	assert.Equal(t, 2222, id.Port)
	assert.Equal(t, "hpc", id.Alias)
}

func TestAlgorithmFallsBackToDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "ed25519", cfg.Algorithm(Cluster{}))
	assert.Equal(t, "rsa", cfg.Algorithm(Cluster{Algorithm: "rsa"}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"empty ok", func(c *Config) {}, false},
		{"newer version", func(c *Config) { c.Version = CurrentConfigVersion + 1 }, true},
		{"default missing", func(c *Config) { c.Default = "nope" }, true},
		{"bad default algorithm", func(c *Config) { c.Defaults.Algorithm = "dsa" }, true},
		{"negative verify attempts", func(c *Config) { c.Defaults.VerifyAttempts = -1 }, true},
		{"negative probe timeout", func(c *Config) { c.Defaults.ProbeTimeout = -time.Second }, true},
		{"zero tuning ok", func(c *Config) { c.Defaults = Defaults{Algorithm: "ed25519"} }, false},
		{"cluster without host", func(c *Config) {
			c.Clusters["x"] = Cluster{User: "u"}
		}, true},
		{"cluster without user", func(c *Config) {
			c.Clusters["x"] = Cluster{Host: "h"}
		}, true},
		{"cluster bad port", func(c *Config) {
			c.Clusters["x"] = Cluster{Host: "h", User: "u", Port: 90000}
		}, true},
		{"cluster bad algorithm", func(c *Config) {
			c.Clusters["x"] = Cluster{Host: "h", User: "u", Algorithm: "dsa"}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteStarter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")
	cluster := Cluster{Host: "login.hpc.edu", User: "alice", Alias: "hpc"}

	require.NoError(t, WriteStarter(path, "hpc", cluster))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hpc", cfg.Default)
	assert.Equal(t, "login.hpc.edu", cfg.Clusters["hpc"].Host)
	assert.Equal(t, 10*time.Second, cfg.Defaults.ProbeTimeout)
	assert.Equal(t, 3, cfg.Defaults.VerifyAttempts)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "probe_timeout: 10s", "durations stay readable")
}

func TestWriteStarterRefusesOverwrite(t *testing.T) {
	path := writeConfig(t, validConfig)

	err := WriteStarter(path, "hpc", Cluster{Host: "h", User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestWriteStarterValidatesProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := WriteStarter(path, "hpc", Cluster{Host: "h"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}
