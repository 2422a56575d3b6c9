package config

import (
	"os"
	"path/filepath"

	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/mhoffm/clusterkey/internal/identity"
	"github.com/spf13/viper"
)

const (
	// GlobalConfigDir is the directory for the config, under $HOME.
	GlobalConfigDir = ".config/clusterkey"
	// ConfigFileName is the config file name.
	ConfigFileName = "config.yaml"
)

// Path returns the default config file location.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, ConfigFileName)
}

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'clusterkey init' to create one, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the config from the explicit path, then the default
// location; a missing file yields defaults rather than an error.
func LoadOrDefault(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}

	path := Path()
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Resolve returns the cluster profile by name, or the default profile when
// name is empty.
func (c *Config) Resolve(name string) (Cluster, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		return Cluster{}, errors.New(errors.ErrConfig,
			"No cluster specified",
			"Pass a cluster name, or set 'default' in the config")
	}

	cluster, ok := c.Clusters[name]
	if !ok {
		return Cluster{}, errors.New(errors.ErrConfig,
			"Unknown cluster: "+name,
			"Run 'clusterkey init' or add the cluster to the config")
	}
	return cluster, nil
}

// Identity converts a cluster profile into a connection identity.
func (c *Config) Identity(cluster Cluster) identity.ClusterIdentity {
	return identity.ClusterIdentity{
		Host:  cluster.Host,
		User:  cluster.User,
		Port:  cluster.Port,
		Alias: cluster.Alias,
	}
}

// Algorithm returns the effective key algorithm for a cluster profile.
func (c *Config) Algorithm(cluster Cluster) string {
	if cluster.Algorithm != "" {
		return cluster.Algorithm
	}
	return c.Defaults.Algorithm
}
