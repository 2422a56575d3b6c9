// Package config loads and validates the clusterkey configuration file,
// which names cluster profiles so setup runs don't need full host flags.
package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete config.yaml configuration file.
type Config struct {
	Version  int                `yaml:"version" mapstructure:"version"`
	Clusters map[string]Cluster `yaml:"clusters" mapstructure:"clusters"`
	Default  string             `yaml:"default" mapstructure:"default"`
	Defaults Defaults           `yaml:"defaults" mapstructure:"defaults"`
}

// Cluster defines one remote account keys are managed for.
type Cluster struct {
	// Host is the hostname or address of the login node.
	Host string `yaml:"host" mapstructure:"host"`

	// User is the account name on the cluster.
	User string `yaml:"user" mapstructure:"user"`

	// Port overrides the SSH port; 0 means 22.
	Port int `yaml:"port" mapstructure:"port"`

	// Alias is the SSH config alias written for the cluster. Empty means
	// derive one from the host.
	Alias string `yaml:"alias" mapstructure:"alias"`

	// Algorithm overrides the key algorithm for this cluster.
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm"`
}

// Defaults apply to every cluster unless the profile overrides them.
type Defaults struct {
	// Algorithm for new keys (ed25519, ecdsa, or rsa).
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm"`

	// ProbeTimeout bounds each connection check.
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`

	// VerifyAttempts is how many times a fresh deployment is probed before
	// downgrading to success-without-verification.
	VerifyAttempts int `yaml:"verify_attempts" mapstructure:"verify_attempts"`

	// VerifyDelay is the fixed wait between verification attempts.
	VerifyDelay time.Duration `yaml:"verify_delay" mapstructure:"verify_delay"`
}

// MarshalYAML renders durations as strings ("10s") so the starter file
// stays hand-editable; the loader parses both forms.
func (d Defaults) MarshalYAML() (interface{}, error) {
	return struct {
		Algorithm      string `yaml:"algorithm"`
		ProbeTimeout   string `yaml:"probe_timeout"`
		VerifyAttempts int    `yaml:"verify_attempts"`
		VerifyDelay    string `yaml:"verify_delay"`
	}{d.Algorithm, d.ProbeTimeout.String(), d.VerifyAttempts, d.VerifyDelay.String()}, nil
}

// DefaultConfig returns a config with sensible defaults and no clusters.
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentConfigVersion,
		Clusters: make(map[string]Cluster),
		Defaults: Defaults{
			Algorithm:      "ed25519",
			ProbeTimeout:   10 * time.Second,
			VerifyAttempts: 3,
			VerifyDelay:    2 * time.Second,
		},
	}
}
