package config

import (
	"fmt"

	"github.com/mhoffm/clusterkey/internal/errors"
)

var knownAlgorithms = map[string]bool{
	"":        true,
	"ed25519": true,
	"ecdsa":   true,
	"rsa":     true,
}

// Validate checks structural consistency of a loaded config.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Config version %d is newer than supported version %d", cfg.Version, CurrentConfigVersion),
			"Update clusterkey, or lower the version field")
	}

	if cfg.Default != "" {
		if _, ok := cfg.Clusters[cfg.Default]; !ok {
			return errors.New(errors.ErrConfig,
				"Default cluster '"+cfg.Default+"' is not defined",
				"Add it under 'clusters' or change 'default'")
		}
	}

	if !knownAlgorithms[cfg.Defaults.Algorithm] {
		return errors.New(errors.ErrConfig,
			"Unknown default algorithm: "+cfg.Defaults.Algorithm,
			"Use ed25519, ecdsa, or rsa")
	}
	if cfg.Defaults.VerifyAttempts < 0 || cfg.Defaults.ProbeTimeout < 0 || cfg.Defaults.VerifyDelay < 0 {
		return errors.New(errors.ErrConfig,
			"Negative timeout or attempt count in defaults",
			"Use zero to fall back to the built-in values")
	}

	for name, cluster := range cfg.Clusters {
		if err := validateCluster(name, cluster); err != nil {
			return err
		}
	}
	return nil
}

func validateCluster(name string, cluster Cluster) error {
	if cluster.Host == "" {
		return errors.New(errors.ErrConfig,
			"Cluster '"+name+"' has no host",
			"Add a 'host' field")
	}
	if cluster.User == "" {
		return errors.New(errors.ErrConfig,
			"Cluster '"+name+"' has no user",
			"Add a 'user' field")
	}
	if cluster.Port < 0 || cluster.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Cluster '%s' has invalid port %d", name, cluster.Port),
			"Use a port between 1 and 65535, or omit it for 22")
	}
	if !knownAlgorithms[cluster.Algorithm] {
		return errors.New(errors.ErrConfig,
			"Cluster '"+name+"' has unknown algorithm: "+cluster.Algorithm,
			"Use ed25519, ecdsa, or rsa")
	}
	return nil
}
