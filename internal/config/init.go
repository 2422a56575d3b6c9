package config

import (
	"os"
	"path/filepath"

	"github.com/mhoffm/clusterkey/internal/errors"
	"gopkg.in/yaml.v3"
)

// WriteStarter writes a starter config with one cluster profile. It refuses
// to overwrite an existing file.
func WriteStarter(path, name string, cluster Cluster) error {
	if path == "" {
		path = Path()
	}
	if path == "" {
		return errors.New(errors.ErrConfig,
			"Cannot determine config location",
			"Set HOME, or pass an explicit path with --config")
	}

	if _, err := os.Stat(path); err == nil {
		return errors.New(errors.ErrConfig,
			"Config already exists at "+path,
			"Edit it directly, or remove it and rerun init")
	}

	if err := validateCluster(name, cluster); err != nil {
		return err
	}

	cfg := DefaultConfig()
	cfg.Clusters[name] = cluster
	cfg.Default = name

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to serialize config", "")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to create config directory",
			"Check permissions on "+filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write config file",
			"Check permissions on "+path)
	}
	return nil
}
