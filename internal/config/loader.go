// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader merges defaults, an optional YAML file and environment overrides.
type Loader struct {
	path    string // optional; "" skips the file layer
	version string
}

// NewLoader creates a loader for the given config file path. An empty path
// loads from environment and defaults only.
func NewLoader(path, version string) *Loader {
	return &Loader{path: path, version: version}
}

// Load returns the merged configuration. Precedence: ENV > file > defaults.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		switch {
		case os.IsNotExist(err):
			// Optional file; fall through to env and defaults.
		case err != nil:
			return AppConfig{}, fmt.Errorf("config: read %s: %w", l.path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return AppConfig{}, fmt.Errorf("config: parse %s: %w", l.path, err)
			}
		}
	}

	cfg = applyEnv(cfg)
	cfg.Version = l.version
	return cfg, nil
}
