// Package config loads the optional TOML file overriding retry policies and
// manifest locations.
package config

import (
	"bytes"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"

	"github.com/voluzi/gridpilot/internal/pipeline"
)

type Config struct {
	Policies  pipeline.Policies  `toml:"policies"`
	Resources pipeline.Resources `toml:"resources"`
}

// Default returns the built-in configuration with manifests under dir.
func Default(dir string) *Config {
	return &Config{
		Policies:  pipeline.DefaultPolicies(),
		Resources: pipeline.DefaultResources(dir),
	}
}

// Decode overlays data on top of cfg. Keys absent from data keep their value.
func (cfg *Config) Decode(data string) error {
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return errors.Wrap(pipeline.ErrInvalidConfig, err.Error())
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return errors.Wrapf(pipeline.ErrInvalidConfig, "unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg.Policies.Validate()
}

// LoadFile reads the file at path over the defaults. An empty path returns the defaults.
func LoadFile(path, manifestsDir string) (*Config, error) {
	cfg := Default(manifestsDir)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithDetails(errors.Wrap(pipeline.ErrInvalidConfig, err.Error()), "path", path)
	}
	if err := cfg.Decode(string(data)); err != nil {
		return nil, errors.WithDetails(err, "path", path)
	}
	return cfg, nil
}

func (cfg *Config) Encode() (string, error) {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}
