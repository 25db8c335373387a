package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

// Loader handles configuration loading with layers and overrides.
// Later layers override earlier ones key by key; sequences are replaced
// wholesale.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  "TREMOR",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	merged := map[string]any{}
	for _, path := range l.layers {
		data, err := readLayer(path)
		if err != nil {
			return nil, errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "Loader", "Load",
				fmt.Sprintf("read %s", path))
		}

		var layer map[string]any
		if err := yaml.Unmarshal(data, &layer); err != nil {
			return nil, errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "Loader", "Load",
				fmt.Sprintf("parse %s", path))
		}
		merged = deepMergeMaps(merged, layer)
	}

	data, err := yaml.Marshal(merged)
	if err != nil {
		return nil, errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "Loader", "Load", "merge layers")
	}
	return l.finish(data)
}

// Parse loads configuration from an in-memory document
func (l *Loader) Parse(data []byte) (*Config, error) {
	return l.finish(data)
}

func (l *Loader) finish(data []byte) (*Config, error) {
	cfg := Default()
	if err := Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Load is a convenience wrapper reading a single validated file
func Load(path string) (*Config, error) {
	return NewLoader().LoadFile(path)
}

// Parse is a convenience wrapper parsing a single validated document
func Parse(data []byte) (*Config, error) {
	return NewLoader().Parse(data)
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides applies <prefix>_METRICS_ENABLED, _METRICS_PORT and
// _METRICS_PATH
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	lookup := func(name string) (string, bool, error) {
		key := l.envPrefix + "_" + name
		v, ok := os.LookupEnv(key)
		if !ok {
			return "", false, nil
		}
		if err := checkEnvValue(key, v); err != nil {
			return "", false, errors.WrapInvalid(errors.Mark(err, errors.ErrConfig), "Loader", "applyEnvOverrides", key)
		}
		return v, true, nil
	}

	if v, ok, err := lookup("METRICS_ENABLED"); err != nil {
		return err
	} else if ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.WrapInvalid(errors.Mark(err, errors.ErrConfig), "Loader", "applyEnvOverrides", "METRICS_ENABLED")
		}
		cfg.Metrics.Enabled = b
	}

	if v, ok, err := lookup("METRICS_PORT"); err != nil {
		return err
	} else if ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.WrapInvalid(errors.Mark(err, errors.ErrConfig), "Loader", "applyEnvOverrides", "METRICS_PORT")
		}
		cfg.Metrics.Port = port
	}

	if v, ok, err := lookup("METRICS_PATH"); err != nil {
		return err
	} else if ok {
		cfg.Metrics.Path = v
	}
	return nil
}
