// Package config loads typed settings from TOML or YAML files and keeps them
// current: Store swaps values atomically and notifies listeners, Watcher
// reloads on file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("config: unknown file format")

// Validatable is an optional interface that config structs can implement
// to validate themselves before being swapped in.
type Validatable interface {
	Validate() error
}

// Load reads path into a copy of defaults, choosing the decoder by extension
// (.toml, .yaml, .yml). A missing file yields defaults unchanged.
func Load[T any](path string, defaults *T) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := new(T)
	if defaults != nil {
		*cfg = *defaults
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if v, ok := any(cfg).(Validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating config %s: %w", path, err)
		}
	}
	return cfg, nil
}
