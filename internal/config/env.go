package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

type lookupFunc func(key string) (string, bool)

type readFileFunc func(path string) ([]byte, error)

// secretFileLookuper resolves KEY_FILE (Docker secrets) before KEY. Empty
// values count as unset so they never clear file or TOML settings.
type secretFileLookuper struct {
	lookup   lookupFunc
	readFile readFileFunc
	err      error
}

func (l *secretFileLookuper) Lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	if path, ok := l.lookup(key + "_FILE"); ok && strings.TrimSpace(path) != "" {
		data, err := l.readFile(strings.TrimSpace(path))
		if err != nil {
			if l.err == nil {
				l.err = fmt.Errorf("read %s_FILE: %w", key, err)
			}
			return "", false
		}
		return strings.TrimSpace(string(data)), true
	}
	value, ok := l.lookup(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// applyEnv overlays the `env` tagged fields of cfg.
func applyEnv(ctx context.Context, cfg *Config, lookup lookupFunc, readFile readFileFunc) error {
	l := &secretFileLookuper{lookup: lookup, readFile: readFile}
	if err := envconfig.ProcessWith(ctx, cfg, l); err != nil {
		return fmt.Errorf("parsing env vars: %w", err)
	}
	return l.err
}
