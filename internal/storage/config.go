package storage

import (
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the flat string map a backend factory receives. Values come from
// the storage.config section of the service configuration merged over the
// backend's defaults.
type Config map[string]string

// Merge returns a new map with over applied on top of base.
func Merge(base, over map[string]string) Config {
	out := make(Config, len(base)+len(over))
	maps.Copy(out, base)
	maps.Copy(out, over)
	return out
}

// String returns the value for key, or def when missing or empty.
func (c Config) String(key, def string) string {
	if v, ok := c[key]; ok && v != "" {
		return v
	}
	return def
}

// Require returns the value for key or a ConfigError naming backend.
func (c Config) Require(backend, key string) (string, error) {
	v := c.String(key, "")
	if v == "" {
		return "", NewConfigError(backend, key, "cannot be empty")
	}
	return v, nil
}

// Bool accepts true/false, 1/0 and yes/no in any case.
func (c Config) Bool(key string, def bool) (bool, error) {
	v := c[key]
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, &ConfigError{Field: key, Value: v, Message: "must be a boolean (true/false, 1/0, yes/no)"}
}

// Int parses key as a base-10 int.
func (c Config) Int(key string, def int) (int, error) {
	v := c[key]
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Field: key, Value: v, Message: "must be an integer", Cause: err}
	}
	return i, nil
}

// Int64 parses key as a base-10 int64.
func (c Config) Int64(key string, def int64) (int64, error) {
	v := c[key]
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &ConfigError{Field: key, Value: v, Message: "must be an integer", Cause: err}
	}
	return i, nil
}

// Duration accepts Go duration strings or whole seconds.
func (c Config) Duration(key string, def time.Duration) (time.Duration, error) {
	v := c[key]
	if v == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, &ConfigError{Field: key, Value: v, Message: "must be a duration (e.g. '5s', '1m30s') or integer seconds"}
}

// Path returns key as a filesystem path with ~ expanded.
func (c Config) Path(key, def string) string {
	return ExpandPath(c.String(key, def))
}

// ExpandPath expands a leading ~/ and cleans the result.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, rest)
	}
	return filepath.Clean(path)
}

// Field tags a parse error from one of the typed getters with the backend
// name so it surfaces as "<backend>: <field>=...".
func Field(backend string, err error) error {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*ConfigError); ok && ce.Backend == "" {
		ce.Backend = backend
		return ce
	}
	return err
}
