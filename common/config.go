package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to the uppercased, underscore-joined form of a
// dotted config key when looking it up in the environment.
// "weather.api_key" resolves through DASHKIT_WEATHER_API_KEY.
const EnvPrefix = "DASHKIT_"

// Config provides dotted-path lookups with defaults over two layers:
// environment variables (preferred) and an optional YAML file. Every source
// manager gets a *Config by construction, never through package state.
type Config struct {
	path string

	mu     sync.RWMutex
	values map[string]interface{}
}

// LoadConfig reads the YAML file at path into a Config. A missing file is
// not an error: the kiosk runs fine on environment variables and defaults
// alone. An empty path skips the file layer entirely.
func LoadConfig(path string) (*Config, error) {
	c := &Config{
		path:   path,
		values: make(map[string]interface{}),
	}
	if path == "" {
		return c, nil
	}
	if err := c.Reload(); err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	return c, nil
}

// Reload re-reads the YAML file and swaps in the parsed values. Safe to call
// concurrently with lookups; used by the fsnotify watcher.
func (c *Config) Reload() error {
	if c.path == "" {
		return nil
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	var nested map[string]interface{}
	if err := yaml.Unmarshal(raw, &nested); err != nil {
		return fmt.Errorf("parsing %s: %w", c.path, err)
	}
	flat := make(map[string]interface{})
	flatten("", nested, flat)

	c.mu.Lock()
	c.values = flat
	c.mu.Unlock()
	return nil
}

// Path returns the config file path this Config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// flatten converts nested YAML maps into dotted leaf keys.
func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}

// envKey maps "weather.api_key" to "DASHKIT_WEATHER_API_KEY".
func envKey(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// lookup returns the raw value for key, environment first, file second.
func (c *Config) lookup(key string) (interface{}, bool) {
	if v, ok := os.LookupEnv(envKey(key)); ok {
		return v, true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the string value for key, or def if unset.
func (c *Config) GetString(key, def string) string {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

// GetInt returns the integer value for key, or def if unset or unparsable.
func (c *Config) GetInt(key string, def int) int {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return def
}

// GetFloat returns the float value for key, or def if unset or unparsable.
func (c *Config) GetFloat(key string, def float64) float64 {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return parsed
		}
	}
	return def
}

// GetBool returns the boolean value for key, or def if unset or unparsable.
func (c *Config) GetBool(key string, def bool) bool {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	return def
}

// GetDuration returns the duration for key, or def if unset or unparsable.
// Bare numbers are read as seconds ("300" and 300 both mean five minutes);
// strings may also use time.ParseDuration syntax ("5m", "45s").
func (c *Config) GetDuration(key string, def time.Duration) time.Duration {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	switch d := v.(type) {
	case int:
		return time.Duration(d) * time.Second
	case int64:
		return time.Duration(d) * time.Second
	case float64:
		return time.Duration(d * float64(time.Second))
	case string:
		s := strings.TrimSpace(d)
		if parsed, err := time.ParseDuration(s); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(s); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
