package config

import (
	"fmt"
	"time"
)

// OptString returns Options[key] as a string, or "" when absent or not a
// string.
func (e ProviderEntry) OptString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptInt returns Options[key] as an int. YAML integers and whole floats are
// accepted.
func (e ProviderEntry) OptInt(key string) (int, bool) {
	switch v := e.Options[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// OptFloat returns Options[key] as a float64.
func (e ProviderEntry) OptFloat(key string) (float64, bool) {
	switch v := e.Options[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// OptBool returns Options[key] as a bool.
func (e ProviderEntry) OptBool(key string) (bool, bool) {
	b, ok := e.Options[key].(bool)
	return b, ok
}

// OptDuration parses Options[key] as a duration string such as "30s".
// Absent keys return zero and no error.
func (e ProviderEntry) OptDuration(key string) (time.Duration, error) {
	v, ok := e.Options[key]
	if !ok {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("config: option %q: want a duration string, got %T", key, v)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: option %q: %w", key, err)
	}
	return d, nil
}
