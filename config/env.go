package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvString reads a string environment variable. The second return reports
// whether it was set to a non-empty value.
func EnvString(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable. A set-but-unparsable value is
// an error, not a silent fallback.
func EnvInt(name string) (int, bool, error) {
	raw, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return value, true, nil
}

// EnvFloat reads a float environment variable.
func EnvFloat(name string) (float64, bool, error) {
	raw, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number, got %q", name, raw)
	}
	return value, true, nil
}

// EnvBool reads a boolean environment variable ("1", "true", "yes" are true).
func EnvBool(name string) (bool, bool) {
	raw, ok := EnvString(name)
	if !ok {
		return false, false
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, true
	default:
		return false, true
	}
}
