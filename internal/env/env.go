// Package env reads gateway configuration from environment variables,
// falling back to a default when a variable is unset or malformed.
package env

import (
	"os"
	"strconv"
)

// Str returns the value of key, or fallback when the variable is unset or
// empty.
func Str(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Int parses key as a base-10 integer. Unset, empty, and unparseable values
// all yield fallback.
func Int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
