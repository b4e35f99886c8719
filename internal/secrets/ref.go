// Package secrets resolves credential references used by the server.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrSecretRef = errors.New("invalid secret reference")
	// ErrSecretMissing reports a well-formed reference whose value is empty or
	// absent. Callers may choose to continue without the secret.
	ErrSecretMissing = errors.New("secret value missing")
)

// DefaultTokenRef is the reference used when no credential ref is configured.
// The Home Assistant supervisor injects SUPERVISOR_TOKEN into add-on containers.
const DefaultTokenRef = "env:SUPERVISOR_TOKEN"

// ValidateRef validates a secret reference format without loading its value.
//
// Supported forms:
// - env:NAME
// - file:/path/to/secret
// - raw:literal-value
func ValidateRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("%w: empty", ErrSecretRef)
	}

	scheme, value, ok := strings.Cut(ref, ":")
	if !ok {
		return fmt.Errorf("%w: missing scheme (use env:, file:, or raw:)", ErrSecretRef)
	}
	switch scheme {
	case "env":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: env var name is empty", ErrSecretRef)
		}
	case "file":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: file path is empty", ErrSecretRef)
		}
	case "raw":
		if value == "" {
			return fmt.Errorf("%w: raw value is empty", ErrSecretRef)
		}
	default:
		return fmt.Errorf("%w: unsupported scheme %q (use env:, file:, or raw:)", ErrSecretRef, scheme)
	}
	return nil
}

// LoadRef loads a secret value from a reference string.
//
// A missing env var or an empty file yields ErrSecretMissing; a malformed
// reference or an unreadable file yields a hard error.
func LoadRef(ref string) (string, error) {
	if err := ValidateRef(ref); err != nil {
		return "", err
	}
	scheme, value, _ := strings.Cut(strings.TrimSpace(ref), ":")

	switch scheme {
	case "env":
		name := strings.TrimSpace(value)
		val := strings.TrimSpace(os.Getenv(name))
		if val == "" {
			return "", fmt.Errorf("%w: env var %q is empty or missing", ErrSecretMissing, name)
		}
		return val, nil
	case "file":
		path := strings.TrimSpace(value)
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w: file %q does not exist", ErrSecretMissing, path)
			}
			return "", fmt.Errorf("read secret file %q: %w", path, err)
		}
		val := strings.TrimSpace(string(b))
		if val == "" {
			return "", fmt.Errorf("%w: file %q is empty", ErrSecretMissing, path)
		}
		return val, nil
	default:
		return value, nil
	}
}
