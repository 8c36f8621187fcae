package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when a source names no file, value or variable.
var ErrNotConfigured = errors.New("not configured")

// Source says where a credential comes from. File wins over Value, and Value
// wins over Env.
type Source struct {
	// Name appears in error messages, e.g. "twilio token".
	Name  string
	File  string
	Value string
	// Env is an environment variable consulted last.
	Env string
}

func (s Source) name() string {
	if n := strings.TrimSpace(s.Name); n != "" {
		return n
	}
	return "secret"
}

func (s Source) empty() bool {
	return strings.TrimSpace(s.File) == "" && strings.TrimSpace(s.Value) == "" &&
		(s.Env == "" || strings.TrimSpace(os.Getenv(s.Env)) == "")
}

// Load resolves src into a trimmed, non-empty secret.
func Load(src Source) (string, error) {
	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", src.name(), file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", src.name(), file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	if src.Env != "" {
		if secret := strings.TrimSpace(os.Getenv(src.Env)); secret != "" {
			return secret, nil
		}
	}

	return "", fmt.Errorf("%s is %w", src.name(), ErrNotConfigured)
}

// Optional is Load for credentials a backend can run without, such as an
// unauthenticated SMTP relay. An unconfigured source yields "".
func Optional(src Source) (string, error) {
	if src.empty() {
		return "", nil
	}
	return Load(src)
}
