package storage

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

const maxKeyLength = 200

func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("storage key cannot be empty")
	}

	if len(key) > maxKeyLength {
		return fmt.Errorf("storage key exceeds %d bytes", maxKeyLength)
	}

	if hasControlCharacters(key) {
		return fmt.Errorf("storage key %q contains control characters", key)
	}

	return nil
}

// keyFileName maps a key to a single path segment. Escaping removes every
// separator, so a key can never address a file outside the store root.
func keyFileName(key string) string {
	return url.PathEscape(key) + ".json"
}

func keyFromFileName(name string) (string, bool) {
	escaped, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return "", false
	}

	key, err := url.PathUnescape(escaped)
	if err != nil {
		return "", false
	}

	return key, true
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}

	return false
}

func isWithinRoot(rootAbs string, candidateAbs string) bool {
	if candidateAbs == rootAbs {
		return true
	}

	rootWithSeparator := rootAbs + string(filepath.Separator)
	return strings.HasPrefix(candidateAbs, rootWithSeparator)
}
