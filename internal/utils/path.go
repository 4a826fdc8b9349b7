package utils

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// NormPath converts an OS path into the canonical slash-separated relative
// form used as index keys.
func NormPath(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

// ResolvePath expands `~` and resolves a path to its absolute, cleaned form.
func ResolvePath(p string) (string, error) {
	if p == "" {
		return "", errors.New("path cannot be empty")
	}

	if strings.HasPrefix(p, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		p = strings.Replace(p, "~", homeDir, 1)
	}

	absPath, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	return filepath.Clean(absPath), nil
}
