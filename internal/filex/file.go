package filex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ParentDir returns the absolute directory of filePath without touching the
// filesystem. Relative paths are resolved against the working directory.
func ParentDir(filePath string) (string, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", filePath, err)
	}
	return filepath.Dir(abs), nil
}

// EnsureParentDir creates the directory that will hold filePath and returns
// its absolute path.
func EnsureParentDir(filePath string) (string, error) {
	dir, err := ParentDir(filePath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// ReadSecretFile returns the trimmed contents of path, or "" when the file
// does not exist.
func ReadSecretFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// WriteSecretFile writes value to path readable by the owner only. An
// existing file is never replaced.
func WriteSecretFile(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.WriteString(value + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
