// Package filex holds the small filesystem helpers shared by the JSON stores:
// directory creation, atomic replacement and filesystem-safe names.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// EnsureDir creates dir (and parents) if it does not exist and returns it.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// WriteFileAtomic writes data to a temporary file in the target directory,
// syncs it and renames it over path. Readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if _, err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// CopyAside copies path to path+suffix. It is used to keep a corrupt store
// file around before it is replaced with an empty default.
func CopyAside(path, suffix string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	dst := path + suffix
	if err := WriteFileAtomic(dst, data, 0o600); err != nil {
		return "", err
	}
	return dst, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SafeName maps an arbitrary identity string to a name usable as a file or
// directory name on every platform: anything outside [a-zA-Z0-9] becomes '_'.
func SafeName(s string) string {
	return unsafeChars.ReplaceAllString(s, "_")
}
