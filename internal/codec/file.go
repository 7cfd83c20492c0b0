package codec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes to a temporary file next to path and renames it
// over path once encode succeeded and the data is synced. On failure path is
// left untouched.
func WriteFileAtomic(path string, encode func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpPath := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := f.Chmod(0644); err != nil {
		return fmt.Errorf("setting mode of %s: %w", tmpPath, err)
	}
	if err := encode(f); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s: %w", tmpPath, err)
	}
	return nil
}
