package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeObject streams r into destPath. A partial file is removed on failure so
// the next run does not mistake it for a finished download.
func writeObject(destPath string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed creating %s: %w", destPath, err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("failed closing %s: %w", destPath, err)
	}
	return nil
}
