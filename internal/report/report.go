// Package report aggregates the local data trees into summary JSON documents.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// SummaryFileName is written at the root of each data tree.
	SummaryFileName = "summary_report.json"

	DataTypeChat     = "chat_finetuning"
	DataTypeGameplay = "gameplay_sessions"

	// ProfilesDirName is the reserved gameplay subdirectory holding profiles.
	ProfilesDirName = "profiles"
)

// now is swapped in tests.
var now = time.Now

// SummaryPath returns where the summary for root is stored.
func SummaryPath(root string) string {
	return filepath.Join(root, SummaryFileName)
}

// Write serialises summary as indented JSON to root/summary_report.json,
// replacing the previous report.
func Write(root string, summary any) (string, error) {
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", root, err)
	}

	path := SummaryPath(root)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Load reads the raw summary document stored under root.
func Load(root string) ([]byte, error) {
	return os.ReadFile(SummaryPath(root))
}

// userDirs lists the per-user directories directly under root. A missing root
// yields no users.
func userDirs(root string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}

	dirs := make([]os.DirEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry)
		}
	}
	return dirs, nil
}

// filesWithSuffix returns the regular files in dir whose names end in suffix.
func filesWithSuffix(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}
