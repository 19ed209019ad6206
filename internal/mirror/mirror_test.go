package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSyncDirCopiesMissingFiles(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "chat_finetuning")
	now := time.Now()

	writeFile(t, filepath.Join(src, "u1", "conv1.json"), `{"messages":[]}`, now)
	writeFile(t, filepath.Join(src, "u2", "deep", "conv2.json"), `{}`, now)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))

	stats, err := SyncDir(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, Stats{Copied: 2}, stats)

	assert.Equal(t, `{"messages":[]}`, readFile(t, filepath.Join(dst, "u1", "conv1.json")))
	assert.Equal(t, `{}`, readFile(t, filepath.Join(dst, "u2", "deep", "conv2.json")))
	// Directories are only created as parents of copied files.
	assert.NoDirExists(t, filepath.Join(dst, "empty"))
}

func TestSyncDirModTimePolicy(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	// Source newer: copied.
	writeFile(t, filepath.Join(src, "newer.csv"), "new", base.Add(time.Minute))
	writeFile(t, filepath.Join(dst, "newer.csv"), "old", base)

	// Same mtime: left alone.
	writeFile(t, filepath.Join(src, "same.csv"), "src", base)
	writeFile(t, filepath.Join(dst, "same.csv"), "dst", base)

	// Destination newer: left alone.
	writeFile(t, filepath.Join(src, "older.csv"), "src", base)
	writeFile(t, filepath.Join(dst, "older.csv"), "dst", base.Add(time.Minute))

	stats, err := SyncDir(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, Stats{Copied: 1, Unchanged: 2}, stats)

	assert.Equal(t, "new", readFile(t, filepath.Join(dst, "newer.csv")))
	assert.Equal(t, "dst", readFile(t, filepath.Join(dst, "same.csv")))
	assert.Equal(t, "dst", readFile(t, filepath.Join(dst, "older.csv")))
}

func TestSyncDirSecondPassCopiesNothing(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "u1", "s1.csv"), "x", time.Now().Add(-time.Minute))

	first, err := SyncDir(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Copied)

	second, err := SyncDir(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, Stats{Unchanged: 1}, second)
}

func TestSyncDirMissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "dst")

	stats, err := SyncDir(context.Background(), filepath.Join(t.TempDir(), "missing"), dst)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.NoDirExists(t, dst)
}

func TestSyncDirContinuesAfterFileFailure(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	now := time.Now()

	writeFile(t, filepath.Join(src, "a", "blocked.csv"), "x", now)
	writeFile(t, filepath.Join(src, "b", "ok.csv"), "y", now)
	// A plain file where the parent directory should be makes the copy fail.
	writeFile(t, filepath.Join(dst, "a"), "not a dir", now)

	stats, err := SyncDir(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, Stats{Copied: 1, Failed: 1}, stats)
	assert.Equal(t, "y", readFile(t, filepath.Join(dst, "b", "ok.csv")))
}

func TestSyncAllUnavailableRoot(t *testing.T) {
	s := NewSyncer(filepath.Join(t.TempDir(), "not-mounted"))
	assert.False(t, s.Available())

	_, err := s.SyncAll(context.Background(), []Pair{{Source: t.TempDir(), Subdir: "chat_finetuning"}})
	assert.ErrorIs(t, err, ErrMirrorUnavailable)
}

func TestSyncAllPairs(t *testing.T) {
	root := t.TempDir()
	chat := t.TempDir()
	gameplay := t.TempDir()
	now := time.Now()
	writeFile(t, filepath.Join(chat, "u1", "c.json"), "{}", now)
	writeFile(t, filepath.Join(gameplay, "u1", "s.csv"), "a", now)
	writeFile(t, filepath.Join(gameplay, "profiles", "u1", "p.json"), "{}", now)

	s := NewSyncer(root)
	stats, err := s.SyncAll(context.Background(), []Pair{
		{Source: chat, Subdir: "chat_finetuning"},
		{Source: gameplay, Subdir: "gameplay_data"},
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Copied: 3}, stats)
	assert.FileExists(t, filepath.Join(root, "chat_finetuning", "u1", "c.json"))
	assert.FileExists(t, filepath.Join(root, "gameplay_data", "profiles", "u1", "p.json"))
}

func TestSyncDirCopiesSymlinkedFileContent(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	outside := t.TempDir()
	now := time.Now()

	writeFile(t, filepath.Join(outside, "target.csv"), "linked", now)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "u1"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(outside, "target.csv"), filepath.Join(src, "u1", "s1.csv")))
	// Dangling links and linked directories are left alone.
	require.NoError(t, os.Symlink(filepath.Join(outside, "gone.csv"), filepath.Join(src, "u1", "dangling.csv")))
	require.NoError(t, os.Symlink(outside, filepath.Join(src, "linked-dir")))

	stats, err := SyncDir(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, Stats{Copied: 1}, stats)

	info, err := os.Lstat(filepath.Join(dst, "u1", "s1.csv"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
	assert.Equal(t, "linked", readFile(t, filepath.Join(dst, "u1", "s1.csv")))
	assert.NoFileExists(t, filepath.Join(dst, "u1", "dangling.csv"))
	assert.NoDirExists(t, filepath.Join(dst, "linked-dir"))
}
