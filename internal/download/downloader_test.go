package download

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/pendulum-sync/internal/storage/storagetest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryMatch(t *testing.T) {
	chat := Category{Name: "chat", Folder: "chat_finetuning", Extensions: []string{".json"}}
	profile := Category{Name: "profile", Folder: "profile", Extensions: []string{".json"}}

	tests := []struct {
		name     string
		cat      Category
		key      string
		mode     MatchMode
		userID   string
		filename string
		ok       bool
	}{
		{"chat record", chat, "users/u1/chat_finetuning/conv1.json", MatchSegment, "u1", "conv1.json", true},
		{"wrong extension", chat, "users/u1/chat_finetuning/conv1.csv", MatchSegment, "", "", false},
		{"wrong folder", chat, "users/u1/sessions/s1.json", MatchSegment, "", "", false},
		{"too few segments", chat, "chat_finetuning/conv1.json", MatchSubstring, "", "", false},
		{"nested folder", chat, "users/u1/archive/chat_finetuning/old/c.json", MatchSegment, "u1", "c.json", true},
		{"segment ignores user id collision", profile, "users/profiler/sessions/s1_meta.json", MatchSegment, "", "", false},
		{"substring accepts user id collision", profile, "users/profiler/sessions/s1_meta.json", MatchSubstring, "profiler", "s1_meta.json", true},
		{"segment ignores partial folder name", profile, "users/u1/profile_old/p.json", MatchSegment, "", "", false},
		{"substring accepts partial folder name", profile, "users/u1/profile_old/p.json", MatchSubstring, "u1", "p.json", true},
		{"parent traversal rejected", chat, "users/../chat_finetuning/x.json", MatchSegment, "", "", false},
		{"empty user rejected", chat, "users//chat_finetuning/x.json", MatchSegment, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, filename, ok := tt.cat.Match(tt.key, tt.mode)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.userID, userID)
			assert.Equal(t, tt.filename, filename)
		})
	}
}

func newGameplayCategory(root string) Category {
	return Category{
		Name:       "sessions",
		Folder:     "sessions",
		Extensions: []string{".csv", ".json"},
		OutputDir:  root,
	}
}

func TestDownloadNewObjects(t *testing.T) {
	store := storagetest.NewMemory()
	store.Put("users/u1/sessions/s1.csv", []byte("t,theta\n0,0.1\n"))
	store.Put("users/u1/sessions/s1_meta.json", []byte(`{"level":3}`))
	store.Put("users/u2/sessions/s9.csv", []byte("t,theta\n"))
	store.Put("users/u2/chat_finetuning/c.json", []byte(`{}`))
	store.Put("users/u2/sessions/notes.txt", []byte("ignored"))

	root := t.TempDir()
	d := NewDownloader(store, Options{Prefix: "users/", Workers: 3})

	stats, err := d.Download(context.Background(), newGameplayCategory(root))
	require.NoError(t, err)
	assert.Equal(t, Stats{Downloaded: 3}, stats)

	data, err := os.ReadFile(filepath.Join(root, "u1", "s1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "t,theta\n0,0.1\n", string(data))
	assert.FileExists(t, filepath.Join(root, "u1", "s1_meta.json"))
	assert.FileExists(t, filepath.Join(root, "u2", "s9.csv"))
	assert.NoFileExists(t, filepath.Join(root, "u2", "c.json"))
	assert.NoFileExists(t, filepath.Join(root, "u2", "notes.txt"))
}

func TestDownloadIsIdempotent(t *testing.T) {
	store := storagetest.NewMemory()
	store.Put("users/u1/sessions/s1.csv", []byte("a,b\n1,2\n"))
	store.Put("users/u2/sessions/s2.csv", []byte("a,b\n"))

	root := t.TempDir()
	d := NewDownloader(store, Options{Prefix: "users/", Workers: 2})
	cat := newGameplayCategory(root)

	first, err := d.Download(context.Background(), cat)
	require.NoError(t, err)
	assert.Equal(t, Stats{Downloaded: 2}, first)

	store.ResetDownloads()
	second, err := d.Download(context.Background(), cat)
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 2}, second)
	assert.Empty(t, store.Downloads())
}

func TestDownloadReplacesSizeMismatch(t *testing.T) {
	store := storagetest.NewMemory()
	store.Put("users/u1/sessions/s1.csv", []byte("fresh,data\n"))

	root := t.TempDir()
	localPath := filepath.Join(root, "u1", "s1.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(localPath), 0o755))
	require.NoError(t, os.WriteFile(localPath, []byte("stale"), 0o644))

	d := NewDownloader(store, Options{Prefix: "users/"})
	stats, err := d.Download(context.Background(), newGameplayCategory(root))
	require.NoError(t, err)
	assert.Equal(t, Stats{Downloaded: 1}, stats)

	data, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, "fresh,data\n", string(data))
}

func TestDownloadSkipsSameSizeEvenIfContentDiffers(t *testing.T) {
	store := storagetest.NewMemory()
	store.Put("users/u1/sessions/s1.csv", []byte("1234"))

	root := t.TempDir()
	localPath := filepath.Join(root, "u1", "s1.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(localPath), 0o755))
	require.NoError(t, os.WriteFile(localPath, []byte("abcd"), 0o644))

	d := NewDownloader(store, Options{Prefix: "users/"})
	stats, err := d.Download(context.Background(), newGameplayCategory(root))
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 1}, stats)

	data, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))
}

func TestDownloadIsolatesFailures(t *testing.T) {
	store := storagetest.NewMemory()
	store.Put("users/u1/sessions/bad.csv", []byte("x"))
	store.Put("users/u1/sessions/good.csv", []byte("y"))
	store.FailDownload("users/u1/sessions/bad.csv", errors.New("503 backend error"))

	root := t.TempDir()
	d := NewDownloader(store, Options{Prefix: "users/", Workers: 1})

	stats, err := d.Download(context.Background(), newGameplayCategory(root))
	require.NoError(t, err)
	assert.Equal(t, Stats{Downloaded: 1, Failed: 1}, stats)
	assert.FileExists(t, filepath.Join(root, "u1", "good.csv"))
	assert.NoFileExists(t, filepath.Join(root, "u1", "bad.csv"))
}

func TestDownloadListingFailure(t *testing.T) {
	store := storagetest.NewMemory()
	store.SetListError(errors.New("permission denied"))

	d := NewDownloader(store, Options{Prefix: "users/"})
	_, err := d.Download(context.Background(), newGameplayCategory(t.TempDir()))
	assert.ErrorContains(t, err, "permission denied")
}

func TestDownloadSameDestinationMatchesSequentialOrder(t *testing.T) {
	store := storagetest.NewMemory()
	// Both keys land on <root>/u1/s1.csv; the later key in listing order wins.
	store.Put("users/u1/sessions/a/s1.csv", []byte("first"))
	store.Put("users/u1/sessions/b/s1.csv", []byte("second!"))

	root := t.TempDir()
	d := NewDownloader(store, Options{Prefix: "users/", Workers: 8})

	stats, err := d.Download(context.Background(), newGameplayCategory(root))
	require.NoError(t, err)
	assert.Equal(t, Stats{Downloaded: 2}, stats)

	data, err := os.ReadFile(filepath.Join(root, "u1", "s1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "second!", string(data))
}

func TestDownloadCancelled(t *testing.T) {
	store := storagetest.NewMemory()
	store.Put("users/u1/sessions/s1.csv", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDownloader(store, Options{Prefix: "users/"})
	_, err := d.Download(ctx, newGameplayCategory(t.TempDir()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloadLogsRemoteUpdateTime(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	store := storagetest.NewMemory()
	store.PutAt("users/u1/sessions/s1.csv", []byte("a,b"), time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	d := NewDownloader(store, Options{Prefix: "users/", Workers: 1})
	_, err := d.Download(context.Background(), newGameplayCategory(t.TempDir()))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"key":"users/u1/sessions/s1.csv"`)
	assert.Contains(t, buf.String(), `"updated":"2025-01-02T03:04:05Z"`)
}
