// Package storagetest provides an in-memory storage.ObjectStorage for tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/pendulum-sync/internal/storage"
)

// Memory is a bucket held in a map. It is safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	objects   map[string][]byte
	updated   map[string]time.Time
	failures  map[string]error
	pingErr   error
	listErr   error
	lists     int
	downloads []string
}

func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[string][]byte),
		updated:  make(map[string]time.Time),
		failures: make(map[string]error),
	}
}

// Put stores data under key, replacing any previous content.
func (m *Memory) Put(key string, data []byte) {
	m.PutAt(key, data, time.Now().UTC())
}

// PutAt is Put with an explicit last-modified time.
func (m *Memory) PutAt(key string, data []byte, updated time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	m.updated[key] = updated
}

// FailDownload makes every download of key return err.
func (m *Memory) FailDownload(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key] = err
}

func (m *Memory) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

func (m *Memory) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// Lists returns how many listings were served.
func (m *Memory) Lists() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

// Downloads returns the keys fetched so far, sorted.
func (m *Memory) Downloads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.downloads...)
	sort.Strings(out)
	return out
}

// ResetDownloads clears the download log.
func (m *Memory) ResetDownloads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pingErr != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnreachable, m.pingErr)
	}
	return nil
}

func (m *Memory) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	results := make([]storage.ObjectInfo, 0, len(keys))
	for _, key := range keys {
		results = append(results, storage.ObjectInfo{
			Key:     key,
			Size:    int64(len(m.objects[key])),
			Updated: m.updated[key],
		})
	}
	return results, nil
}

func (m *Memory) DownloadObject(ctx context.Context, key, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	data, ok := m.objects[key]
	failure := m.failures[key]
	if ok && failure == nil {
		m.downloads = append(m.downloads, key)
	}
	m.mu.Unlock()

	if failure != nil {
		return failure
	}
	if !ok {
		return errors.New("object not found: " + key)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (m *Memory) Close() error {
	return nil
}

var _ storage.ObjectStorage = (*Memory)(nil)
