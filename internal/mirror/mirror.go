// Package mirror keeps a secondary copy of the local data trees, typically on a
// network share that may or may not be mounted.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// ErrMirrorUnavailable is returned when the mirror root is not present.
var ErrMirrorUnavailable = errors.New("mirror root not available")

// Pair maps a local source tree to a directory under the mirror root.
type Pair struct {
	Source string
	Subdir string
}

type Stats struct {
	Copied    int
	Unchanged int
	Failed    int
}

func (s *Stats) add(other Stats) {
	s.Copied += other.Copied
	s.Unchanged += other.Unchanged
	s.Failed += other.Failed
}

type Syncer struct {
	root string
}

func NewSyncer(root string) *Syncer {
	return &Syncer{root: root}
}

func (s *Syncer) Root() string {
	return s.root
}

// Available reports whether the mirror root exists and is a directory.
func (s *Syncer) Available() bool {
	if s.root == "" {
		return false
	}
	info, err := os.Stat(s.root)
	return err == nil && info.IsDir()
}

// SyncAll mirrors every pair into the mirror root.
func (s *Syncer) SyncAll(ctx context.Context, pairs []Pair) (Stats, error) {
	var total Stats
	if !s.Available() {
		return total, fmt.Errorf("%w: %s", ErrMirrorUnavailable, s.root)
	}

	for _, p := range pairs {
		stats, err := SyncDir(ctx, p.Source, filepath.Join(s.root, p.Subdir))
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// SyncDir copies every regular file under src to the same relative path under
// dst when the destination is missing or older than the source. Symlinks to
// regular files are copied as their target's content; symlinked directories
// are not followed. Only content is copied; permissions and timestamps are
// left to the destination filesystem. Per-file failures are logged and
// counted without stopping the walk.
func SyncDir(ctx context.Context, src, dst string) (Stats, error) {
	var stats Stats

	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return stats, nil
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return stats, fmt.Errorf("failed to create mirror directory %s: %w", dst, err)
	}

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == src {
				return walkErr
			}
			stats.Failed++
			log.Warn().Err(walkErr).Str("path", path).Msg("could not read during mirror sync")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !isFile(path, d) {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			stats.Failed++
			log.Warn().Err(err).Str("path", path).Msg("could not resolve relative path")
			return nil
		}

		copied, err := syncFile(path, filepath.Join(dst, rel))
		switch {
		case err != nil:
			stats.Failed++
			log.Warn().Err(err).Str("path", rel).Msg("could not sync file")
		case copied:
			stats.Copied++
			log.Info().Str("path", rel).Msg("synced")
		default:
			stats.Unchanged++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("mirror %s to %s: %w", src, dst, err)
	}
	return stats, nil
}

func isFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func syncFile(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}

	if !needsCopy(srcInfo, dst) {
		return false, nil
	}
	return true, copyContents(src, dst)
}

// needsCopy is true when dst is missing, cannot be inspected, or is strictly
// older than the source.
func needsCopy(srcInfo fs.FileInfo, dst string) bool {
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return true
	}
	return srcInfo.ModTime().After(dstInfo.ModTime())
}

func copyContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
