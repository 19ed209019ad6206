package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/andresuchdata/pendulum-sync/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Stats counts the outcome of one category download.
type Stats struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Options tunes a Downloader.
type Options struct {
	Prefix  string
	Match   MatchMode
	Workers int
}

// Downloader copies matching bucket objects into a per-user local tree.
type Downloader struct {
	client  storage.ObjectStorage
	prefix  string
	match   MatchMode
	workers int
}

func NewDownloader(client storage.ObjectStorage, opts Options) *Downloader {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	match := opts.Match
	if match == "" {
		match = MatchSegment
	}
	return &Downloader{
		client:  client,
		prefix:  opts.Prefix,
		match:   match,
		workers: workers,
	}
}

// job holds every object that resolves to the same local path, in listing
// order, so they are applied one after another exactly as a sequential pass would.
type job struct {
	localPath string
	userID    string
	objects   []storage.ObjectInfo
}

// Download lists the bucket and fetches every object of cat that is missing
// locally or whose local size differs. A failed object is logged and counted;
// only listing errors and cancellation are returned.
func (d *Downloader) Download(ctx context.Context, cat Category) (Stats, error) {
	objects, err := d.client.ListObjects(ctx, d.prefix)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list objects for %s under %q: %w", cat.Name, d.prefix, err)
	}

	jobs := d.plan(cat, objects)

	var downloaded, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for _, obj := range j.objects {
				if err := gctx.Err(); err != nil {
					return err
				}
				fetched, err := d.fetch(gctx, obj, j.localPath)
				switch {
				case err != nil:
					failed.Add(1)
					log.Warn().Err(err).
						Str("category", cat.Name).
						Str("key", obj.Key).
						Str("user_id", j.userID).
						Msg("download failed, continuing")
				case fetched:
					downloaded.Add(1)
				default:
					skipped.Add(1)
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()
	stats := Stats{
		Downloaded: int(downloaded.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	if waitErr != nil {
		return stats, fmt.Errorf("download %s interrupted: %w", cat.Name, waitErr)
	}
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("download %s interrupted: %w", cat.Name, err)
	}
	return stats, nil
}

func (d *Downloader) plan(cat Category, objects []storage.ObjectInfo) []*job {
	byPath := make(map[string]*job)
	jobs := make([]*job, 0)
	for _, obj := range objects {
		userID, filename, ok := cat.Match(obj.Key, d.match)
		if !ok {
			continue
		}

		localPath := filepath.Join(cat.OutputDir, userID, filename)
		j, seen := byPath[localPath]
		if !seen {
			j = &job{localPath: localPath, userID: userID}
			byPath[localPath] = j
			jobs = append(jobs, j)
		}
		j.objects = append(j.objects, obj)
	}
	return jobs
}

// fetch downloads obj unless a local file of the same size already exists.
func (d *Downloader) fetch(ctx context.Context, obj storage.ObjectInfo, localPath string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return false, fmt.Errorf("failed to create user directory for %s: %w", localPath, err)
	}

	if info, err := os.Stat(localPath); err == nil && info.Mode().IsRegular() && info.Size() == obj.Size {
		log.Debug().Str("key", obj.Key).Time("updated", obj.Updated).Msg("already downloaded")
		return false, nil
	}

	log.Info().
		Str("key", obj.Key).
		Int64("size", obj.Size).
		Time("updated", obj.Updated).
		Msg("downloading")
	if err := d.client.DownloadObject(ctx, obj.Key, localPath); err != nil {
		return false, err
	}
	return true, nil
}
