package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/andresuchdata/pendulum-sync/internal/cache"
	"github.com/andresuchdata/pendulum-sync/internal/config"
	"github.com/andresuchdata/pendulum-sync/internal/download"
	"github.com/andresuchdata/pendulum-sync/internal/mirror"
	"github.com/andresuchdata/pendulum-sync/internal/report"
	"github.com/andresuchdata/pendulum-sync/internal/storage"
	"github.com/rs/zerolog/log"
)

// Orchestrator runs download, mirror sync and report generation in order.
type Orchestrator struct {
	store      storage.ObjectStorage
	paths      config.PathsConfig
	downloader *download.Downloader
	syncer     *mirror.Syncer
	reports    cache.ReportCache
}

// NewOrchestrator wires the pipeline steps from cfg. A nil reportCache
// disables publishing.
func NewOrchestrator(store storage.ObjectStorage, cfg *config.Config, reportCache cache.ReportCache) *Orchestrator {
	if reportCache == nil {
		reportCache = cache.NewNoopReportCache()
	}
	return &Orchestrator{
		store: store,
		paths: cfg.Paths,
		downloader: download.NewDownloader(store, download.Options{
			Prefix:  cfg.Storage.Prefix,
			Match:   download.MatchMode(cfg.Download.CategoryMatch),
			Workers: cfg.Download.Workers,
		}),
		syncer:  mirror.NewSyncer(cfg.Paths.MirrorRoot),
		reports: reportCache,
	}
}

// Categories lists what gets downloaded, in order.
func (o *Orchestrator) Categories() []download.Category {
	return []download.Category{
		{Name: CategoryChat, Folder: "chat_finetuning", Extensions: []string{".json"}, OutputDir: o.paths.ChatDir},
		{Name: CategorySessions, Folder: "sessions", Extensions: []string{".csv", ".json"}, OutputDir: o.paths.GameplayDir},
		{Name: CategoryProfile, Folder: "profile", Extensions: []string{".json"}, OutputDir: o.paths.ProfilesDir()},
	}
}

// Run executes the full pipeline. Only an unreachable store, a failed listing
// or an I/O failure writing reports ends the run early; everything else is
// logged and counted.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{StartedAt: time.Now()}

	dl, err := o.DownloadAll(ctx)
	result.Download = dl
	if err != nil {
		return result, err
	}

	mr, err := o.Mirror(ctx)
	result.Mirror = mr
	if err != nil {
		if ctx.Err() != nil {
			return result, err
		}
		log.Warn().Err(err).Msg("mirror sync incomplete")
	}

	rr, err := o.Reports(ctx)
	result.Reports = rr
	if err != nil {
		return result, err
	}

	result.CompletedAt = time.Now()
	log.Info().
		Int("downloaded", result.Download.Total.Downloaded).
		Int("skipped", result.Download.Total.Skipped).
		Int("failed", result.Download.Total.Failed).
		Int("mirrored", result.Mirror.Stats.Copied).
		Bool("mirror_skipped", result.Mirror.Skipped).
		Dur("duration", result.Duration()).
		Msg("sync complete")

	return result, nil
}

// DownloadAll checks the store, prepares the local tree and downloads every
// category.
func (o *Orchestrator) DownloadAll(ctx context.Context) (DownloadResult, error) {
	var result DownloadResult

	if err := o.store.Ping(ctx); err != nil {
		return result, fmt.Errorf("connect to storage: %w", err)
	}
	log.Info().Msg("connected to storage")

	for _, dir := range []string{o.paths.ChatDir, o.paths.GameplayDir, o.paths.ProfilesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	for _, cat := range o.Categories() {
		log.Info().Str("category", cat.Name).Str("output", cat.OutputDir).Msg("downloading category")
		stats, err := o.downloader.Download(ctx, cat)
		result.add(cat.Name, stats)
		if err != nil {
			return result, err
		}
	}

	log.Info().
		Int("downloaded", result.Total.Downloaded).
		Int("skipped", result.Total.Skipped).
		Int("failed", result.Total.Failed).
		Msg("download summary")
	return result, nil
}

// Mirror copies the local trees to the mirror root, skipping the step when
// the root is not mounted.
func (o *Orchestrator) Mirror(ctx context.Context) (MirrorResult, error) {
	pairs := []mirror.Pair{
		{Source: o.paths.ChatDir, Subdir: MirrorChatSubdir},
		{Source: o.paths.GameplayDir, Subdir: MirrorGameplaySubdir},
	}

	stats, err := o.syncer.SyncAll(ctx, pairs)
	if errors.Is(err, mirror.ErrMirrorUnavailable) {
		log.Info().Str("root", o.syncer.Root()).Msg("mirror root not mounted, skipping sync")
		return MirrorResult{Skipped: true}, nil
	}

	result := MirrorResult{Stats: stats}
	if err != nil {
		return result, err
	}

	log.Info().
		Int("copied", stats.Copied).
		Int("unchanged", stats.Unchanged).
		Int("failed", stats.Failed).
		Msg("mirror sync complete")
	return result, nil
}

// Reports regenerates both summaries and publishes them to the report cache.
// Cached reports are dropped first so a failed generation never leaves the
// previous run's summary being served as current.
func (o *Orchestrator) Reports(ctx context.Context) (ReportResult, error) {
	var result ReportResult

	if err := o.reports.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("could not clear cached reports")
	}

	chat, chatPath, err := report.WriteChat(o.paths.ChatDir)
	if err != nil {
		return result, fmt.Errorf("chat report: %w", err)
	}
	result.Chat, result.ChatPath = chat, chatPath
	o.publish(ctx, report.DataTypeChat, chat)
	log.Info().
		Str("path", chatPath).
		Int("users", len(chat.Users)).
		Int("conversations", chat.TotalConversations).
		Int("messages", chat.TotalMessages).
		Int("tokens", chat.TotalTokens).
		Int("fallbacks", chat.FallbackCount).
		Msg("chat report written")

	gameplay, gameplayPath, err := report.WriteGameplay(o.paths.GameplayDir)
	if err != nil {
		return result, fmt.Errorf("gameplay report: %w", err)
	}
	result.Gameplay, result.GameplayPath = gameplay, gameplayPath
	o.publish(ctx, report.DataTypeGameplay, gameplay)
	log.Info().
		Str("path", gameplayPath).
		Int("users", len(gameplay.Users)).
		Int("sessions", gameplay.TotalSessions).
		Int("metadata_files", gameplay.TotalMetadataFiles).
		Msg("gameplay report written")

	return result, nil
}

func (o *Orchestrator) publish(ctx context.Context, dataType string, summary any) {
	if err := o.reports.Publish(ctx, dataType, summary); err != nil {
		log.Warn().Err(err).Str("data_type", dataType).Msg("could not publish report to cache")
	}
}
