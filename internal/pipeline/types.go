package pipeline

import (
	"time"

	"github.com/andresuchdata/pendulum-sync/internal/download"
	"github.com/andresuchdata/pendulum-sync/internal/mirror"
	"github.com/andresuchdata/pendulum-sync/internal/report"
)

// Category names, in the order they are downloaded.
const (
	CategoryChat     = "chat_finetuning"
	CategorySessions = "sessions"
	CategoryProfile  = "profile"
)

// Subdirectories created under the mirror root.
const (
	MirrorChatSubdir     = "chat_finetuning"
	MirrorGameplaySubdir = "gameplay_data"
)

// CategoryResult is the download outcome for a single category.
type CategoryResult struct {
	Category string
	Stats    download.Stats
}

// DownloadResult aggregates the download step across categories.
type DownloadResult struct {
	Categories []CategoryResult
	Total      download.Stats
}

func (r *DownloadResult) add(name string, stats download.Stats) {
	r.Categories = append(r.Categories, CategoryResult{Category: name, Stats: stats})
	r.Total.Downloaded += stats.Downloaded
	r.Total.Skipped += stats.Skipped
	r.Total.Failed += stats.Failed
}

// MirrorResult is the mirror step outcome. Skipped is set when the mirror
// root was not mounted.
type MirrorResult struct {
	Stats   mirror.Stats
	Skipped bool
}

// ReportResult holds the freshly written summaries and their locations.
type ReportResult struct {
	Chat         *report.ChatSummary
	ChatPath     string
	Gameplay     *report.GameplaySummary
	GameplayPath string
}

// RunResult describes one full run.
type RunResult struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Download    DownloadResult
	Mirror      MirrorResult
	Reports     ReportResult
}

// Duration is the wall time of the run.
func (r *RunResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
