package report

import (
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

type GameplayUserStats struct {
	CSVFiles      int `json:"csv_files"`
	MetadataFiles int `json:"metadata_files"`
	Sessions      int `json:"sessions"`
}

type GameplaySummary struct {
	GeneratedAt        time.Time                     `json:"generated_at"`
	DataType           string                        `json:"data_type"`
	Users              map[string]*GameplayUserStats `json:"users"`
	TotalSessions      int                           `json:"total_sessions"`
	TotalCSVFiles      int                           `json:"total_csv_files"`
	TotalMetadataFiles int                           `json:"total_metadata_files"`
}

// GenerateGameplay counts session CSVs and metadata JSON per user under root,
// leaving out the profiles subtree. Each CSV is one session.
func GenerateGameplay(root string) (*GameplaySummary, error) {
	summary := &GameplaySummary{
		GeneratedAt: now(),
		DataType:    DataTypeGameplay,
		Users:       make(map[string]*GameplayUserStats),
	}

	dirs, err := userDirs(root)
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		userID := dir.Name()
		if userID == ProfilesDirName {
			continue
		}
		userDir := filepath.Join(root, userID)

		csvFiles, err := filesWithSuffix(userDir, ".csv")
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("could not list session files")
			continue
		}
		jsonFiles, err := filesWithSuffix(userDir, ".json")
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("could not list session metadata")
			continue
		}

		summary.Users[userID] = &GameplayUserStats{
			CSVFiles:      len(csvFiles),
			MetadataFiles: len(jsonFiles),
			Sessions:      len(csvFiles),
		}
		summary.TotalSessions += len(csvFiles)
		summary.TotalCSVFiles += len(csvFiles)
		summary.TotalMetadataFiles += len(jsonFiles)
	}

	return summary, nil
}

// WriteGameplay generates the gameplay summary for root and stores it there.
func WriteGameplay(root string) (*GameplaySummary, string, error) {
	summary, err := GenerateGameplay(root)
	if err != nil {
		return nil, "", err
	}
	path, err := Write(root, summary)
	if err != nil {
		return nil, "", err
	}
	return summary, path, nil
}
