// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderGCS = "gcs"
	ProviderS3  = "s3"

	MatchSegment   = "segment"
	MatchSubstring = "substring"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Storage  StorageConfig
	Paths    PathsConfig
	Download DownloadConfig
	Cache    CacheConfig
	Server   ServerConfig
	LogLevel string
}

type StorageConfig struct {
	Provider        string
	Bucket          string
	Prefix          string
	CredentialsFile string
	S3              S3Config
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

type PathsConfig struct {
	ProjectDir  string
	ChatDir     string
	GameplayDir string
	MirrorRoot  string
}

// ProfilesDir is where profile JSON lands, nested under the gameplay tree.
func (p PathsConfig) ProfilesDir() string {
	return filepath.Join(p.GameplayDir, "profiles")
}

type DownloadConfig struct {
	Workers       int
	CategoryMatch string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	ReportTTLSeconds int
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

var (
	once     sync.Once
	instance *Config
	loadErr  error
)

// Load reads .env, defaults and the environment once per process.
func Load() (*Config, error) {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance, loadErr = FromViper(viper.GetViper())
	})

	return instance, loadErr
}

// FromViper builds a Config from v after registering defaults and enabling
// environment lookups on it.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	projectDir := expandHome(v.GetString("PROJECT_DIR"))
	processed := filepath.Join(projectDir, "assets", "processed")

	chatDir := expandHome(v.GetString("CHAT_DIR"))
	if chatDir == "" {
		chatDir = filepath.Join(processed, "chat_finetuning")
	}
	gameplayDir := expandHome(v.GetString("GAMEPLAY_DIR"))
	if gameplayDir == "" {
		gameplayDir = filepath.Join(processed, "gameplay_data")
	}

	cfg := &Config{
		Storage: StorageConfig{
			Provider:        strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_PROVIDER"))),
			Bucket:          strings.TrimSpace(v.GetString("STORAGE_BUCKET")),
			Prefix:          v.GetString("STORAGE_PREFIX"),
			CredentialsFile: expandHome(v.GetString("GOOGLE_APPLICATION_CREDENTIALS")),
			S3: S3Config{
				Endpoint:  v.GetString("S3_ENDPOINT"),
				AccessKey: v.GetString("S3_ACCESS_KEY"),
				SecretKey: v.GetString("S3_SECRET_KEY"),
				Region:    v.GetString("S3_REGION"),
				UseSSL:    v.GetBool("S3_USE_SSL"),
			},
		},
		Paths: PathsConfig{
			ProjectDir:  projectDir,
			ChatDir:     chatDir,
			GameplayDir: gameplayDir,
			MirrorRoot:  expandHome(v.GetString("MIRROR_ROOT")),
		},
		Download: DownloadConfig{
			Workers:       v.GetInt("DOWNLOAD_WORKERS"),
			CategoryMatch: strings.ToLower(strings.TrimSpace(v.GetString("CATEGORY_MATCH"))),
		},
		Cache: CacheConfig{
			Enabled:          v.GetBool("CACHE_ENABLED"),
			RedisURL:         v.GetString("REDIS_URL"),
			RedisHost:        v.GetString("REDIS_HOST"),
			RedisPort:        v.GetString("REDIS_PORT"),
			RedisPassword:    v.GetString("REDIS_PASSWORD"),
			RedisDB:          v.GetInt("REDIS_DB"),
			ReportTTLSeconds: v.GetInt("CACHE_REPORT_TTL_SECONDS"),
		},
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GOOGLE_APPLICATION_CREDENTIALS", "~/.config/firebase/pendulum-service-account.json")
	v.SetDefault("STORAGE_PROVIDER", ProviderGCS)
	v.SetDefault("STORAGE_BUCKET", "the-pendulum-2p0.firebasestorage.app")
	v.SetDefault("STORAGE_PREFIX", "users/")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("PROJECT_DIR", ".")
	v.SetDefault("CHAT_DIR", "")
	v.SetDefault("GAMEPLAY_DIR", "")
	v.SetDefault("MIRROR_ROOT", "/Volumes/home/Solutions/The Pendulum Data")
	v.SetDefault("DOWNLOAD_WORKERS", 4)
	v.SetDefault("CATEGORY_MATCH", MatchSegment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_REPORT_TTL_SECONDS", 86400)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case ProviderGCS:
	case ProviderS3:
		if c.Storage.S3.Endpoint == "" {
			return fmt.Errorf("%w: S3_ENDPOINT is required for the s3 provider", ErrInvalid)
		}
		if c.Storage.S3.AccessKey == "" || c.Storage.S3.SecretKey == "" {
			return fmt.Errorf("%w: S3_ACCESS_KEY and S3_SECRET_KEY are required for the s3 provider", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown STORAGE_PROVIDER %q", ErrInvalid, c.Storage.Provider)
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("%w: STORAGE_BUCKET must be set", ErrInvalid)
	}

	switch c.Download.CategoryMatch {
	case MatchSegment, MatchSubstring:
	default:
		return fmt.Errorf("%w: unknown CATEGORY_MATCH %q", ErrInvalid, c.Download.CategoryMatch)
	}

	if c.Download.Workers < 1 {
		return fmt.Errorf("%w: DOWNLOAD_WORKERS must be at least 1, got %d", ErrInvalid, c.Download.Workers)
	}

	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
