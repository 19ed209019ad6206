package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/pendulum-sync/internal/config"
)

// ErrUnreachable marks failures to connect to the bucket at all.
var ErrUnreachable = errors.New("object store unreachable")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key     string
	Size    int64
	Updated time.Time
}

// ObjectStorage captures the bucket operations the download pipeline needs.
type ObjectStorage interface {
	// Ping checks that the bucket can be reached with the configured credentials.
	Ping(ctx context.Context) error
	// ListObjects returns every object under prefix. Pagination is handled internally.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// DownloadObject writes the object's bytes to destPath, replacing any existing file.
	DownloadObject(ctx context.Context, key string, destPath string) error
	Close() error
}

// New builds the provider selected in cfg.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Provider {
	case config.ProviderGCS, "":
		return NewGCSClient(ctx, GCSConfig{
			Bucket:          cfg.Bucket,
			CredentialsFile: cfg.CredentialsFile,
			Prefix:          cfg.Prefix,
		})
	case config.ProviderS3:
		return NewS3Client(S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Provider)
	}
}
