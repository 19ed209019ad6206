package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSConfig encapsulates the connection info for a Google Cloud Storage
// (Firebase Storage) bucket.
type GCSConfig struct {
	Bucket string
	// CredentialsFile is a service-account key. Empty falls back to
	// application default credentials.
	CredentialsFile string
	// Prefix scopes the reachability check to the listed key space.
	Prefix string
}

// GCSClient implements ObjectStorage for Google Cloud Storage.
type GCSClient struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
	prefix string
}

// NewGCSClient builds a client scoped to cfg.Bucket using the service account in
// cfg.CredentialsFile.
func NewGCSClient(ctx context.Context, cfg GCSConfig) (*GCSClient, error) {
	return newGCSClient(ctx, cfg)
}

func newGCSClient(ctx context.Context, cfg GCSConfig, opts ...option.ClientOption) (*GCSClient, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket must be provided")
	}

	if cfg.CredentialsFile != "" {
		keyJSON, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: make sure the service account key exists at %s: %v",
				ErrUnreachable, cfg.CredentialsFile, err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(keyJSON, gcs.ScopeReadOnly)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to parse service account key %s: %v",
				ErrUnreachable, cfg.CredentialsFile, err)
		}
		opts = append(opts, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to create storage client: %v", ErrUnreachable, err)
	}

	return &GCSClient{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Ping reads at most one object under the configured prefix. Only
// storage.objects.list is required, the same permission ListObjects needs.
// An empty listing counts as reachable.
func (c *GCSClient) Ping(ctx context.Context) error {
	it := c.bucket.Objects(ctx, &gcs.Query{Prefix: c.prefix})
	it.PageInfo().MaxSize = 1

	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("%w: bucket %s: %v", ErrUnreachable, c.name, err)
	}
	return nil
}

// ListObjects lists all objects for a given prefix.
func (c *GCSClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := c.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})

	results := make([]ObjectInfo, 0)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list %s/%s failed: %w", c.name, prefix, err)
		}
		// Synthetic directory entries carry only a Prefix.
		if attrs.Name == "" {
			continue
		}
		results = append(results, ObjectInfo{
			Key:     attrs.Name,
			Size:    attrs.Size,
			Updated: attrs.Updated,
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *GCSClient) DownloadObject(ctx context.Context, key, destPath string) error {
	r, err := c.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("gcs open %s failed: %w", key, err)
	}
	defer r.Close()

	return writeObject(destPath, r)
}

func (c *GCSClient) Close() error {
	return c.client.Close()
}

var _ ObjectStorage = (*GCSClient)(nil)
