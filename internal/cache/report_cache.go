// Package cache publishes generated summary reports to Redis so the HTTP API
// can serve them without touching the data directories.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/pendulum-sync/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	reportKeyPrefix = "reports:"
	scanBatchSize   = 100
)

type ReportCache interface {
	// Publish stores summary under its data type, replacing the previous one.
	Publish(ctx context.Context, dataType string, summary any) error
	// Get returns the cached summary document, if any.
	Get(ctx context.Context, dataType string) (json.RawMessage, bool, error)
	InvalidateAll(ctx context.Context) error
	Close() error
}

type redisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopReportCache struct{}

// NewReportCache returns a Redis-backed cache when caching is enabled and a
// noop cache otherwise.
func NewReportCache(cfg config.CacheConfig) (ReportCache, error) {
	if !cfg.Enabled {
		return NewNoopReportCache(), nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisReportCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopReportCache() ReportCache {
	return &noopReportCache{}
}

func reportKey(dataType string) string {
	return reportKeyPrefix + dataType
}

func (c *redisReportCache) Publish(ctx context.Context, dataType string, summary any) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode %s report: %w", dataType, err)
	}

	if err := c.client.Set(ctx, reportKey(dataType), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisReportCache) Get(ctx context.Context, dataType string) (json.RawMessage, bool, error) {
	payload, err := c.client.Get(ctx, reportKey(dataType)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return json.RawMessage(payload), true, nil
}

func (c *redisReportCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, reportKeyPrefix, scanBatchSize)
}

func (c *redisReportCache) Close() error {
	return c.client.Close()
}

func (n *noopReportCache) Publish(ctx context.Context, dataType string, summary any) error {
	return nil
}

func (n *noopReportCache) Get(ctx context.Context, dataType string) (json.RawMessage, bool, error) {
	return nil, false, nil
}

func (n *noopReportCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func (n *noopReportCache) Close() error {
	return nil
}
