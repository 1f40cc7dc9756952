package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

const (
	reportKeyPrefix    = "forecast:"
	latestReportKey    = reportKeyPrefix + "report:latest"
	dashboardKeyPrefix = reportKeyPrefix + "dashboard:"
)

// ReportCache keeps the latest report envelope and its dashboard projections.
type ReportCache interface {
	GetLatestReport(ctx context.Context) (*domain.ReportEnvelope, bool, error)
	SetLatestReport(ctx context.Context, env *domain.ReportEnvelope) error
	GetDashboard(ctx context.Context, topN int) (*domain.DashboardData, bool, error)
	SetDashboard(ctx context.Context, topN int, data *domain.DashboardData) error
	InvalidateAll(ctx context.Context) error
}

type redisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopReportCache struct{}

// NewReportCache connects to redis when caching is enabled and returns a no-op cache otherwise.
func NewReportCache(cfg config.CacheConfig) (ReportCache, error) {
	if !cfg.Enabled {
		return &noopReportCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return &redisReportCache{client: client, ttl: ttl}, nil
}

// NewRedisReportCache wraps an existing client.
func NewRedisReportCache(client *redis.Client, ttl time.Duration) ReportCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisReportCache{client: client, ttl: ttl}
}

func NewNoopReportCache() ReportCache {
	return &noopReportCache{}
}

func (c *redisReportCache) GetLatestReport(ctx context.Context) (*domain.ReportEnvelope, bool, error) {
	var env domain.ReportEnvelope
	ok, err := c.get(ctx, latestReportKey, &env)
	if !ok || err != nil {
		return nil, false, err
	}
	return &env, true, nil
}

func (c *redisReportCache) SetLatestReport(ctx context.Context, env *domain.ReportEnvelope) error {
	return c.set(ctx, latestReportKey, env)
}

func (c *redisReportCache) GetDashboard(ctx context.Context, topN int) (*domain.DashboardData, bool, error) {
	var data domain.DashboardData
	ok, err := c.get(ctx, dashboardKey(topN), &data)
	if !ok || err != nil {
		return nil, false, err
	}
	return &data, true, nil
}

func (c *redisReportCache) SetDashboard(ctx context.Context, topN int, data *domain.DashboardData) error {
	return c.set(ctx, dashboardKey(topN), data)
}

func (c *redisReportCache) InvalidateAll(ctx context.Context) error {
	n, err := deleteKeysWithPrefix(ctx, c.client, reportKeyPrefix, scanBatchSize)
	if err != nil {
		return err
	}
	logger.Log.Debug().Int64("keys", n).Msg("report cache invalidated")
	return nil
}

func (c *redisReportCache) get(ctx context.Context, key string, dst interface{}) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *redisReportCache) set(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopReportCache) GetLatestReport(ctx context.Context) (*domain.ReportEnvelope, bool, error) {
	return nil, false, nil
}

func (n *noopReportCache) SetLatestReport(ctx context.Context, env *domain.ReportEnvelope) error {
	return nil
}

func (n *noopReportCache) GetDashboard(ctx context.Context, topN int) (*domain.DashboardData, bool, error) {
	return nil, false, nil
}

func (n *noopReportCache) SetDashboard(ctx context.Context, topN int, data *domain.DashboardData) error {
	return nil
}

func (n *noopReportCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func dashboardKey(topN int) string {
	return fmt.Sprintf("%stop%d", dashboardKeyPrefix, topN)
}
