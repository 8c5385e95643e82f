package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	latestRunKey = "insights:run:latest"
	latestRunTTL = 7 * 24 * time.Hour
)

// ErrCacheDisabled 未配置 Redis
var ErrCacheDisabled = errors.New("run cache disabled")

// SaveLatestRun 缓存最近一次（非 dry run）执行报告，供 /ingest/latest 查询
func (s *Store) SaveLatestRun(ctx context.Context, report any) error {
	if s.Redis == nil {
		return ErrCacheDisabled
	}
	bs, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	return s.Redis.Set(ctx, latestRunKey, bs, latestRunTTL).Err()
}

// LatestRun 返回缓存的报告原文；没有缓存时 ok 为 false
func (s *Store) LatestRun(ctx context.Context) (json.RawMessage, bool, error) {
	if s.Redis == nil {
		return nil, false, ErrCacheDisabled
	}
	bs, err := s.Redis.Get(ctx, latestRunKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get latest run: %w", err)
	}
	return json.RawMessage(bs), true, nil
}
