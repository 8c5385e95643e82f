package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/LJTian/InsightHub/internal/domain"
)

// Store 同时承担数据源注册表、条目去重存储与采集日志三张表的读写
type Store struct {
	DB    *gorm.DB
	Redis *redis.Client

	logger *slog.Logger
}

// NewStore 打开 Postgres 并迁移管道自己的表；redisAddr 为空时不启用缓存
func NewStore(dsn, redisAddr string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.AutoMigrate(&InsightSource{}, &InsightItem{}, &IngestLog{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	s := &Store{DB: db, logger: log}

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed, cache may be unavailable", "addr", redisAddr, "error", err)
		}
		s.Redis = rdb
	}

	return s, nil
}

// Close 释放数据库连接池与 Redis 连接
func (s *Store) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度。
// 这是对上游 processor 的双保险。
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// sanitizeOptional 对可空文本做同样的保护，清洗后为空则写 NULL
func sanitizeOptional(p *string, limit int) *string {
	if p == nil {
		return nil
	}
	v := truncateRunesDB(toValidUTF8(*p), limit)
	if v == "" {
		return nil
	}
	return &v
}

// fitsURLColumn URL 列不截断，放不下的值整体丢弃
func fitsURLColumn(u string) bool {
	return u != "" && utf8.ValidString(u) && utf8.RuneCountInString(u) <= domain.MaxURLLength
}

func urlOrNil(p *string) *string {
	if p == nil || !fitsURLColumn(*p) {
		return nil
	}
	return p
}
