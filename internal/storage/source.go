package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/InsightHub/internal/domain"
)

// InsightSource 外部 RSS/Atom 数据源
type InsightSource struct {
	ID                  string   `gorm:"primaryKey;size:64" json:"id"`
	Name                string   `gorm:"size:128" json:"name"`
	FeedURL             string   `gorm:"size:1024" json:"feedUrl"`
	IsActive            bool     `gorm:"index" json:"isActive"`
	DefaultCategory     *string  `gorm:"size:64" json:"defaultCategory"`
	DefaultImpactWeight *float64 `json:"defaultImpactWeight"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s InsightSource) toDomain() domain.Source {
	src := domain.Source{
		ID:                  s.ID,
		Name:                s.Name,
		FeedURL:             s.FeedURL,
		IsActive:            s.IsActive,
		DefaultImpactWeight: s.DefaultImpactWeight,
	}
	if s.DefaultCategory != nil {
		src.DefaultCategory = *s.DefaultCategory
	}
	return src
}

func sourceModel(src domain.Source) InsightSource {
	m := InsightSource{
		ID:                  src.ID,
		Name:                src.Name,
		FeedURL:             src.FeedURL,
		IsActive:            src.IsActive,
		DefaultImpactWeight: src.DefaultImpactWeight,
	}
	if src.DefaultCategory != "" {
		c := src.DefaultCategory
		m.DefaultCategory = &c
	}
	return m
}

// ListActiveSources 只返回 is_active = true 的数据源，无副作用
func (s *Store) ListActiveSources(ctx context.Context) ([]domain.Source, error) {
	var rows []InsightSource
	if err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}

	out := make([]domain.Source, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// EnsureSource 确保某个数据源存在；已存在时不覆盖后台的修改
func (s *Store) EnsureSource(ctx context.Context, src domain.Source) error {
	m := sourceModel(src)
	if err := s.DB.WithContext(ctx).Where("id = ?", src.ID).FirstOrCreate(&m).Error; err != nil {
		return fmt.Errorf("ensure source %s: %w", src.ID, err)
	}
	return nil
}

// SeedSources 启动时按配置初始化数据源
func (s *Store) SeedSources(ctx context.Context, sources []domain.Source) error {
	for _, src := range sources {
		if err := s.EnsureSource(ctx, src); err != nil {
			return err
		}
	}
	if len(sources) > 0 {
		s.logger.Info("sources seeded", "count", len(sources))
	}
	return nil
}
