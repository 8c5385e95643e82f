package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/LJTian/InsightHub/internal/domain"
)

const (
	upsertChunkSize = 200
	listCacheTTL    = 5 * time.Minute
)

// InsightItem 归一化并打分后的条目，canonical_link 全局唯一；写入后不再修改
type InsightItem struct {
	ID            string    `gorm:"primaryKey;size:40" json:"id"`
	SourceID      string    `gorm:"size:64;index" json:"sourceId"`
	Title         *string   `gorm:"size:512" json:"title"`
	Summary       *string   `gorm:"size:1024" json:"summary"`
	CanonicalLink string    `gorm:"size:2048;uniqueIndex;not null" json:"canonicalLink"`
	ImageURL      *string   `gorm:"size:2048" json:"imageUrl"`
	PublishedAt   time.Time `gorm:"index" json:"publishedAt"`
	Category      string    `gorm:"size:64;index" json:"category"`

	ImpactScore     int     `json:"impactScore"`
	ImpactLevel     string  `gorm:"size:16" json:"impactLevel"`
	TimeWeight      float64 `json:"timeWeight"`
	CategoryWeight  float64 `json:"categoryWeight"`
	SourceWeight    float64 `json:"sourceWeight"`
	FrequencyWeight float64 `json:"frequencyWeight"`
	PriorityScore   int     `gorm:"index" json:"priorityScore"`

	ExtraData datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
}

func itemModel(it domain.NormalizedItem) InsightItem {
	return InsightItem{
		ID:              it.ID,
		SourceID:        it.SourceID,
		Title:           sanitizeOptional(it.Title, 512),
		Summary:         sanitizeOptional(it.Summary, 1000),
		CanonicalLink:   it.CanonicalLink,
		ImageURL:        urlOrNil(it.ImageURL),
		PublishedAt:     it.PublishedAt,
		Category:        it.Category,
		ImpactScore:     it.ImpactScore,
		ImpactLevel:     string(it.ImpactLevel),
		TimeWeight:      it.TimeWeight,
		CategoryWeight:  it.CategoryWeight,
		SourceWeight:    it.SourceWeight,
		FrequencyWeight: it.FrequencyWeight,
		PriorityScore:   it.PriorityScore,
		ExtraData:       datatypes.JSONMap(it.Extra),
	}
}

// UpsertBatch 按 canonical_link 幂等写入：不存在则插入，已存在则忽略（不覆盖）。
// 返回真正新增的行数。
func (s *Store) UpsertBatch(ctx context.Context, items []domain.NormalizedItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	rows := make([]InsightItem, 0, len(items))
	for _, it := range items {
		if !fitsURLColumn(it.CanonicalLink) {
			s.logger.Warn("skip item with unstorable link", "source_id", it.SourceID, "link_runes", utf8.RuneCountInString(it.CanonicalLink))
			continue
		}
		rows = append(rows, itemModel(it))
	}

	inserted := 0
	for start := 0; start < len(rows); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(rows))
		chunk := rows[start:end]

		res := s.DB.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&chunk)
		if res.Error != nil {
			return inserted, fmt.Errorf("upsert insight items: %w", res.Error)
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

// ExistingLinks 只读查询已入库的链接，dry run 用它估算“将新增”数量
func (s *Store) ExistingLinks(ctx context.Context, links []string) (map[string]bool, error) {
	found := make(map[string]bool, len(links))
	for start := 0; start < len(links); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(links))

		var existing []string
		if err := s.DB.WithContext(ctx).
			Model(&InsightItem{}).
			Where("canonical_link IN ?", links[start:end]).
			Pluck("canonical_link", &existing).Error; err != nil {
			return nil, fmt.Errorf("query existing links: %w", err)
		}
		for _, l := range existing {
			found[l] = true
		}
	}
	return found, nil
}

// ListInsights 按优先级倒序返回条目，供下游摘要与 UI 使用，Redis 缓存 5 分钟
func (s *Store) ListInsights(ctx context.Context, category string, limit int) ([]InsightItem, error) {
	if limit <= 0 || limit > 500 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("insights:list:%s:%d", category, limit)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []InsightItem
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	db := s.DB.WithContext(ctx).Model(&InsightItem{})
	if category != "" {
		db = db.Where("category = ?", category)
	}

	var list []InsightItem
	if err := db.Order("priority_score DESC").Order("published_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}

	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}
	return list, nil
}
