package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/InsightHub/internal/domain"
)

// IngestLog 采集审计日志，每个数据源每次执行一行，只追加
type IngestLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RunID         string    `gorm:"size:36;index" json:"runId"`
	SourceID      string    `gorm:"size:64;index" json:"sourceId"`
	Status        string    `gorm:"size:16" json:"status"`
	ItemsFetched  int       `json:"itemsFetched"`
	ItemsInserted int       `json:"itemsInserted"`
	ErrorMessage  *string   `gorm:"type:text" json:"errorMessage"`
	CreatedAt     time.Time `gorm:"index" json:"timestamp"`
}

// RecordIngest 追加一条采集日志
func (s *Store) RecordIngest(ctx context.Context, entry domain.IngestLogEntry) error {
	row := IngestLog{
		RunID:         entry.RunID,
		SourceID:      entry.SourceID,
		Status:        string(entry.Status),
		ItemsFetched:  entry.ItemsFetched,
		ItemsInserted: entry.ItemsInserted,
		ErrorMessage:  sanitizeOptional(entry.ErrorMessage, 2000),
		CreatedAt:     entry.Timestamp,
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record ingest log %s: %w", entry.SourceID, err)
	}
	return nil
}

// ListIngestLogs 返回审计日志，最新在前；sourceID 为空时返回全部数据源
func (s *Store) ListIngestLogs(ctx context.Context, sourceID string, limit int) ([]IngestLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	db := s.DB.WithContext(ctx).Model(&IngestLog{})
	if sourceID != "" {
		db = db.Where("source_id = ?", sourceID)
	}

	var logs []IngestLog
	if err := db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list ingest logs: %w", err)
	}
	return logs, nil
}
