package ingest

import (
	"context"

	"github.com/LJTian/InsightHub/internal/domain"
)

// RunLogger 是审计记录的落地端，storage.Store 实现了它
type RunLogger interface {
	RecordIngest(ctx context.Context, entry domain.IngestLogEntry) error
}

// IngestRunLogger 每个数据源每次执行调用一次 Record；dry run 下什么也不写
type IngestRunLogger struct {
	sink   RunLogger
	dryRun bool
}

func NewIngestRunLogger(sink RunLogger, dryRun bool) IngestRunLogger {
	return IngestRunLogger{sink: sink, dryRun: dryRun}
}

func (l IngestRunLogger) Record(ctx context.Context, entry domain.IngestLogEntry) error {
	if l.dryRun || l.sink == nil {
		return nil
	}
	return l.sink.RecordIngest(ctx, entry)
}
