package ingest

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/LJTian/InsightHub/internal/apperr"
	"github.com/LJTian/InsightHub/internal/collector"
	"github.com/LJTian/InsightHub/internal/domain"
	"github.com/LJTian/InsightHub/internal/processor"
	"github.com/LJTian/InsightHub/internal/scoring"
)

const DefaultWorkers = 4

// SourceRegistry 提供待处理的数据源列表
type SourceRegistry interface {
	ListActiveSources(ctx context.Context) ([]domain.Source, error)
}

// ItemStore 是条目的去重写入端
type ItemStore interface {
	UpsertBatch(ctx context.Context, items []domain.NormalizedItem) (int, error)
	ExistingLinks(ctx context.Context, links []string) (map[string]bool, error)
}

// ReportCache 保存最近一次执行报告，可为空
type ReportCache interface {
	SaveLatestRun(ctx context.Context, report any) error
}

type Config struct {
	// CronSecret 为空时 X-Cron-Secret 永远不匹配
	CronSecret   string
	FetchTimeout time.Duration
	Workers      int
}

// Trigger 是一次触发携带的认证信息
type Trigger struct {
	CronSecret    string
	Authorization string
}

type RunOptions struct {
	DryRun bool
	// SourceIDs 非空时只处理其中的数据源
	SourceIDs []string
}

type Deps struct {
	Registry SourceRegistry
	Fetcher  collector.Fetcher
	Store    ItemStore
	Audit    RunLogger
	Cache    ReportCache
	Logger   *slog.Logger
}

type Coordinator struct {
	cfg        Config
	registry   SourceRegistry
	fetcher    collector.Fetcher
	store      ItemStore
	audit      RunLogger
	cache      ReportCache
	normalizer *processor.Normalizer
	logger     *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewCoordinator(cfg Config, deps Deps) *Coordinator {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = collector.DefaultTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:        cfg,
		registry:   deps.Registry,
		fetcher:    deps.Fetcher,
		store:      deps.Store,
		audit:      deps.Audit,
		cache:      deps.Cache,
		normalizer: processor.NewNormalizer(),
		logger:     logger.With("component", "ingest"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Authenticate 校验触发方：调度密钥匹配，或携带非空的 Bearer 凭证
func (c *Coordinator) Authenticate(t Trigger) error {
	if c.cfg.CronSecret != "" && t.CronSecret != "" &&
		subtle.ConstantTimeCompare([]byte(t.CronSecret), []byte(c.cfg.CronSecret)) == 1 {
		return nil
	}
	if bearerToken(t.Authorization) != "" {
		return nil
	}
	return apperr.ErrUnauthorized
}

func bearerToken(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Run 认证后执行；认证失败时没有任何副作用
func (c *Coordinator) Run(ctx context.Context, t Trigger, opts RunOptions) (*RunReport, error) {
	if err := c.Authenticate(t); err != nil {
		return nil, err
	}
	return c.Execute(ctx, opts)
}

// Execute 跳过认证直接执行，供进程内的定时任务与命令行使用。
// 只有数据源列表读取失败会返回 error，单个数据源的失败都记录在报告里。
func (c *Coordinator) Execute(ctx context.Context, opts RunOptions) (*RunReport, error) {
	runID := c.newID()
	log := c.logger.With("run_id", runID, "dry_run", opts.DryRun)

	sources, err := c.registry.ListActiveSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	sources = filterSources(sources, opts.SourceIDs)
	log.Info("ingest run started", "sources", len(sources))

	audit := NewIngestRunLogger(c.audit, opts.DryRun)
	outcomes := make([]SourceOutcome, len(sources))

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, src := range sources {
		g.Go(func() error {
			outcomes[i] = c.runSource(ctx, log, runID, src, opts.DryRun, audit)
			return nil
		})
	}
	_ = g.Wait()

	report := newReport(runID, opts.DryRun, outcomes)
	log.Info("ingest run done",
		"sources", report.TotalSources,
		"fetched", report.TotalFetched,
		"inserted", report.TotalInserted,
		"failed", report.Failed())

	if !opts.DryRun && c.cache != nil {
		if err := c.cache.SaveLatestRun(context.WithoutCancel(ctx), report); err != nil {
			log.Warn("cache run report failed", "error", err)
		}
	}
	return report, nil
}

// runSource 处理一个数据源并写一条审计记录，不会向外传播错误或 panic
func (c *Coordinator) runSource(ctx context.Context, log *slog.Logger, runID string, src domain.Source, dryRun bool, audit IngestRunLogger) SourceOutcome {
	log = log.With("source_id", src.ID)

	fetched, inserted, err := c.safeIngest(ctx, src, dryRun)
	out := SourceOutcome{
		SourceID:   src.ID,
		SourceName: src.Name,
		Fetched:    fetched,
		Inserted:   inserted,
		Err:        err,
	}

	entry := domain.IngestLogEntry{
		RunID:         runID,
		SourceID:      src.ID,
		Status:        domain.IngestSuccess,
		ItemsFetched:  fetched,
		ItemsInserted: inserted,
		Timestamp:     c.now(),
	}
	if err != nil {
		msg := err.Error()
		entry.Status = domain.IngestError
		entry.ErrorMessage = &msg
		log.Warn("source failed", "error", err)
	} else {
		log.Info("source done", "fetched", fetched, "inserted", inserted)
	}

	// 已完成的写入要有对应的审计记录，即使请求已被取消
	if lerr := audit.Record(context.WithoutCancel(ctx), entry); lerr != nil {
		log.Error("record ingest log failed", "error", lerr)
	}
	return out
}

func (c *Coordinator) safeIngest(ctx context.Context, src domain.Source, dryRun bool) (fetched, inserted int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while ingesting source %s: %v", src.ID, r)
		}
	}()
	return c.ingest(ctx, src, dryRun)
}

func (c *Coordinator) ingest(ctx context.Context, src domain.Source, dryRun bool) (int, int, error) {
	raws, err := c.fetcher.Fetch(ctx, src, c.cfg.FetchTimeout)
	if err != nil {
		var fe *collector.FetchError
		if !errors.As(err, &fe) {
			err = &collector.FetchError{SourceID: src.ID, URL: src.FeedURL, Err: err}
		}
		return 0, 0, err
	}
	fetched := len(raws)

	now := c.now()
	items := c.normalizer.NormalizeBatch(raws, src, now)
	for i := range items {
		items[i] = scoring.Apply(items[i], src, now)
	}
	if len(items) == 0 {
		return fetched, 0, nil
	}

	if dryRun {
		n, err := c.wouldInsert(ctx, items)
		if err != nil {
			return fetched, 0, fmt.Errorf("lookup existing links for source %s: %w", src.ID, err)
		}
		return fetched, n, nil
	}

	// 失败时 inserted 仍是已提交分块的行数，审计记录要如实反映
	inserted, err := c.store.UpsertBatch(ctx, items)
	if err != nil {
		return fetched, inserted, fmt.Errorf("upsert items for source %s: %w", src.ID, err)
	}
	return fetched, inserted, nil
}

// wouldInsert 只读地统计 dry run 下将会新增的条数
func (c *Coordinator) wouldInsert(ctx context.Context, items []domain.NormalizedItem) (int, error) {
	links := make([]string, 0, len(items))
	for _, it := range items {
		links = append(links, it.CanonicalLink)
	}
	existing, err := c.store.ExistingLinks(ctx, links)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range links {
		if !existing[l] {
			n++
		}
	}
	return n, nil
}

func filterSources(sources []domain.Source, ids []string) []domain.Source {
	if len(ids) == 0 {
		return sources
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strings.TrimSpace(id)] = true
	}
	out := make([]domain.Source, 0, len(ids))
	for _, s := range sources {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out
}
