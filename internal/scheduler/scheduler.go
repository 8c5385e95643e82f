package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LJTian/InsightHub/internal/ingest"
)

// Runner 是被定时触发的任务，ingest.Coordinator 实现了它
type Runner interface {
	Execute(ctx context.Context, opts ingest.RunOptions) (*ingest.RunReport, error)
}

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger

	// 单次执行的上限，避免某轮卡住后一直占着 SkipIfStillRunning
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func New(spec string, runner Runner, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	// 上一轮还没结束时跳过本轮
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    c,
		runner:  runner,
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := c.AddFunc(spec, func() { s.runOnce(s.ctx) }); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop 停止调度并取消正在执行的一轮，等待其退出
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发
func (s *Scheduler) RunOnce(ctx context.Context) (*ingest.RunReport, error) {
	return s.runOnce(ctx)
}

// Next 返回下一次触发时间，用于启动日志
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runOnce(ctx context.Context) (*ingest.RunReport, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Info("start ingest job...")
	start := time.Now()
	report, err := s.runner.Execute(ctx, ingest.RunOptions{})
	if err != nil {
		s.logger.Error("ingest job failed", "error", err, "elapsed", time.Since(start))
		return nil, err
	}
	s.logger.Info("ingest job done",
		"run_id", report.RunID,
		"fetched", report.TotalFetched,
		"inserted", report.TotalInserted,
		"failed", report.Failed(),
		"elapsed", time.Since(start))
	return report, nil
}
