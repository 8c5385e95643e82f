package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/LJTian/InsightHub/internal/apperr"
	"github.com/LJTian/InsightHub/internal/ingest"
	"github.com/LJTian/InsightHub/internal/storage"
)

const maxTriggerBody = 64 << 10

// Runner 由 ingest.Coordinator 实现
type Runner interface {
	Authenticate(t ingest.Trigger) error
	Execute(ctx context.Context, opts ingest.RunOptions) (*ingest.RunReport, error)
}

// Reader 是下游消费者用到的只读查询，由 storage.Store 实现
type Reader interface {
	ListInsights(ctx context.Context, category string, limit int) ([]storage.InsightItem, error)
	ListIngestLogs(ctx context.Context, sourceID string, limit int) ([]storage.IngestLog, error)
	LatestRun(ctx context.Context) (json.RawMessage, bool, error)
}

type Server struct {
	runner Runner
	reader Reader
	// runTimeout 限制一次触发的执行时长，<=0 表示不限
	runTimeout time.Duration
}

func NewServer(runner Runner, reader Reader, runTimeout time.Duration) *Server {
	return &Server{runner: runner, reader: reader, runTimeout: runTimeout}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/ingest/run", s.triggerIngest)
		v1.GET("/ingest/latest", s.latestRun)
		v1.GET("/ingest/logs", s.listIngestLogs)
		v1.GET("/insights", s.listInsights)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type triggerPayload struct {
	DryRun    *bool    `json:"dry_run"`
	SourceIDs []string `json:"source_ids"`
}

// triggerIngest 先认证再解析参数，认证失败不读取请求体
func (s *Server) triggerIngest(c *gin.Context) {
	trigger := ingest.Trigger{
		CronSecret:    c.GetHeader("X-Cron-Secret"),
		Authorization: c.GetHeader("Authorization"),
	}
	if err := s.runner.Authenticate(trigger); err != nil {
		s.runFailed(c, err)
		return
	}

	opts, err := runOptions(c)
	if err != nil {
		s.runFailed(c, err)
		return
	}

	// 调用方断开连接不中断本轮执行，只受 runTimeout 约束
	ctx := context.WithoutCancel(c.Request.Context())
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	report, err := s.runner.Execute(ctx, opts)
	if err != nil {
		s.runFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// runOptions 合并 JSON 请求体与 ?dry_run=，查询参数优先
func runOptions(c *gin.Context) (ingest.RunOptions, error) {
	var opts ingest.RunOptions

	if c.Request.Body != nil {
		bs, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTriggerBody+1))
		if err != nil {
			return opts, apperr.NewValidationWrap("read trigger payload", err)
		}
		if len(bs) > maxTriggerBody {
			return opts, apperr.NewValidation("trigger payload too large")
		}
		if len(bytes.TrimSpace(bs)) > 0 {
			var p triggerPayload
			if err := binding.JSON.BindBody(bs, &p); err != nil {
				return opts, apperr.NewValidationWrap("invalid trigger payload", err)
			}
			if p.DryRun != nil {
				opts.DryRun = *p.DryRun
			}
			for _, id := range p.SourceIDs {
				if id = strings.TrimSpace(id); id != "" {
					opts.SourceIDs = append(opts.SourceIDs, id)
				}
			}
		}
	}

	if raw, ok := c.GetQuery("dry_run"); ok {
		dry, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, apperr.NewValidationWrap("invalid dry_run value "+strconv.Quote(raw), err)
		}
		opts.DryRun = dry
	}
	return opts, nil
}

func (s *Server) runFailed(c *gin.Context, err error) {
	status := apperr.StatusCode(err)
	_ = c.Error(err)
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}

func (s *Server) listInsights(c *gin.Context) {
	category := c.Query("category")
	limit := queryLimit(c, 20)

	items, err := s.reader.ListInsights(c.Request.Context(), category, limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

func (s *Server) latestRun(c *gin.Context) {
	raw, ok, err := s.reader.LatestRun(c.Request.Context())
	if errors.Is(err, storage.ErrCacheDisabled) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "run cache disabled"})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "no run recorded yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    raw,
	})
}

func (s *Server) listIngestLogs(c *gin.Context) {
	sourceID := c.Query("source_id")
	limit := queryLimit(c, 50)

	logs, err := s.reader.ListIngestLogs(c.Request.Context(), sourceID, limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    logs,
	})
}

// queryLimit 非法或缺省的 limit 退回默认值，不报错
func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
