package domain

import "time"

// DefaultImpactWeight 数据源未配置影响权重时使用
const DefaultImpactWeight = 0.5

// FallbackCategory 数据源未配置默认分类时使用
const FallbackCategory = "Geral"

// MaxURLLength 与 insight_items 中 canonical_link、image_url 的列宽一致（按字符计）
const MaxURLLength = 2048

// Source 描述一个外部 RSS/Atom 数据源，由后台维护，管道只读
type Source struct {
	ID              string
	Name            string
	FeedURL         string
	IsActive        bool
	DefaultCategory string
	// nil 表示未配置，按 DefaultImpactWeight 处理
	DefaultImpactWeight *float64
}

// ImpactWeight 返回生效的影响权重
func (s Source) ImpactWeight() float64 {
	if s.DefaultImpactWeight == nil {
		return DefaultImpactWeight
	}
	return *s.DefaultImpactWeight
}

type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// NormalizedItem 是归一化并打分后的条目，以 CanonicalLink 作为全局唯一键
type NormalizedItem struct {
	// ID 为 CanonicalLink 的 sha1
	ID            string
	SourceID      string
	Title         *string
	Summary       *string
	CanonicalLink string
	ImageURL      *string
	PublishedAt   time.Time
	Category      string

	ImpactScore     int
	ImpactLevel     ImpactLevel
	TimeWeight      float64
	CategoryWeight  float64
	SourceWeight    float64
	FrequencyWeight float64
	PriorityScore   int

	Extra map[string]any
}

type IngestStatus string

const (
	IngestSuccess IngestStatus = "success"
	IngestError   IngestStatus = "error"
)

// IngestLogEntry 每个数据源每次（非 dry run）执行写入一条，只追加
type IngestLogEntry struct {
	RunID         string
	SourceID      string
	Status        IngestStatus
	ItemsFetched  int
	ItemsInserted int
	ErrorMessage  *string
	Timestamp     time.Time
}
