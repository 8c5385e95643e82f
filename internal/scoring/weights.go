package scoring

import (
	"math"
	"time"

	"github.com/LJTian/InsightHub/internal/domain"
)

const (
	timeWeightMax      = 1.2
	timeWeightFloor    = 0.4
	timeDecayHorizonHr = 24 * 7

	highImpactThreshold   = 80
	mediumImpactThreshold = 50
)

// categoryWeights 分类权重表，未列出的分类按 1.0 计
var categoryWeights = map[string]float64{
	"Finanças": 1.15,
	"Negócios": 1.05,
}

// Fields 是打分结果，由 Apply 写回 NormalizedItem
type Fields struct {
	TimeWeight      float64
	CategoryWeight  float64
	SourceWeight    float64
	FrequencyWeight float64
	ImpactScore     int
	ImpactLevel     domain.ImpactLevel
	PriorityScore   int
}

// Score 纯函数：相同的 (item, source, now) 总是得到相同结果
func Score(item domain.NormalizedItem, src domain.Source, now time.Time) Fields {
	tw := TimeWeight(item.PublishedAt, now)
	cw := CategoryWeight(item.Category)
	sw := SourceWeight(src)
	impact := ImpactScore(src)

	return Fields{
		TimeWeight:      tw,
		CategoryWeight:  cw,
		SourceWeight:    sw,
		FrequencyWeight: 1.0,
		ImpactScore:     impact,
		ImpactLevel:     ImpactLevelFor(impact),
		PriorityScore:   int(math.Round(float64(impact) * tw * cw * sw)),
	}
}

// Apply 计算分数并返回带分数的副本
func Apply(item domain.NormalizedItem, src domain.Source, now time.Time) domain.NormalizedItem {
	f := Score(item, src, now)
	item.TimeWeight = f.TimeWeight
	item.CategoryWeight = f.CategoryWeight
	item.SourceWeight = f.SourceWeight
	item.FrequencyWeight = f.FrequencyWeight
	item.ImpactScore = f.ImpactScore
	item.ImpactLevel = f.ImpactLevel
	item.PriorityScore = f.PriorityScore
	return item
}

// TimeWeight 从 1.2 线性衰减，7 天后到达下限 0.4；发布时间在未来时按 0 小时计
func TimeWeight(publishedAt, now time.Time) float64 {
	ageHours := now.Sub(publishedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Max(timeWeightFloor, timeWeightMax-ageHours/timeDecayHorizonHr)
}

func CategoryWeight(category string) float64 {
	if w, ok := categoryWeights[category]; ok {
		return w
	}
	return 1.0
}

// SourceWeight 目前所有数据源都是 1.0，预留给按来源调权
func SourceWeight(domain.Source) float64 {
	return 1.0
}

// ImpactScore = round(clamp(weight*100, 0, 100))
func ImpactScore(src domain.Source) int {
	w := src.ImpactWeight()
	if math.IsNaN(w) {
		w = domain.DefaultImpactWeight
	}
	v := math.Min(100, math.Max(0, w*100))
	return int(math.Round(v))
}

func ImpactLevelFor(score int) domain.ImpactLevel {
	switch {
	case score >= highImpactThreshold:
		return domain.ImpactHigh
	case score >= mediumImpactThreshold:
		return domain.ImpactMedium
	default:
		return domain.ImpactLow
	}
}
