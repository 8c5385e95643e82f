package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/LJTian/InsightHub/internal/domain"
)

func weight(v float64) *float64 { return &v }

func TestScoreExampleScenarios(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	src := domain.Source{ID: "src-1", DefaultImpactWeight: weight(0.7)}
	item := domain.NormalizedItem{Category: "Finanças", PublishedAt: now}

	fresh := Score(item, src, now)
	if fresh.ImpactScore != 70 {
		t.Fatalf("ImpactScore = %d, want 70", fresh.ImpactScore)
	}
	if fresh.TimeWeight != 1.2 {
		t.Fatalf("TimeWeight = %v, want 1.2", fresh.TimeWeight)
	}
	if fresh.CategoryWeight != 1.15 {
		t.Fatalf("CategoryWeight = %v, want 1.15", fresh.CategoryWeight)
	}
	if fresh.PriorityScore != 97 {
		t.Fatalf("PriorityScore = %d, want 97", fresh.PriorityScore)
	}
	if fresh.ImpactLevel != domain.ImpactMedium {
		t.Fatalf("ImpactLevel = %s, want medium", fresh.ImpactLevel)
	}

	item.PublishedAt = now.Add(-7 * 24 * time.Hour)
	old := Score(item, src, now)
	if math.Abs(old.TimeWeight-0.4) > 1e-9 {
		t.Fatalf("TimeWeight = %v, want 0.4", old.TimeWeight)
	}
	if old.PriorityScore != 32 {
		t.Fatalf("PriorityScore = %d, want 32", old.PriorityScore)
	}
}

func TestTimeWeightBounds(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	ages := []time.Duration{
		-48 * time.Hour, // 未来发布
		0,
		time.Hour,
		84 * time.Hour,
		7 * 24 * time.Hour,
		365 * 24 * time.Hour,
	}
	for _, age := range ages {
		w := TimeWeight(now.Add(-age), now)
		if w < 0.4 || w > 1.2 {
			t.Fatalf("TimeWeight(age=%v) = %v, out of [0.4, 1.2]", age, w)
		}
	}
	if w := TimeWeight(now.Add(-84*time.Hour), now); math.Abs(w-0.7) > 1e-9 {
		t.Fatalf("TimeWeight at 3.5 days = %v, want 0.7", w)
	}
}

func TestImpactScoreClampAndDefault(t *testing.T) {
	cases := []struct {
		name   string
		weight *float64
		want   int
	}{
		{"absent", nil, 50},
		{"negative", weight(-0.3), 0},
		{"above one", weight(1.7), 100},
		{"nan", weight(math.NaN()), 50},
		{"rounding", weight(0.806), 81},
	}
	for _, tc := range cases {
		got := ImpactScore(domain.Source{DefaultImpactWeight: tc.weight})
		if got != tc.want {
			t.Fatalf("%s: ImpactScore = %d, want %d", tc.name, got, tc.want)
		}
		if got < 0 || got > 100 {
			t.Fatalf("%s: ImpactScore %d out of bounds", tc.name, got)
		}
	}
}

func TestImpactLevelThresholds(t *testing.T) {
	cases := map[int]domain.ImpactLevel{
		0:   domain.ImpactLow,
		49:  domain.ImpactLow,
		50:  domain.ImpactMedium,
		79:  domain.ImpactMedium,
		80:  domain.ImpactHigh,
		100: domain.ImpactHigh,
	}
	for score, want := range cases {
		if got := ImpactLevelFor(score); got != want {
			t.Fatalf("ImpactLevelFor(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestCategoryWeightTable(t *testing.T) {
	if CategoryWeight("Negócios") != 1.05 {
		t.Fatalf("Negócios weight mismatch")
	}
	if CategoryWeight("Geral") != 1.0 || CategoryWeight("") != 1.0 {
		t.Fatalf("unknown categories should weigh 1.0")
	}
}

func TestScoreDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	src := domain.Source{DefaultImpactWeight: weight(0.9)}
	item := domain.NormalizedItem{Category: "Negócios", PublishedAt: now.Add(-31 * time.Hour)}

	a := Score(item, src, now)
	b := Score(item, src, now)
	if a != b {
		t.Fatalf("Score not deterministic: %+v vs %+v", a, b)
	}
}

func TestApplyWritesFields(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	src := domain.Source{DefaultImpactWeight: weight(0.85)}
	item := Apply(domain.NormalizedItem{CanonicalLink: "https://x.test/a", PublishedAt: now}, src, now)

	if item.ImpactScore != 85 || item.ImpactLevel != domain.ImpactHigh {
		t.Fatalf("unexpected impact: %d %s", item.ImpactScore, item.ImpactLevel)
	}
	if item.PriorityScore != 102 {
		t.Fatalf("PriorityScore = %d, want 102 (not clamped)", item.PriorityScore)
	}
	if item.SourceWeight != 1.0 || item.FrequencyWeight != 1.0 {
		t.Fatalf("reserved weights should be 1.0: %+v", item)
	}
}
