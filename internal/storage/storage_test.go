package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/LJTian/InsightHub/internal/domain"
)

func TestTruncateRunesDB(t *testing.T) {
	if got := truncateRunesDB("  Câmbio  ", 3); got != "Câm" {
		t.Fatalf("truncateRunesDB = %q", got)
	}
	if got := truncateRunesDB("   ", 10); got != "" {
		t.Fatalf("blank should become empty: %q", got)
	}
	if got := truncateRunesDB("abc", 0); got != "" {
		t.Fatalf("zero limit should be empty: %q", got)
	}
}

func TestSanitizeOptional(t *testing.T) {
	if sanitizeOptional(nil, 10) != nil {
		t.Fatalf("nil should stay nil")
	}
	blank := "  "
	if sanitizeOptional(&blank, 10) != nil {
		t.Fatalf("blank should become NULL")
	}
	bad := "ok\xffok"
	got := sanitizeOptional(&bad, 10)
	if got == nil || *got != "ok\uFFFDok" {
		t.Fatalf("invalid UTF-8 not replaced: %v", got)
	}
}

func TestSourceModelRoundTrip(t *testing.T) {
	w := 0.7
	src := domain.Source{
		ID:                  "valor",
		Name:                "Valor Econômico",
		FeedURL:             "https://valor.example.com/rss",
		IsActive:            true,
		DefaultCategory:     "Finanças",
		DefaultImpactWeight: &w,
	}
	back := sourceModel(src).toDomain()
	if back.ID != src.ID || back.DefaultCategory != "Finanças" || back.ImpactWeight() != 0.7 || !back.IsActive {
		t.Fatalf("round trip mismatch: %+v", back)
	}

	noCategory := sourceModel(domain.Source{ID: "x"})
	if noCategory.DefaultCategory != nil {
		t.Fatalf("empty category should be stored as NULL")
	}
	if noCategory.toDomain().ImpactWeight() != domain.DefaultImpactWeight {
		t.Fatalf("absent impact weight should use the default")
	}
}

func TestItemModelCopiesScores(t *testing.T) {
	title := "Ibovespa fecha em alta"
	it := domain.NormalizedItem{
		ID:            "abc",
		SourceID:      "valor",
		Title:         &title,
		CanonicalLink: "https://valor.example.com/ibov",
		PublishedAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Category:      "Finanças",
		ImpactScore:   70,
		ImpactLevel:   domain.ImpactMedium,
		TimeWeight:    1.2,
		PriorityScore: 97,
		Extra:         map[string]any{"guid": "g-1"},
	}
	m := itemModel(it)
	if m.CanonicalLink != it.CanonicalLink || m.PriorityScore != 97 || m.ImpactLevel != "medium" {
		t.Fatalf("unexpected model: %+v", m)
	}
	if m.Title == nil || *m.Title != title {
		t.Fatalf("title not copied")
	}
	if m.ExtraData["guid"] != "g-1" {
		t.Fatalf("extra data not copied: %v", m.ExtraData)
	}
}

func TestURLColumnGuards(t *testing.T) {
	ok := "https://valor.example.com/a"
	if !fitsURLColumn(ok) {
		t.Fatalf("short url should fit")
	}
	if fitsURLColumn("") {
		t.Fatalf("empty url should not be stored")
	}
	long := "https://valor.example.com/" + strings.Repeat("a", domain.MaxURLLength)
	if fitsURLColumn(long) {
		t.Fatalf("url over %d runes should not fit", domain.MaxURLLength)
	}
	if fitsURLColumn("https://valor.example.com/" + string([]byte{0xff})) {
		t.Fatalf("invalid UTF-8 should not fit")
	}

	if urlOrNil(&long) != nil {
		t.Fatalf("oversized image url should become NULL")
	}
	if got := urlOrNil(&ok); got == nil || *got != ok {
		t.Fatalf("urlOrNil(%q) = %v", ok, got)
	}
	if urlOrNil(nil) != nil {
		t.Fatalf("nil should stay nil")
	}

	m := itemModel(domain.NormalizedItem{CanonicalLink: ok, ImageURL: &long})
	if m.ImageURL != nil {
		t.Fatalf("itemModel should drop oversized image url")
	}
}
