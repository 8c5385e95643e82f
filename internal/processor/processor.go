package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/LJTian/InsightHub/internal/collector"
	"github.com/LJTian/InsightHub/internal/domain"
)

const (
	titleMaxRunes   = 512
	summaryMaxRunes = 600
)

// 依次尝试的发布时间格式，RSS 常见 RFC 1123/822，Atom 为 RFC 3339
var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer 把 RawItem 映射为 NormalizedItem，所有“哪个字段优先”的决定都在这里
type Normalizer struct {
	images []ImageStrategy
}

func NewNormalizer() *Normalizer {
	return &Normalizer{images: DefaultImageStrategies()}
}

// Normalize 没有可用身份（link 与 guid 都为空）时返回 false，该条目会被丢弃。
// 超出列宽或不是合法 UTF-8 的链接同样丢弃，否则整批写入都会被数据库拒绝。
func (n *Normalizer) Normalize(raw collector.RawItem, src domain.Source, ingestedAt time.Time) (domain.NormalizedItem, bool) {
	link := canonicalLink(raw)
	if link == "" || !storableURL(link) {
		return domain.NormalizedItem{}, false
	}

	item := domain.NormalizedItem{
		ID:            hashURL(link),
		SourceID:      src.ID,
		CanonicalLink: link,
		Title:         optional(truncateRunes(firstNonBlank(raw.Title), titleMaxRunes)),
		Summary:       optional(truncateRunes(firstNonBlank(raw.ContentSnippet, raw.Summary, raw.Content), summaryMaxRunes)),
		PublishedAt:   publishedAt(raw, ingestedAt),
		Category:      category(src),
		Extra:         map[string]any{},
	}

	if url, strategy, ok := resolveImage(n.images, raw); ok {
		item.ImageURL = &url
		item.Extra["image_strategy"] = strategy
	}
	if g := strings.TrimSpace(raw.GUID); g != "" {
		item.Extra["guid"] = g
	}
	if raw.Author != "" {
		item.Extra["author"] = raw.Author
	}
	if len(raw.Categories) > 0 {
		item.Extra["feed_categories"] = raw.Categories
	}
	return item, true
}

// NormalizeBatch 逐条归一化，丢弃无身份条目，同一批次内相同链接只保留第一条
func (n *Normalizer) NormalizeBatch(raws []collector.RawItem, src domain.Source, ingestedAt time.Time) []domain.NormalizedItem {
	out := make([]domain.NormalizedItem, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		item, ok := n.Normalize(raw, src, ingestedAt)
		if !ok {
			continue
		}
		if _, dup := seen[item.CanonicalLink]; dup {
			continue
		}
		seen[item.CanonicalLink] = struct{}{}
		out = append(out, item)
	}
	return out
}

func canonicalLink(raw collector.RawItem) string {
	return firstNonBlank(raw.Link, raw.GUID)
}

func publishedAt(raw collector.RawItem, ingestedAt time.Time) time.Time {
	value := firstNonBlank(raw.IsoDate, raw.PubDate)
	if value == "" {
		return ingestedAt
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return ingestedAt
}

func category(src domain.Source) string {
	if c := strings.TrimSpace(src.DefaultCategory); c != "" {
		return c
	}
	return domain.FallbackCategory
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// truncateRunes 按 rune 截断，超出时追加省略号
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if limit <= 0 || len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
