package processor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/LJTian/InsightHub/internal/collector"
	"github.com/LJTian/InsightHub/internal/domain"
)

var httpURLExpr = regexp.MustCompile(`(?i)^https?://`)

// ImageStrategy 从 RawItem 中尝试解析一张配图
type ImageStrategy struct {
	Name    string
	Resolve func(collector.RawItem) (string, bool)
}

// DefaultImageStrategies 按可信度排序：enclosure 最可靠，内联 HTML 抓取只作为兜底
func DefaultImageStrategies() []ImageStrategy {
	return []ImageStrategy{
		{Name: "enclosure", Resolve: EnclosureImage},
		{Name: "media_content", Resolve: MediaContentImage},
		{Name: "html_img", Resolve: InlineHTMLImage},
		{Name: "itunes_image", Resolve: ITunesImage},
	}
}

// resolveImage 第一个命中且能入库的策略胜出；超长或非法 UTF-8 的结果交给下一个策略
func resolveImage(strategies []ImageStrategy, raw collector.RawItem) (string, string, bool) {
	for _, s := range strategies {
		if url, ok := s.Resolve(raw); ok && storableURL(url) {
			return url, s.Name, true
		}
	}
	return "", "", false
}

// storableURL 能放进 2048 字符的 URL 列
func storableURL(u string) bool {
	return utf8.ValidString(u) && utf8.RuneCountInString(u) <= domain.MaxURLLength
}

// EnclosureImage 只接受 http(s)；声明了非 image/* 类型的附件（音频、PDF）不算配图
func EnclosureImage(raw collector.RawItem) (string, bool) {
	u := strings.TrimSpace(raw.EnclosureURL)
	if !httpURLExpr.MatchString(u) {
		return "", false
	}
	if t := strings.ToLower(strings.TrimSpace(raw.EnclosureType)); t != "" && !strings.HasPrefix(t, "image/") {
		return "", false
	}
	return u, true
}

func MediaContentImage(raw collector.RawItem) (string, bool) {
	u := strings.TrimSpace(raw.MediaContentURL)
	return u, u != ""
}

// InlineHTMLImage 取正文（其次 description）中第一个 src 为 http(s) 的 <img>，跳过 data: 等内联图
func InlineHTMLImage(raw collector.RawItem) (string, bool) {
	for _, html := range []string{raw.Content, raw.Summary} {
		if !strings.Contains(strings.ToLower(html), "<img") {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		var src string
		doc.Find("img[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			src = strings.TrimSpace(sel.AttrOr("src", ""))
			if !httpURLExpr.MatchString(src) {
				src = ""
			}
			return src == ""
		})
		if src != "" {
			return src, true
		}
	}
	return "", false
}

func ITunesImage(raw collector.RawItem) (string, bool) {
	u := strings.TrimSpace(raw.ITunesImage)
	return u, u != ""
}
