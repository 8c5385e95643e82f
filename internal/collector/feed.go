package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/LJTian/InsightHub/internal/domain"
)

const (
	defaultUserAgent   = "InsightHubBot/1.0"
	defaultMaxBodySize = 5 << 20 // 5MB
	feedAccept         = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
)

// FeedFetcher 通过 colly 下载 RSS/Atom 文档，再交给 gofeed 解析
type FeedFetcher struct {
	userAgent   string
	maxBodySize int
	logger      *slog.Logger

	download func(url string, timeout time.Duration) ([]byte, error)
}

func NewFeedFetcher(userAgent string, maxBodySize int, logger *slog.Logger) *FeedFetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &FeedFetcher{userAgent: userAgent, maxBodySize: maxBodySize, logger: logger}
	f.download = f.collyDownload
	return f
}

var _ Fetcher = (*FeedFetcher)(nil)

func (f *FeedFetcher) Fetch(ctx context.Context, src domain.Source, timeout time.Duration) ([]RawItem, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fail := func(err error) error {
		return &FetchError{SourceID: src.ID, URL: src.FeedURL, Err: err}
	}
	if strings.TrimSpace(src.FeedURL) == "" {
		return nil, fail(errors.New("empty feed url"))
	}
	if err := ctx.Err(); err != nil {
		return nil, fail(err)
	}

	f.logger.Debug("fetch feed", "source_id", src.ID, "url", src.FeedURL)

	type downloaded struct {
		body []byte
		err  error
	}
	// colly 不接收 context，下载放到 goroutine 里，超时由 SetRequestTimeout 兜底
	done := make(chan downloaded, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- downloaded{err: fmt.Errorf("panic while downloading: %v", r)}
			}
		}()
		body, err := f.download(src.FeedURL, timeout)
		done <- downloaded{body: body, err: err}
	}()

	var body []byte
	select {
	case <-ctx.Done():
		return nil, fail(ctx.Err())
	case d := <-done:
		if d.err != nil {
			return nil, fail(d.err)
		}
		body = d.body
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fail(fmt.Errorf("parse feed: %w", err))
	}

	items := make([]RawItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		items = append(items, fromFeedItem(it))
	}

	if len(items) == 0 {
		f.logger.Info("feed has no items", "source_id", src.ID)
	}
	return items, nil
}

func (f *FeedFetcher) collyDownload(url string, timeout time.Duration) ([]byte, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.MaxBodySize(f.maxBodySize),
	)
	c.SetRequestTimeout(timeout)

	var body []byte
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", feedAccept)
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("visit: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty response body")
	}
	return body, nil
}

func fromFeedItem(it *gofeed.Item) RawItem {
	raw := RawItem{
		Title:      it.Title,
		Summary:    it.Description,
		Content:    it.Content,
		Link:       it.Link,
		GUID:       it.GUID,
		PubDate:    firstNonBlank(it.Published, it.Updated),
		Categories: it.Categories,
	}

	switch {
	case it.PublishedParsed != nil:
		raw.IsoDate = it.PublishedParsed.UTC().Format(time.RFC3339)
	case it.UpdatedParsed != nil:
		raw.IsoDate = it.UpdatedParsed.UTC().Format(time.RFC3339)
	}

	raw.ContentSnippet = htmlToText(firstNonBlank(it.Content, it.Description))

	if enc := pickEnclosure(it.Enclosures); enc != nil {
		raw.EnclosureURL = strings.TrimSpace(enc.URL)
		raw.EnclosureType = strings.TrimSpace(enc.Type)
	}

	raw.MediaContentURL = mediaContentURL(it.Extensions)
	if it.ITunesExt != nil {
		raw.ITunesImage = strings.TrimSpace(it.ITunesExt.Image)
	}
	if it.Author != nil {
		raw.Author = strings.TrimSpace(it.Author.Name)
	}
	return raw
}

// pickEnclosure 优先 image/* 附件，播客类 feed 的第一个附件通常是音频
func pickEnclosure(list []*gofeed.Enclosure) *gofeed.Enclosure {
	var first *gofeed.Enclosure
	for _, enc := range list {
		if enc == nil || strings.TrimSpace(enc.URL) == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(enc.Type)), "image/") {
			return enc
		}
		if first == nil {
			first = enc
		}
	}
	return first
}

// mediaContentURL 读取 <media:content url="...">，兼容外层包了 <media:group> 的写法
func mediaContentURL(exts ext.Extensions) string {
	media, ok := exts["media"]
	if !ok {
		return ""
	}
	if u := firstAttr(media["content"], "url"); u != "" {
		return u
	}
	for _, g := range media["group"] {
		if u := firstAttr(g.Children["content"], "url"); u != "" {
			return u
		}
	}
	return ""
}

func firstAttr(list []ext.Extension, attr string) string {
	for _, e := range list {
		if v := strings.TrimSpace(e.Attrs[attr]); v != "" {
			return v
		}
	}
	return ""
}

// htmlToText 去掉 HTML 标签并压缩空白；不含标签的文本原样返回（仅压缩空白）
func htmlToText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
