package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/InsightHub/internal/domain"
)

// DefaultTimeout 单个数据源抓取的默认超时
const DefaultTimeout = 15 * time.Second

// RawItem 是 feed 解析后的单条原始数据，所有字段都可能为空。
// 字段取舍全部交给 processor 决定，这里只做解析库输出到结构体的搬运。
type RawItem struct {
	Title string
	// ContentSnippet 是 HTML 正文去标签后的纯文本
	ContentSnippet string
	// Summary 是原始 description/summary，可能含 HTML
	Summary string
	Content string
	Link    string
	GUID    string
	// IsoDate 为解析库识别出的发布时间（RFC 3339），PubDate 为原始字符串
	IsoDate string
	PubDate string

	EnclosureURL    string
	EnclosureType   string
	MediaContentURL string
	ITunesImage     string

	Author     string
	Categories []string
}

// Fetcher 抽象每一个数据源的抓取与解析
type Fetcher interface {
	Fetch(ctx context.Context, src domain.Source, timeout time.Duration) ([]RawItem, error)
}

// FetchError 网络、状态码、超时或解析失败，只影响所属数据源
type FetchError struct {
	SourceID string
	URL      string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch source %s (%s): %v", e.SourceID, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
