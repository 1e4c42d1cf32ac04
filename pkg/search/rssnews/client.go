// Package rssnews 提供免凭证的 Google News RSS 检索，作为降级链的兜底。
package rssnews

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iWorld-y/invest_radar/pkg/search"
)

const (
	defaultBaseURL = "https://news.google.com/rss/search"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Item 单条 RSS 条目。PubDate 尽力解析为 YYYY-MM-DD，失败时保留原始字符串。
// Snippet 由非 RSS 来源的条目携带，RSS 抓取不填充。
type Item struct {
	Title   string
	Link    string
	PubDate string
	Source  string
	Snippet string
}

// rss Google News RSS 文档结构
type rss struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []struct {
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			PubDate string `xml:"pubDate"`
			Source  string `xml:"source"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Client Google News RSS 客户端
type Client struct {
	baseURL string
	hl      string
	gl      string
	ceid    string
	days    int
	client  *resty.Client
}

// NewClient 创建 RSS 客户端。days 为默认检索时间窗（天）。
func NewClient(days int) *Client {
	if days <= 0 {
		days = 7
	}
	c := resty.New()
	c.SetTimeout(20 * time.Second)
	c.SetHeader("User-Agent", userAgent)
	return &Client{
		baseURL: defaultBaseURL,
		hl:      "zh-CN",
		gl:      "CN",
		ceid:    "CN:zh-Hans",
		days:    days,
		client:  c,
	}
}

var _ search.Provider = (*Client)(nil)

// Name 实现 search.Provider
func (c *Client) Name() string { return "google_news_rss" }

// IsAvailable RSS 无需凭证，永远可用
func (c *Client) IsAvailable() bool { return true }

// FetchItems 抓取并解析 RSS 条目，最多返回 limit 条。
// 查询中没有 when: 时间算子时自动追加。
func (c *Client) FetchItems(ctx context.Context, query string, timeRangeDays, limit int) ([]Item, error) {
	if timeRangeDays <= 0 {
		timeRangeDays = c.days
	}
	if limit <= 0 {
		limit = 8
	}
	q := query
	if !strings.Contains(q, "when:") {
		q = fmt.Sprintf("%s when:%dd", q, timeRangeDays)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":    q,
			"hl":   c.hl,
			"gl":   c.gl,
			"ceid": c.ceid,
		}).
		Get(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch rss: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("rss status %d", resp.StatusCode())
	}

	return parseItems(resp.Body(), limit)
}

// parseItems 解析 RSS XML，跳过无标题条目
func parseItems(body []byte, limit int) ([]Item, error) {
	var doc rss
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}

	items := make([]Item, 0, limit)
	for _, it := range doc.Channel.Items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		items = append(items, Item{
			Title:   title,
			Link:    strings.TrimSpace(it.Link),
			PubDate: normalizePubDate(strings.TrimSpace(it.PubDate)),
			Source:  strings.TrimSpace(it.Source),
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

// pubDateLayouts RFC-2822 风格日期的常见变体
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
}

// normalizePubDate 尽力把 pubDate 转成 YYYY-MM-DD，解析失败时原样返回
func normalizePubDate(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return raw
}

// Search 实现 search.Provider，把 RSS 条目映射为检索结果
func (c *Client) Search(ctx context.Context, req *search.Request) ([]search.Result, error) {
	days := c.days
	if req.StartDate != "" && req.EndDate != "" {
		if start, err1 := time.Parse(time.DateOnly, req.StartDate); err1 == nil {
			if end, err2 := time.Parse(time.DateOnly, req.EndDate); err2 == nil {
				if d := int(end.Sub(start).Hours() / 24); d > 0 {
					days = d
				}
			}
		}
	}

	items, err := c.FetchItems(ctx, req.Query, days, req.MaxResults)
	if err != nil {
		return nil, search.NewProviderError(c.Name(), "transport", err.Error(), err)
	}

	out := make([]search.Result, 0, len(items))
	for _, it := range items {
		if it.Link == "" {
			continue
		}
		out = append(out, search.Result{
			Title:     it.Title,
			URL:       it.Link,
			Snippet:   it.Title,
			Provider:  c.Name(),
			Published: it.PubDate,
		})
	}
	return out, nil
}

// QueryURL 返回一次抓取实际使用的 URL，便于调试与测试
func (c *Client) QueryURL(query string, timeRangeDays int) string {
	q := query
	if !strings.Contains(q, "when:") {
		q = fmt.Sprintf("%s when:%dd", q, timeRangeDays)
	}
	v := url.Values{}
	v.Set("q", q)
	v.Set("hl", c.hl)
	v.Set("gl", c.gl)
	v.Set("ceid", c.ceid)
	return c.baseURL + "?" + v.Encode()
}
