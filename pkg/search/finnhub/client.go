// Package finnhub 封装 Finnhub 公司新闻接口作为面向标的的检索 Provider。
package finnhub

import (
	"context"
	"strings"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"

	"github.com/iWorld-y/invest_radar/pkg/search"
)

// Client Finnhub 公司新闻客户端。按股票代码取新闻，与查询词无关。
type Client struct {
	apiKey string
	symbol string
	api    *finnhub.DefaultApiService
}

// NewClient 创建 Finnhub Provider。symbol 为空时 Provider 不可用。
func NewClient(apiKey, symbol string) *Client {
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	return &Client{
		apiKey: apiKey,
		symbol: strings.ToUpper(strings.TrimSpace(symbol)),
		api:    finnhub.NewAPIClient(cfg).DefaultApi,
	}
}

var _ search.Provider = (*Client)(nil)

// Name 实现 search.Provider
func (c *Client) Name() string { return "finnhub" }

// IsAvailable 需要 API Key 和股票代码同时配置
func (c *Client) IsAvailable() bool { return c.apiKey != "" && c.symbol != "" }

// Search 拉取日期区间内的公司新闻。区间缺省为最近 7 天。
func (c *Client) Search(ctx context.Context, req *search.Request) ([]search.Result, error) {
	from, to := req.StartDate, req.EndDate
	if from == "" || to == "" {
		now := time.Now()
		to = now.Format(time.DateOnly)
		from = now.AddDate(0, 0, -7).Format(time.DateOnly)
	}

	news, _, err := c.api.CompanyNews(ctx).Symbol(c.symbol).From(from).To(to).Execute()
	if err != nil {
		return nil, search.NewProviderError(c.Name(), "transport", "company news request failed", err)
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = 5
	}

	out := make([]search.Result, 0, limit)
	for _, n := range news {
		if n.Headline == nil || n.Url == nil {
			continue
		}
		title := strings.TrimSpace(*n.Headline)
		u := strings.TrimSpace(*n.Url)
		if title == "" || u == "" {
			continue
		}
		r := search.Result{
			Title:    title,
			URL:      u,
			Provider: c.Name(),
		}
		if n.Summary != nil {
			r.Snippet = *n.Summary
		}
		if n.Datetime != nil {
			r.Published = time.Unix(*n.Datetime, 0).Format(time.DateOnly)
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
