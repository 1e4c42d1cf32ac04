// Package tavily 封装 Tavily Search API 作为检索 Provider。
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iWorld-y/invest_radar/pkg/search"
)

const defaultBaseURL = "https://api.tavily.com/search"

// Client Tavily API 客户端
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient 创建一个新的 Tavily Provider
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  http.DefaultClient,
	}
}

var _ search.Provider = (*Client)(nil)

// Name 实现 search.Provider
func (c *Client) Name() string { return "tavily" }

// IsAvailable 仅检查 API Key 是否配置
func (c *Client) IsAvailable() bool { return c.apiKey != "" }

// searchRequest Tavily 搜索请求参数
type searchRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth,omitempty"` // basic or advanced
	Topic             string `json:"topic,omitempty"`        // general or news
	MaxResults        int    `json:"max_results,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content,omitempty"`
	IncludeAnswer     bool   `json:"include_answer,omitempty"`
	StartDate         string `json:"start_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
}

// searchResponse Tavily 搜索响应
type searchResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

// Search 执行搜索并归一化为 search.Result
func (c *Client) Search(ctx context.Context, req *search.Request) ([]search.Result, error) {
	body := searchRequest{
		Query:       req.Query,
		SearchDepth: req.Depth,
		Topic:       req.Topic,
		MaxResults:  req.MaxResults,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if body.SearchDepth == "" {
		body.SearchDepth = "basic"
	}
	if body.Topic == "" {
		body.Topic = "general"
	}
	if body.MaxResults == 0 {
		body.MaxResults = 5
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, search.NewProviderError(c.Name(), "encode", "marshal request failed", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, search.NewProviderError(c.Name(), "transport", "create request failed", err)
	}
	httpReq.Header.Add("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Add("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, search.NewProviderError(c.Name(), "transport", "request failed", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, search.NewProviderError(c.Name(), "transport", "read body failed", err)
	}
	if res.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("tavily api error (status %d): %.200s", res.StatusCode, string(raw))
		return nil, search.NewProviderError(c.Name(), "status", msg, nil)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, search.NewProviderError(c.Name(), "decode", "unmarshal response failed", err)
	}

	out := make([]search.Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.URL) == "" {
			continue
		}
		out = append(out, search.Result{
			Title:     r.Title,
			URL:       r.URL,
			Snippet:   r.Content,
			Provider:  c.Name(),
			Published: r.PublishedDate,
			Score:     r.Score,
		})
	}
	return out, nil
}
