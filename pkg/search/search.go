package search

import (
	"context"
	"fmt"
	"strings"
)

// Provider 定义统一的检索能力。
// IsAvailable 只做凭证/配置检查，不发起网络请求；
// Search 要么返回完整结果集，要么返回 *ProviderError，不允许静默的部分成功。
type Provider interface {
	Name() string
	IsAvailable() bool
	Search(ctx context.Context, req *Request) ([]Result, error)
}

// Request 通用检索请求
type Request struct {
	Query      string
	MaxResults int
	Topic      string // "news" or "general"
	Depth      string // "basic" or "advanced"
	StartDate  string // Format: YYYY-MM-DD
	EndDate    string // Format: YYYY-MM-DD
}

// Result 单条检索结果。URL 去重时以去除首尾空白后的非空 URL 为准。
type Result struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet"`
	Provider  string  `json:"provider"`
	Published string  `json:"published,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// ProviderError 单个 Provider 的传输/鉴权/解析失败。
// 在 Manager 边界被捕获，不会向上传播。
type ProviderError struct {
	Provider string
	Type     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError 构造 ProviderError
func NewProviderError(provider, typ, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Type: typ, Message: message, Err: err}
}

// FormatResultsForPrompt 将检索结果压缩成便于引用的提示词片段
func FormatResultsForPrompt(results []Result, limit int) string {
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}
	var sb strings.Builder
	for i, r := range results[:limit] {
		fmt.Fprintf(&sb, "[%d] (%s) %s\nURL: %s\nSnippet: %s\n\n", i+1, r.Provider, r.Title, r.URL, r.Snippet)
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "(no search results)"
	}
	return out
}
