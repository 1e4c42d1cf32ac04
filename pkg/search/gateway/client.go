// Package gateway 通过本地网关的 tools/invoke 接口调用 web_search 工具。
// 网关凭证优先取环境变量，否则回退到本地网关配置文件。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iWorld-y/invest_radar/pkg/search"
)

const (
	envURL      = "GATEWAY_URL"
	envToken    = "GATEWAY_TOKEN"
	defaultPort = 18789
)

// Client 网关 web_search Provider
type Client struct {
	baseURL    string
	token      string
	sessionKey string
	client     *http.Client
}

// Options 构造参数。ConfigPath 为空时使用 ~/.openclaw/openclaw.json。
type Options struct {
	URL        string
	Token      string
	ConfigPath string
	SessionKey string
}

// NewClient 创建网关 Provider。凭证解析顺序：显式参数 > 环境变量 > 配置文件。
// 凭证不全时 Provider 不可用，但构造本身不报错。
func NewClient(opts Options) *Client {
	sessionKey := opts.SessionKey
	if sessionKey == "" {
		sessionKey = "main"
	}

	base, token := opts.URL, opts.Token
	if base == "" || token == "" {
		base, token = resolveConfig(opts.ConfigPath)
	}

	return &Client{
		baseURL:    wsToHTTP(base),
		token:      token,
		sessionKey: sessionKey,
		client:     &http.Client{Timeout: 25 * time.Second},
	}
}

var _ search.Provider = (*Client)(nil)

// Name 实现 search.Provider
func (c *Client) Name() string { return "gateway_web_search" }

// IsAvailable 地址和令牌都齐备才可用，凭证不全时绝不发起调用
func (c *Client) IsAvailable() bool { return c.baseURL != "" && c.token != "" }

// resolveConfig 先看环境变量（必须成对），再读本地网关配置文件
func resolveConfig(configPath string) (string, string) {
	url := strings.TrimSpace(os.Getenv(envURL))
	token := strings.TrimSpace(os.Getenv(envToken))
	if url != "" && token != "" {
		return url, token
	}

	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", ""
		}
		path = filepath.Join(home, ".openclaw", "openclaw.json")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ""
	}

	var cfg struct {
		Gateway struct {
			Port int    `json:"port"`
			Bind string `json:"bind"`
			Auth struct {
				Token string `json:"token"`
			} `json:"auth"`
		} `json:"gateway"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", ""
	}

	port := cfg.Gateway.Port
	if port == 0 {
		port = defaultPort
	}
	// 本地网关固定走回环地址，即使 bind 配置为 0.0.0.0
	return fmt.Sprintf("http://127.0.0.1:%d", port), strings.TrimSpace(cfg.Gateway.Auth.Token)
}

// wsToHTTP 将 ws/wss 地址规范化为 http/https，invoke 端点是纯 HTTP
func wsToHTTP(u string) string {
	u = strings.TrimSpace(u)
	switch {
	case u == "":
		return ""
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return u
	default:
		return "http://" + u
	}
}

// invokeEnvelope 网关响应外层信封
type invokeEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// toolResult web_search 工具的两种响应形态：
// details 对象，或 chat 风格的 content[0].text 内嵌 JSON 字符串。
type toolResult struct {
	Details json.RawMessage `json:"details"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type webSearchPayload struct {
	Results []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Snippet     string `json:"snippet"`
		Published   string `json:"published"`
		Age         string `json:"age"`
	} `json:"results"`
}

func (c *Client) invokeTool(ctx context.Context, tool string, args map[string]any) (*webSearchPayload, error) {
	body, err := json.Marshal(map[string]any{
		"tool":       tool,
		"args":       args,
		"sessionKey": c.sessionKey,
	})
	if err != nil {
		return nil, search.NewProviderError(c.Name(), "encode", "marshal invoke payload failed", err)
	}

	url := c.baseURL + "/tools/invoke"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, search.NewProviderError(c.Name(), "transport", "create request failed", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, search.NewProviderError(c.Name(), "transport", "invoke request failed", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, search.NewProviderError(c.Name(), "transport", "read body failed", err)
	}
	if res.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("gateway status %d: %.200s", res.StatusCode, string(raw))
		return nil, search.NewProviderError(c.Name(), "status", msg, nil)
	}

	var env invokeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, search.NewProviderError(c.Name(), "decode", "unmarshal envelope failed", err)
	}
	if !env.OK {
		msg := fmt.Sprintf("tool invoke failed: %s", env.Error.Message)
		return nil, search.NewProviderError(c.Name(), env.Error.Type, msg, nil)
	}

	var tr toolResult
	if err := json.Unmarshal(env.Result, &tr); err != nil {
		return nil, search.NewProviderError(c.Name(), "decode", "unmarshal tool result failed", err)
	}

	// 形态一：details 对象
	if len(tr.Details) > 0 && string(tr.Details) != "null" {
		var payload webSearchPayload
		if err := json.Unmarshal(tr.Details, &payload); err == nil {
			return &payload, nil
		}
	}
	// 形态二：content[0].text 内嵌 JSON
	if len(tr.Content) > 0 {
		text := strings.TrimSpace(tr.Content[0].Text)
		if strings.HasPrefix(text, "{") {
			var payload webSearchPayload
			if err := json.Unmarshal([]byte(text), &payload); err == nil {
				return &payload, nil
			}
		}
	}
	// 两种形态都解析不出来则视为失败，不做静默降级
	return nil, search.NewProviderError(c.Name(), "decode", "unparseable web_search result", nil)
}

// Search 调用 web_search 工具。topic/depth 仅为接口兼容，网关不透传。
func (c *Client) Search(ctx context.Context, req *search.Request) ([]search.Result, error) {
	count := req.MaxResults
	if count < 1 {
		count = 1
	}
	if count > 10 {
		count = 10
	}

	payload, err := c.invokeTool(ctx, "web_search", map[string]any{
		"query":   req.Query,
		"count":   count,
		"country": "ALL",
	})
	if err != nil {
		return nil, err
	}

	out := make([]search.Result, 0, len(payload.Results))
	for _, r := range payload.Results {
		title := strings.TrimSpace(r.Title)
		u := strings.TrimSpace(r.URL)
		if title == "" || u == "" {
			continue
		}
		snippet := strings.TrimSpace(r.Description)
		if snippet == "" {
			snippet = strings.TrimSpace(r.Snippet)
		}
		published := r.Published
		if published == "" {
			published = r.Age
		}
		out = append(out, search.Result{
			Title:     title,
			URL:       u,
			Snippet:   snippet,
			Provider:  "gateway:web_search",
			Published: published,
		})
	}
	return out, nil
}
