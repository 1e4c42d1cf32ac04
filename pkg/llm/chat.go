// Package llm 把 eino ChatModel 包装成带限流与重试的对话能力。
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/invest_radar/pkg/config"
	"github.com/iWorld-y/invest_radar/pkg/logger"
)

// Message 对话历史条目。Role 取 user/assistant，兼容旧的 model 写法。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatModel 外部 LLM 能力
type ChatModel interface {
	Chat(ctx context.Context, prompt string, history []Message) (string, error)
	ChatWithSystem(ctx context.Context, systemPrompt, userMessage string, history []Message) (string, error)
}

// ConfigError 构造期配置错误，必须在启动时暴露
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %s", e.Field, e.Message)
}

// EinoModel 基于 eino 的 ChatModel 实现
type EinoModel struct {
	cm         model.ChatModel
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

// NewEinoModel 创建 LLM 客户端。API Key 缺失视为致命配置错误。
func NewEinoModel(ctx context.Context, cfg *config.LLMConfig, conc *config.ConcurrencyConfig) (*EinoModel, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Field: "llm.api_key", Message: "未设置 LLM API Key"}
	}

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	limit := rate.Limit(float64(conc.RPM) / 60.0)
	limiter := rate.NewLimiter(limit, conc.QPS)
	logger.Log.Infof("[llm] 限流器已配置: Limit=%.2f req/s, Burst=%d", limit, conc.QPS)

	return &EinoModel{
		cm:         cm,
		limiter:    limiter,
		maxRetries: 3,
		baseDelay:  2 * time.Second,
	}, nil
}

// NewWithChatModel 直接注入底层模型，测试用
func NewWithChatModel(cm model.ChatModel) *EinoModel {
	return &EinoModel{
		cm:         cm,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		maxRetries: 0,
		baseDelay:  time.Millisecond,
	}
}

// buildMessages 组装消息序列并归一化历史角色：model/assistant 归为 assistant，其余归为 user
func buildMessages(systemPrompt, prompt string, history []Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: systemPrompt})
	}
	for _, msg := range history {
		role := schema.User
		switch strings.ToLower(msg.Role) {
		case "assistant", "model":
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{Role: role, Content: msg.Content})
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: prompt})
	return messages
}

// Chat 普通对话
func (m *EinoModel) Chat(ctx context.Context, prompt string, history []Message) (string, error) {
	return m.generate(ctx, buildMessages("", prompt, history))
}

// ChatWithSystem 带系统提示的对话
func (m *EinoModel) ChatWithSystem(ctx context.Context, systemPrompt, userMessage string, history []Message) (string, error) {
	return m.generate(ctx, buildMessages(systemPrompt, userMessage, history))
}

// generate 调用底层模型，对 429 做指数退避重试
func (m *EinoModel) generate(ctx context.Context, messages []*schema.Message) (string, error) {
	var lastErr error
	for i := 0; i <= m.maxRetries; i++ {
		if err := m.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("limiter wait: %w", err)
		}

		resp, err := m.cm.Generate(ctx, messages)
		if err != nil {
			if isRateLimited(err) && i < m.maxRetries {
				lastErr = err
				delay := m.baseDelay * time.Duration(1<<i)
				logger.Log.Warnf("[llm] 触发 429 限流，等待 %v 后重试 (%d/%d)", delay, i+1, m.maxRetries)
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(delay):
					continue
				}
			}
			return "", err
		}
		return resp.Content, nil
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}
