package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/bytedance/gg/gson"

	"github.com/iWorld-y/invest_radar/pkg/logger"
)

// UnionProvider 合并结果集在缓存键中占用的 provider 名
const UnionProvider = "union"

// Store 缓存后端接口。Read 未命中或条目过期时返回 ok=false。
type Store interface {
	Read(key string) ([]Result, bool)
	Write(key string, results []Result) error
}

// Key 计算缓存键：对规范化 JSON 取 sha256。
// 字段顺序固定，保证相同参数得到相同键。
func Key(query, provider string, maxResults int, topic, depth string) string {
	raw, _ := json.Marshal(struct {
		Depth string `json:"depth"`
		N     int    `json:"n"`
		P     string `json:"p"`
		Q     string `json:"q"`
		Topic string `json:"topic"`
	}{depth, maxResults, provider, query, topic})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Manager 按优先级扇出多个 Provider，合并结果并缓存。
// Search 永远不返回错误：单个 Provider 失败只会被跳过。
type Manager struct {
	providers   []Provider
	store       Store
	hardTimeout time.Duration
	now         func() time.Time
}

// NewManager 创建检索管理器。providers 的顺序即优先级。
func NewManager(providers []Provider, store Store, hardTimeout time.Duration) *Manager {
	return &Manager{
		providers:   providers,
		store:       store,
		hardTimeout: hardTimeout,
		now:         time.Now,
	}
}

// Providers 返回当前配置的 Provider 列表
func (m *Manager) Providers() []Provider { return m.providers }

// Search 执行一次联合检索：
//  1. union 缓存命中则直接返回；
//  2. 按优先级遍历 Provider，每次调用前检查硬超时预算；
//  3. 单 Provider 结果走各自的缓存键，成功才写缓存；
//  4. 按 URL 首见去重合并，达到 MaxResults 即短路；
//  5. 合并结果（包括空集）写入 union 缓存。
func (m *Manager) Search(ctx context.Context, req *Request) []Result {
	start := m.now()
	logger.Log.Infof("[Manager.Search] %d 个 Provider，query=%.80s", len(m.providers), req.Query)

	unionKey := Key(req.Query, UnionProvider, req.MaxResults, req.Topic, req.Depth)
	if cached, ok := m.store.Read(unionKey); ok {
		logger.Log.Infof("[Manager.Search] union 缓存命中，返回 %d 条", len(cached))
		return cached
	}

	merged := make([]Result, 0, req.MaxResults)
	seen := make(map[string]struct{})

	for _, p := range m.providers {
		if elapsed := m.now().Sub(start); elapsed > m.hardTimeout {
			logger.Log.Warnf("[Manager.Search] 超出硬超时预算 (%.1fs > %s)，停止遍历", elapsed.Seconds(), m.hardTimeout)
			break
		}
		if !p.IsAvailable() {
			logger.Log.Debugf("[Manager.Search] Provider %s 不可用，跳过", p.Name())
			continue
		}

		key := Key(req.Query, p.Name(), req.MaxResults, req.Topic, req.Depth)
		res, ok := m.store.Read(key)
		if ok {
			logger.Log.Debugf("[Manager.Search] 缓存命中 (%s)，%d 条", p.Name(), len(res))
		} else {
			var err error
			res, err = p.Search(ctx, req)
			if err != nil {
				logger.Log.Errorf("[Manager.Search] Provider %s 失败: %v", p.Name(), err)
				continue
			}
			logger.Log.Infof("[Manager.Search] Provider %s 返回 %d 条", p.Name(), len(res))
			logger.Log.Debugf("[Manager.Search] %s 原始结果: %.200s", p.Name(), gson.ToString(res))
			if len(res) > 0 {
				if err := m.store.Write(key, res); err != nil {
					logger.Log.Warnf("[Manager.Search] 写入缓存失败 (%s): %v", p.Name(), err)
				}
			}
		}

		for _, r := range res {
			u := strings.TrimSpace(r.URL)
			if u == "" {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			merged = append(merged, r)
			if len(merged) >= req.MaxResults {
				break
			}
		}
		if len(merged) >= req.MaxResults {
			break
		}
	}

	logger.Log.Infof("[Manager.Search] 合并后共 %d 条", len(merged))
	if err := m.store.Write(unionKey, merged); err != nil {
		logger.Log.Warnf("[Manager.Search] 写入 union 缓存失败: %v", err)
	}
	return merged
}
