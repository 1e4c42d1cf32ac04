// Package cache 提供按 (query, provider, 参数) 内容寻址的检索结果缓存。
// 条目一旦写入即视为不可变快照；过期采用读取时惰性判断，不做主动清理。
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/iWorld-y/invest_radar/pkg/search"
)

// UnionProvider 合并结果集在缓存键中占用的 provider 名
const UnionProvider = search.UnionProvider

// Store 缓存后端接口。Read 未命中或条目过期时返回 ok=false。
type Store = search.Store

// Key 计算缓存键：对规范化 JSON 取 sha256。
// 字段顺序固定，保证相同参数得到相同键。
func Key(query, provider string, maxResults int, topic, depth string) string {
	return search.Key(query, provider, maxResults, topic, depth)
}

// entry 落盘格式：{ts, saved_at, results}
type entry struct {
	TS      float64         `json:"ts"`
	SavedAt string          `json:"saved_at"`
	Results []search.Result `json:"results"`
}

// FileStore 每个缓存键对应目录下的一个 JSON 文件
type FileStore struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFileStore 创建文件缓存。目录在首次写入时才创建。
func NewFileStore(dir string, ttl time.Duration) *FileStore {
	return &FileStore{dir: dir, ttl: ttl, now: time.Now}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Read 读取缓存。文件缺失、损坏或超过 TTL 都按未命中处理。
func (s *FileStore) Read(key string) ([]search.Result, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false
	}
	if e.TS > 0 && s.now().Sub(time.Unix(int64(e.TS), 0)) > s.ttl {
		return nil, false
	}
	if e.Results == nil {
		return []search.Result{}, true
	}
	return e.Results, true
}

// Write 写入缓存。并发写同一键采用 last-write-wins，不加锁。
func (s *FileStore) Write(key string, results []search.Result) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	now := s.now()
	e := entry{
		TS:      float64(now.Unix()),
		SavedAt: now.UTC().Format(time.RFC3339),
		Results: results,
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(key), data, 0o644)
}
