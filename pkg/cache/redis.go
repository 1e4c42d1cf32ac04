package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iWorld-y/invest_radar/pkg/search"
)

// RedisStore 基于 Redis 的共享缓存后端。
// 条目格式与 FileStore 一致，TTL 同时交给 Redis 过期和惰性检查兜底。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisStore 创建 Redis 缓存后端
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		prefix: "invest_radar:search:",
		now:    time.Now,
	}
}

// Read 读取缓存，网络错误与未命中一视同仁
func (s *RedisStore) Read(key string) ([]search.Result, bool) {
	data, err := s.client.Get(context.Background(), s.prefix+key).Bytes()
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

// Write 写入缓存并设置过期时间
func (s *RedisStore) Write(key string, results []search.Result) error {
	now := s.now()
	e := entry{
		TS:      float64(now.Unix()),
		SavedAt: now.UTC().Format(time.RFC3339),
		Results: results,
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.client.Set(context.Background(), s.prefix+key, data, s.ttl).Err()
}
