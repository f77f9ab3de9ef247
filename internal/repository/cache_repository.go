package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// 语义缓存条目在 Redis 中的列表键。
const cacheEntriesKey = "semantic_cache:entries"

// CachedAnswer 是落在 Redis 中的一条语义缓存记录，
// 带上问题向量以便进程重启后重建内存索引。
type CachedAnswer struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Vector   []float32 `json:"vector"`
}

// CacheRepository 定义了语义缓存条目的持久化操作。
// 缓存只追加不更新，Redis 中用列表按写入顺序保存。
type CacheRepository interface {
	Append(ctx context.Context, entry CachedAnswer) error
	LoadAll(ctx context.Context) ([]CachedAnswer, error)
}

type redisCacheRepository struct {
	redisClient *redis.Client
}

// NewCacheRepository 创建一个新的 CacheRepository 实例。
func NewCacheRepository(redisClient *redis.Client) CacheRepository {
	return &redisCacheRepository{redisClient: redisClient}
}

// Append 把一条缓存记录追加到列表末尾。
func (r *redisCacheRepository) Append(ctx context.Context, entry CachedAnswer) error {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := r.redisClient.RPush(ctx, cacheEntriesKey, jsonData).Err(); err != nil {
		return fmt.Errorf("failed to append cache entry: %w", err)
	}
	return nil
}

// LoadAll 按写入顺序读出全部缓存记录，无法解析的条目直接跳过。
func (r *redisCacheRepository) LoadAll(ctx context.Context) ([]CachedAnswer, error) {
	items, err := r.redisClient.LRange(ctx, cacheEntriesKey, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entries: %w", err)
	}

	entries := make([]CachedAnswer, 0, len(items))
	for _, item := range items {
		var entry CachedAnswer
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
