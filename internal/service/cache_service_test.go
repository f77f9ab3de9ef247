package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medibot-go/internal/repository"
	"medibot-go/internal/vectorindex"
)

// fakeCacheRepo 是 CacheRepository 的内存实现。
type fakeCacheRepo struct {
	entries []repository.CachedAnswer
	loadErr error
}

func (f *fakeCacheRepo) Append(ctx context.Context, entry repository.CachedAnswer) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeCacheRepo) LoadAll(ctx context.Context) ([]repository.CachedAnswer, error) {
	return f.entries, f.loadErr
}

type recordingPolicy struct {
	counts []int
}

func (p *recordingPolicy) AfterStore(entryCount int) {
	p.counts = append(p.counts, entryCount)
}

func TestCacheStoreThenCheckHit(t *testing.T) {
	embedder := &stubEmbedding{vectors: map[string][]float32{
		"what causes diabetes":   {1, 0, 0},
		"what leads to diabetes": {0.99, 0.05, 0},
	}}
	cache := NewCacheService(embedder, &fakeCacheRepo{}, 0.90, nil)

	cache.Store(context.Background(), "what causes diabetes", "High blood sugar over time.")
	require.Equal(t, 1, cache.Size())

	// 近似问法的相似度远高于阈值，应命中
	answer, hit := cache.Check(context.Background(), "what leads to diabetes")
	require.True(t, hit)
	assert.Equal(t, "High blood sugar over time.", answer)
}

func TestCacheCheckBelowThresholdMisses(t *testing.T) {
	embedder := &stubEmbedding{vectors: map[string][]float32{
		"what causes diabetes": {1, 0, 0},
		"how to treat a cold":  {0, 1, 0},
	}}
	cache := NewCacheService(embedder, &fakeCacheRepo{}, 0.90, nil)

	cache.Store(context.Background(), "what causes diabetes", "High blood sugar over time.")

	_, hit := cache.Check(context.Background(), "how to treat a cold")
	assert.False(t, hit)
}

func TestCacheThresholdBoundary(t *testing.T) {
	// 所有向量都选在浮点下精确可表示的值：
	// [0.5,0.5,0.5,0.5] 的 L2 范数恰为 1，与 [1,0,0,0] 的内积恰为 0.5。
	embedder := &stubEmbedding{vectors: map[string][]float32{
		"stored":       {1, 0, 0, 0},
		"at threshold": {0.5, 0.5, 0.5, 0.5},
		"below":        {0, 1, 0, 0},
	}}
	cache := NewCacheService(embedder, &fakeCacheRepo{}, 0.5, nil)
	cache.Store(context.Background(), "stored", "answer")

	// 相似度恰好等于阈值时算命中
	answer, hit := cache.Check(context.Background(), "at threshold")
	require.True(t, hit)
	assert.Equal(t, "answer", answer)

	// 严格低于阈值时未命中
	_, hit = cache.Check(context.Background(), "below")
	assert.False(t, hit)
}

func TestCacheEmptyMisses(t *testing.T) {
	cache := NewCacheService(&stubEmbedding{fallback: []float32{1, 0}}, &fakeCacheRepo{}, 0.90, nil)
	_, hit := cache.Check(context.Background(), "anything")
	assert.False(t, hit)
}

func TestCacheWarmLoadFromRepository(t *testing.T) {
	repo := &fakeCacheRepo{entries: []repository.CachedAnswer{
		{Question: "q1", Answer: "a1", Vector: vectorindex.Normalize([]float32{1, 0, 0})},
		{Question: "q2", Answer: "a2", Vector: vectorindex.Normalize([]float32{0, 1, 0})},
		{Question: "broken", Answer: "x", Vector: nil},
	}}
	embedder := &stubEmbedding{vectors: map[string][]float32{"q2": {0, 1, 0}}}

	cache := NewCacheService(embedder, repo, 0.90, nil)
	// 空向量的条目被跳过
	assert.Equal(t, 2, cache.Size())

	answer, hit := cache.Check(context.Background(), "q2")
	require.True(t, hit)
	assert.Equal(t, "a2", answer)
}

func TestCacheWarmLoadFailureStartsEmpty(t *testing.T) {
	repo := &fakeCacheRepo{loadErr: errors.New("redis down")}
	cache := NewCacheService(&stubEmbedding{fallback: []float32{1, 0}}, repo, 0.90, nil)
	assert.Equal(t, 0, cache.Size())
}

func TestCacheStoreMirrorsToRepository(t *testing.T) {
	repo := &fakeCacheRepo{}
	embedder := &stubEmbedding{vectors: map[string][]float32{"q1": {3, 4, 0}}}
	cache := NewCacheService(embedder, repo, 0.90, nil)

	cache.Store(context.Background(), "q1", "a1")

	require.Len(t, repo.entries, 1)
	assert.Equal(t, "q1", repo.entries[0].Question)
	assert.Equal(t, "a1", repo.entries[0].Answer)
	// 镜像保存的是归一化后的向量
	assert.InDelta(t, 0.6, float64(repo.entries[0].Vector[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(repo.entries[0].Vector[1]), 1e-6)
}

func TestCacheStoreEmbeddingErrorIsSwallowed(t *testing.T) {
	cache := NewCacheService(&stubEmbedding{err: errors.New("api down")}, &fakeCacheRepo{}, 0.90, nil)
	cache.Store(context.Background(), "q1", "a1")
	assert.Equal(t, 0, cache.Size())
}

func TestCacheEvictionPolicyObservesStores(t *testing.T) {
	policy := &recordingPolicy{}
	embedder := &stubEmbedding{fallback: []float32{1, 0}}
	cache := NewCacheService(embedder, &fakeCacheRepo{}, 0.90, policy)

	cache.Store(context.Background(), "q1", "a1")
	cache.Store(context.Background(), "q2", "a2")

	assert.Equal(t, []int{1, 2}, policy.counts)
}
