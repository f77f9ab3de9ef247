package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medibot-go/internal/model"
	"medibot-go/internal/vectorindex"
)

// stubEmbedding 按预置映射返回向量，未知文本返回 fallback。
type stubEmbedding struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (s *stubEmbedding) ModelID() string { return "stub-model" }

func (s *stubEmbedding) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.fallback, nil
}

func (s *stubEmbedding) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.CreateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// persistTestIndex 往临时目录写入一份小型医学索引。
func persistTestIndex(t *testing.T, dir string) {
	t.Helper()
	idx := vectorindex.New[model.IndexedChunk]("stub-model")
	vectors := [][]float32{
		vectorindex.Normalize([]float32{1, 0, 0}),
		vectorindex.Normalize([]float32{0.9, 0.1, 0}),
		vectorindex.Normalize([]float32{0, 1, 0}),
		vectorindex.Normalize([]float32{0.8, 0.2, 0}),
	}
	metadata := []model.IndexedChunk{
		{ChunkMeta: model.ChunkMeta{Source: "MedlinePlus", Title: "Diabetes", Category: "symptoms"}, ChunkText: "Diabetes causes frequent urination."},
		{ChunkMeta: model.ChunkMeta{Source: "Knowledge Base", Title: "Diabetes Care", Category: "remedies"}, ChunkText: "Manage blood sugar with diet."},
		{ChunkMeta: model.ChunkMeta{Source: "MedlinePlus", Title: "Common Cold", Category: "symptoms"}, ChunkText: "A cold causes cough and sneezing."},
		{ChunkMeta: model.ChunkMeta{Source: "Kaggle Medical QA", Type: "treatment", Category: "qa"}, ChunkText: "Q: How to treat diabetes?\n\nA: Insulin therapy."},
	}
	require.NoError(t, idx.Build(vectors, metadata))
	require.NoError(t, idx.Persist(dir))
}

func TestRetrievalSearchRanksAndHydrates(t *testing.T) {
	dir := t.TempDir()
	persistTestIndex(t, dir)

	embedder := &stubEmbedding{vectors: map[string][]float32{
		"diabetes symptoms": {1, 0, 0},
	}}
	svc := NewRetrievalService(embedder, dir)
	require.True(t, svc.Ready())

	results := svc.Search(context.Background(), "diabetes symptoms", 2)
	require.Len(t, results, 2)

	assert.Equal(t, "Diabetes", results[0].Metadata.Title)
	assert.Equal(t, "Diabetes causes frequent urination.", results[0].Text)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	// 元数据中不携带分块文本
	assert.Equal(t, "MedlinePlus", results[0].Metadata.Source)
}

func TestRetrievalSearchWithFilter(t *testing.T) {
	dir := t.TempDir()
	persistTestIndex(t, dir)

	embedder := &stubEmbedding{fallback: []float32{1, 0, 0}}
	svc := NewRetrievalService(embedder, dir)

	// 最相似的两条都不是 treatment，放大召回后才能命中 qa/treatment 分块
	results := svc.SearchWithFilter(context.Background(), "diabetes", "treatment", 1)
	require.Len(t, results, 1)
	assert.Equal(t, "Kaggle Medical QA", results[0].Metadata.Source)

	// Category 与 Type 任一匹配即通过过滤
	results = svc.SearchWithFilter(context.Background(), "diabetes", "remedies", 2)
	require.Len(t, results, 1)
	assert.Equal(t, "Diabetes Care", results[0].Metadata.Title)
}

func TestRetrievalSearchTruncatesToTopK(t *testing.T) {
	dir := t.TempDir()
	persistTestIndex(t, dir)

	embedder := &stubEmbedding{fallback: []float32{1, 0, 0}}
	svc := NewRetrievalService(embedder, dir)

	results := svc.SearchWithFilter(context.Background(), "diabetes", "symptoms", 1)
	assert.Len(t, results, 1)
}

func TestRetrievalNotReadyReturnsEmpty(t *testing.T) {
	svc := NewRetrievalService(&stubEmbedding{fallback: []float32{1, 0, 0}}, t.TempDir())

	results := svc.Search(context.Background(), "anything", 5)
	assert.Empty(t, results)
	assert.False(t, svc.Ready())
}

func TestRetrievalEmbeddingErrorReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	persistTestIndex(t, dir)

	svc := NewRetrievalService(&stubEmbedding{err: errors.New("api down")}, dir)
	results := svc.Search(context.Background(), "diabetes", 5)
	assert.Empty(t, results)
}
