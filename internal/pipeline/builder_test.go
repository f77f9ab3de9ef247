package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medibot-go/internal/chunker"
	"medibot-go/internal/model"
	"medibot-go/internal/vectorindex"
)

// stubEmbedder 根据关键词生成确定性的三维向量，方便断言排序。
type stubEmbedder struct {
	batches [][]string
	err     error
}

func (s *stubEmbedder) ModelID() string { return "stub-model" }

func (s *stubEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *stubEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, texts)
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = embedText(t)
	}
	return vectors, nil
}

func embedText(text string) []float32 {
	lower := strings.ToLower(text)
	v := []float32{0.1, 0.1, 0.1}
	if strings.Contains(lower, "urination") || strings.Contains(lower, "blood sugar") {
		v[0] = 1
	}
	if strings.Contains(lower, "cough") || strings.Contains(lower, "sneezing") {
		v[1] = 1
	}
	return v
}

func TestBuildRanksRelevantDocumentFirst(t *testing.T) {
	docs := []model.Document{
		{Text: "Diabetes causes frequent urination, thirst and high blood sugar.", Source: "MedlinePlus", Title: "Diabetes", Category: "symptoms"},
		{Text: "The common cold causes cough and sneezing.", Source: "MedlinePlus", Title: "Common Cold", Category: "symptoms"},
	}

	builder := NewBuilder(&stubEmbedder{}, 400, 50)
	index, err := builder.Build(context.Background(), docs)
	require.NoError(t, err)
	require.Equal(t, 2, index.Size())
	assert.Equal(t, "stub-model", index.ModelID())

	query := vectorindex.Normalize(embedText("frequent urination"))
	hits, err := index.Search(query, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Diabetes", index.Metadata(hits[0].Index).Title)
	assert.Equal(t, "Common Cold", index.Metadata(hits[1].Index).Title)
}

func TestBuildCopiesMetadataToEveryChunk(t *testing.T) {
	// 250 个词、窗口 100、重叠 20，应切成 3 块，元数据逐块拷贝
	words := make([]string, 250)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	docs := []model.Document{{
		Text:     strings.Join(words, " "),
		Source:   "Kaggle Medical QA",
		Type:     "treatment",
		Extra:    map[string]string{"question": "q1"},
		Category: "qa",
	}}

	builder := NewBuilder(&stubEmbedder{}, 100, 20)
	index, err := builder.Build(context.Background(), docs)
	require.NoError(t, err)
	require.Equal(t, 3, index.Size())

	for i := 0; i < index.Size(); i++ {
		meta := index.Metadata(i)
		assert.Equal(t, "Kaggle Medical QA", meta.Source)
		assert.Equal(t, "treatment", meta.Type)
		assert.Equal(t, "q1", meta.Extra["question"])
		assert.NotEmpty(t, meta.ChunkText)
	}
}

func TestBuildEmptyCorpus(t *testing.T) {
	builder := NewBuilder(&stubEmbedder{}, 400, 50)
	index, err := builder.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, index.Size())
}

func TestBuildBatchesEmbeddingRequests(t *testing.T) {
	docs := make([]model.Document, 70)
	for i := range docs {
		docs[i] = model.Document{Text: fmt.Sprintf("doc %d", i), Source: "test"}
	}

	stub := &stubEmbedder{}
	builder := NewBuilder(stub, 400, 50)
	_, err := builder.Build(context.Background(), docs)
	require.NoError(t, err)

	require.Len(t, stub.batches, 2)
	assert.Len(t, stub.batches[0], 64)
	assert.Len(t, stub.batches[1], 6)
}

func TestBuildPropagatesChunkerError(t *testing.T) {
	builder := NewBuilder(&stubEmbedder{}, 10, 10)
	_, err := builder.Build(context.Background(), []model.Document{{Text: "some text", Source: "test"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, chunker.ErrInvalidConfig))
}

func TestBuildPropagatesEmbeddingError(t *testing.T) {
	stub := &stubEmbedder{err: errors.New("api down")}
	builder := NewBuilder(stub, 400, 50)
	_, err := builder.Build(context.Background(), []model.Document{{Text: "some text", Source: "test"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")
}

func TestBuildAndPersistWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	docs := []model.Document{{Text: "Diabetes causes frequent urination.", Source: "MedlinePlus", Title: "Diabetes"}}

	builder := NewBuilder(&stubEmbedder{}, 400, 50)
	require.NoError(t, builder.BuildAndPersist(context.Background(), docs, dir))

	loaded, err := vectorindex.Load[model.IndexedChunk](dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Size())
	assert.Equal(t, "Diabetes", loaded.Metadata(0).Title)
}
