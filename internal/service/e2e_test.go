package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medibot-go/internal/model"
	"medibot-go/internal/pipeline"
)

// 端到端：建库 -> 落盘 -> 检索服务加载 -> 语义检索命中正确文档。
func TestBuildPersistThenRetrieve(t *testing.T) {
	dir := t.TempDir()

	embedder := &stubEmbedding{
		vectors: map[string][]float32{
			"Diabetes causes frequent urination, excessive thirst and fatigue.": {1, 0.1, 0},
			"The common cold causes sneezing, sore throat and a runny nose.":    {0, 0.1, 1},
			"frequent urination": {1, 0, 0},
		},
	}

	docs := []model.Document{
		{Text: "Diabetes causes frequent urination, excessive thirst and fatigue.", Source: "MedlinePlus", Title: "Diabetes", Category: "symptoms"},
		{Text: "The common cold causes sneezing, sore throat and a runny nose.", Source: "MedlinePlus", Title: "Common Cold", Category: "symptoms"},
	}

	builder := pipeline.NewBuilder(embedder, 400, 50)
	require.NoError(t, builder.BuildAndPersist(context.Background(), docs, dir))

	svc := NewRetrievalService(embedder, dir)
	require.True(t, svc.Ready())

	results := svc.Search(context.Background(), "frequent urination", 2)
	require.Len(t, results, 2)
	assert.Equal(t, "Diabetes", results[0].Metadata.Title)
	assert.Equal(t, "Common Cold", results[1].Metadata.Title)
	assert.Greater(t, results[0].Score, results[1].Score)
}
