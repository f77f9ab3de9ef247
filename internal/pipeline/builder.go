// Package pipeline 实现了离线索引构建管道：
// 文档分块 -> 批量向量化 -> 归一化 -> 构建索引 -> 持久化。
package pipeline

import (
	"context"
	"fmt"

	"medibot-go/internal/chunker"
	"medibot-go/internal/model"
	"medibot-go/internal/vectorindex"
	"medibot-go/pkg/embedding"
	"medibot-go/pkg/log"
)

// 单次 Embedding 请求的最大分块数。
const embedBatchSize = 64

// Builder 把文档集合构建为可持久化的向量索引。
type Builder struct {
	embedder     embedding.Client
	maxWords     int
	overlapWords int
}

// NewBuilder 创建一个索引构建器。
func NewBuilder(embedder embedding.Client, maxWords, overlapWords int) *Builder {
	return &Builder{
		embedder:     embedder,
		maxWords:     maxWords,
		overlapWords: overlapWords,
	}
}

// Build 执行完整的构建管道并返回内存中的索引。
// 任一阶段失败都直接返回错误，不产出部分索引。
func (b *Builder) Build(ctx context.Context, docs []model.Document) (*vectorindex.FlatIndex[model.IndexedChunk], error) {
	log.Infof("[Builder] 步骤1: 开始分块, 文档数: %d", len(docs))
	chunks, err := b.chunkDocuments(docs)
	if err != nil {
		return nil, err
	}
	log.Infof("[Builder] 分块完成, 共 %d 个分块", len(chunks))

	index := vectorindex.New[model.IndexedChunk](b.embedder.ModelID())
	if len(chunks) == 0 {
		log.Warnf("[Builder] 没有任何分块, 将产出空索引")
		return index, nil
	}

	log.Infof("[Builder] 步骤2: 开始向量化, 批大小: %d", embedBatchSize)
	vectors, err := b.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	log.Infof("[Builder] 步骤3: 构建向量索引")
	metadata := make([]model.IndexedChunk, len(chunks))
	for i, c := range chunks {
		metadata[i] = c
		vectors[i] = vectorindex.Normalize(vectors[i])
	}
	if err := index.Build(vectors, metadata); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	log.Infof("[Builder] 索引构建完成, 向量数: %d, 维度: %d", index.Size(), index.Dimension())
	return index, nil
}

// BuildAndPersist 构建索引并把三个产物写入 dir。
func (b *Builder) BuildAndPersist(ctx context.Context, docs []model.Document, dir string) error {
	index, err := b.Build(ctx, docs)
	if err != nil {
		return err
	}

	log.Infof("[Builder] 步骤4: 持久化索引到 %s", dir)
	if err := index.Persist(dir); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	log.Infof("[Builder] 持久化完成")
	return nil
}

// chunkDocuments 对每篇文档做词窗分块，并为每个分块拷贝文档元数据。
func (b *Builder) chunkDocuments(docs []model.Document) ([]model.IndexedChunk, error) {
	var chunks []model.IndexedChunk
	for i, doc := range docs {
		pieces, err := chunker.Split(doc.Text, b.maxWords, b.overlapWords)
		if err != nil {
			return nil, fmt.Errorf("chunk document %d: %w", i, err)
		}
		for _, text := range pieces {
			chunks = append(chunks, model.IndexedChunk{
				ChunkMeta: model.ChunkMeta{
					Source:   doc.Source,
					Title:    doc.Title,
					Category: doc.Category,
					Type:     doc.Type,
					Extra:    doc.Extra,
				},
				ChunkText: text,
			})
		}
	}
	return chunks, nil
}

// embedChunks 分批调用 Embedding 接口，返回与分块一一对应的向量。
func (b *Builder) embedChunks(ctx context.Context, chunks []model.IndexedChunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.ChunkText)
		}

		batch, err := b.embedder.CreateEmbeddings(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks [%d:%d]: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
		log.Infof("[Builder] 向量化进度: %d/%d", end, len(chunks))
	}
	return vectors, nil
}
