// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"sync"

	"medibot-go/internal/model"
	"medibot-go/internal/vectorindex"
	"medibot-go/pkg/embedding"
	"medibot-go/pkg/log"
)

// 带类别过滤时先放大召回再过滤，避免过滤后不足 topK。
const filterOversampleFactor = 3

// RetrievalService 定义了向量检索操作。
// 索引缺失或加载失败不视为致命错误，检索直接返回空结果并记录日志。
type RetrievalService interface {
	Search(ctx context.Context, query string, topK int) []model.SearchResponseDTO
	SearchWithFilter(ctx context.Context, query, category string, topK int) []model.SearchResponseDTO
	Ready() bool
}

type retrievalService struct {
	embeddingClient embedding.Client
	indexDir        string

	once  sync.Once
	index *vectorindex.FlatIndex[model.IndexedChunk]
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
// 索引在第一次检索时才从磁盘加载。
func NewRetrievalService(embeddingClient embedding.Client, indexDir string) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		indexDir:        indexDir,
	}
}

// loadIndex 懒加载磁盘索引，整个进程生命周期只尝试一次。
func (s *retrievalService) loadIndex() *vectorindex.FlatIndex[model.IndexedChunk] {
	s.once.Do(func() {
		idx, err := vectorindex.Load[model.IndexedChunk](s.indexDir)
		if err != nil {
			log.Errorf("[RetrievalService] 加载向量索引失败, dir: %s, err: %v", s.indexDir, err)
			return
		}
		s.index = idx
		log.Infof("[RetrievalService] 向量索引加载成功, 向量数: %d, 维度: %d, 模型: %s",
			idx.Size(), idx.Dimension(), idx.ModelID())
	})
	return s.index
}

// Ready 报告索引是否已成功加载。
func (s *retrievalService) Ready() bool {
	return s.loadIndex() != nil
}

// Search 对全量索引做 top-K 余弦检索。
func (s *retrievalService) Search(ctx context.Context, query string, topK int) []model.SearchResponseDTO {
	return s.SearchWithFilter(ctx, query, "", topK)
}

// SearchWithFilter 执行带类别过滤的检索。
// category 非空时先召回 topK*3 条再按 Category/Type 过滤，最后截断到 topK。
func (s *retrievalService) SearchWithFilter(ctx context.Context, query, category string, topK int) []model.SearchResponseDTO {
	log.Infof("[RetrievalService] 开始执行检索, query: '%s', category: '%s', topK: %d", query, category, topK)

	index := s.loadIndex()
	if index == nil {
		log.Warnf("[RetrievalService] 向量索引未就绪, 返回空结果")
		return []model.SearchResponseDTO{}
	}

	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		log.Errorf("[RetrievalService] 向量化查询失败: %v", err)
		return []model.SearchResponseDTO{}
	}

	initialK := topK
	if category != "" {
		initialK = topK * filterOversampleFactor
	}

	hits, err := index.Search(vectorindex.Normalize(queryVector), initialK)
	if err != nil {
		log.Errorf("[RetrievalService] 索引检索失败: %v", err)
		return []model.SearchResponseDTO{}
	}

	results := make([]model.SearchResponseDTO, 0, topK)
	for _, hit := range hits {
		chunk := index.Metadata(hit.Index)
		if category != "" && chunk.Category != category && chunk.Type != category {
			continue
		}
		results = append(results, model.SearchResponseDTO{
			Score:    hit.Score,
			Text:     chunk.ChunkText,
			Metadata: chunk.ChunkMeta,
		})
		if len(results) >= topK {
			break
		}
	}

	log.Infof("[RetrievalService] 检索完成, 返回 %d 条结果", len(results))
	return results
}
