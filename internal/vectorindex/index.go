// Package vectorindex 实现了精确的内存向量索引：
// 向量数组与元数据数组平行存储，检索时对全部向量做暴力余弦相似度排序。
// 向量在入库前做 L2 归一化，因此内积即余弦相似度。
package vectorindex

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// SearchHit 是一次检索命中：原始插入位置与相似度得分。
type SearchHit struct {
	Index int
	Score float32
}

// FlatIndex 是向量索引的核心结构。M 是与向量平行存储的元数据类型
// （知识库索引为分块记录，语义缓存为问答对）。
// 不变量：len(vectors) == len(metadata)，维度在首次写入后固定。
type FlatIndex[M any] struct {
	mu       sync.RWMutex
	modelID  string
	dim      int
	vectors  [][]float32
	metadata []M
}

// New 创建一个空索引。modelID 记录产生向量的 embedding 模型标识。
func New[M any](modelID string) *FlatIndex[M] {
	return &FlatIndex[M]{modelID: modelID}
}

// Build 用给定的向量与元数据原子地替换索引内容。
// 要求两个数组等长，且所有向量维度一致（首次调用固定维度）。
func (x *FlatIndex[M]) Build(vectors [][]float32, metadata []M) error {
	if len(vectors) != len(metadata) {
		return fmt.Errorf("%w: %d vectors vs %d metadata records", ErrDimensionMismatch, len(vectors), len(metadata))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim := x.dim
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index dimension is %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}

	x.dim = dim
	x.vectors = vectors
	x.metadata = metadata
	return nil
}

// Add 将向量与元数据追加到现有数组末尾，维度约束与 Build 相同。
func (x *FlatIndex[M]) Add(vectors [][]float32, metadata []M) error {
	if len(vectors) != len(metadata) {
		return fmt.Errorf("%w: %d vectors vs %d metadata records", ErrDimensionMismatch, len(vectors), len(metadata))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim := x.dim
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index dimension is %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}

	x.dim = dim
	x.vectors = append(x.vectors, vectors...)
	x.metadata = append(x.metadata, metadata...)
	return nil
}

// Search 对查询向量做归一化后，与所有存量向量计算内积并按相似度降序返回前 k 条。
// 相似度相同时按插入顺序稳定排序。k 大于索引规模时收缩到索引规模。
// 空索引返回空结果而不是错误；查询向量维度不符返回 ErrDimensionMismatch。
func (x *FlatIndex[M]) Search(query []float32, k int) ([]SearchHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index dimension is %d", ErrDimensionMismatch, len(query), x.dim)
	}

	q := Normalize(query)

	hits := make([]SearchHit, len(x.vectors))
	for i, v := range x.vectors {
		hits[i] = SearchHit{Index: i, Score: dot(q, v)}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Metadata 返回指定插入位置的元数据记录。
func (x *FlatIndex[M]) Metadata(i int) M {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.metadata[i]
}

// Size 返回索引中的向量条数。
func (x *FlatIndex[M]) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Dimension 返回索引的向量维度，未写入过向量时为 0。
func (x *FlatIndex[M]) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// ModelID 返回产生向量的 embedding 模型标识。
func (x *FlatIndex[M]) ModelID() string {
	return x.modelID
}

// Normalize 返回 v 的 L2 归一化副本。零向量原样返回副本。
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := float32(math.Sqrt(sum))
	for i, f := range v {
		out[i] = f / norm
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
