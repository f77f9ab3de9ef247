package model

// Document 代表一篇待入库的医学知识文档。入库后不再修改。
type Document struct {
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	Title    string            `json:"title,omitempty"`
	Category string            `json:"category,omitempty"`
	Type     string            `json:"type,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// ChunkMeta 是分块的元数据，来源文档的字段在建索引时拷贝一份。
// Category/Type/Source 强类型化，其余透传字段放入 Extra。
type ChunkMeta struct {
	Source   string            `json:"source"`
	Title    string            `json:"title,omitempty"`
	Category string            `json:"category,omitempty"`
	Type     string            `json:"type,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// IndexedChunk 是向量索引中与向量平行存储的元数据记录：
// 元数据加上分块文本本身。
type IndexedChunk struct {
	ChunkMeta
	ChunkText string `json:"chunk_text"`
}

// CacheEntry 是语义缓存中与问题向量平行存储的记录。
type CacheEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SearchResponseDTO 定义了返回给调用方的检索结果结构。
// Metadata 中不再包含分块文本，文本单独放在 Text 字段。
type SearchResponseDTO struct {
	Score    float32   `json:"score"`
	Text     string    `json:"text"`
	Metadata ChunkMeta `json:"metadata"`
}
