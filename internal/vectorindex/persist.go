package vectorindex

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// 持久化索引由三个可独立加载的产物组成。
const (
	VectorsFilename  = "vectors.bin"
	MetadataFilename = "metadata.json"
	ConfigFilename   = "config.json"
)

// indexConfig 是随索引一起落盘的小型配置记录。
type indexConfig struct {
	EmbeddingModel string `json:"embedding_model"`
	VectorCount    int    `json:"vector_count"`
	Dimension      int    `json:"dimension"`
}

// Persist 将索引序列化到目录 dir 下的三个文件中：
// 向量二进制（小端 uint32 条数 + uint32 维度 + float32 数据）、元数据 JSON 与配置 JSON。
func (x *FlatIndex[M]) Persist(dir string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	if err := x.writeVectors(filepath.Join(dir, VectorsFilename)); err != nil {
		return err
	}

	metaBytes, err := json.Marshal(x.metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFilename), metaBytes, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	cfg := indexConfig{
		EmbeddingModel: x.modelID,
		VectorCount:    len(x.vectors),
		Dimension:      x.dim,
	}
	cfgBytes, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFilename), cfgBytes, 0o644); err != nil {
		return fmt.Errorf("write index config: %w", err)
	}

	return nil
}

func (x *FlatIndex[M]) writeVectors(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vectors file: %w", err)
	}

	w := bufio.NewWriter(f)
	header := []uint32{uint32(len(x.vectors)), uint32(x.dim)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		f.Close()
		return fmt.Errorf("write vectors header: %w", err)
	}
	for _, v := range x.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			f.Close()
			return fmt.Errorf("write vector data: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush vectors file: %w", err)
	}
	return f.Close()
}

// Load 从目录 dir 加载一个持久化索引。
// 任一产物缺失返回 ErrIndexNotFound；加载后显式校验向量数、元数据数
// 与配置记录三者一致，不一致返回 ErrIndexCorrupt。
func Load[M any](dir string) (*FlatIndex[M], error) {
	for _, name := range []string{VectorsFilename, MetadataFilename, ConfigFilename} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("%w: missing %s in %s", ErrIndexNotFound, name, dir)
		}
	}

	cfgBytes, err := os.ReadFile(filepath.Join(dir, ConfigFilename))
	if err != nil {
		return nil, fmt.Errorf("read index config: %w", err)
	}
	var cfg indexConfig
	if err := json.Unmarshal(cfgBytes, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unreadable config: %v", ErrIndexCorrupt, err)
	}

	vectors, dim, err := readVectors(filepath.Join(dir, VectorsFilename))
	if err != nil {
		return nil, err
	}

	metaBytes, err := os.ReadFile(filepath.Join(dir, MetadataFilename))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var metadata []M
	if err := json.Unmarshal(metaBytes, &metadata); err != nil {
		return nil, fmt.Errorf("%w: unreadable metadata: %v", ErrIndexCorrupt, err)
	}

	// 一致性校验是硬性要求，每次加载都显式执行
	if len(vectors) != len(metadata) {
		return nil, fmt.Errorf("%w: %d vectors vs %d metadata records", ErrIndexCorrupt, len(vectors), len(metadata))
	}
	if cfg.VectorCount != len(vectors) {
		return nil, fmt.Errorf("%w: config records %d vectors, file contains %d", ErrIndexCorrupt, cfg.VectorCount, len(vectors))
	}
	if cfg.Dimension != dim {
		return nil, fmt.Errorf("%w: config records dimension %d, file contains %d", ErrIndexCorrupt, cfg.Dimension, dim)
	}

	return &FlatIndex[M]{
		modelID:  cfg.EmbeddingModel,
		dim:      dim,
		vectors:  vectors,
		metadata: metadata,
	}, nil
}

func readVectors(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open vectors file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header := make([]uint32, 2)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return nil, 0, fmt.Errorf("%w: unreadable vectors header: %v", ErrIndexCorrupt, err)
	}
	count, dim := int(header[0]), int(header[1])

	vectors := make([][]float32, count)
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, 0, fmt.Errorf("%w: truncated vector data at record %d: %v", ErrIndexCorrupt, i, err)
		}
		vectors[i] = v
	}
	return vectors, dim, nil
}
