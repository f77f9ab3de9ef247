package vectorindex

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMeta struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

func buildTestIndex(t *testing.T) *FlatIndex[testMeta] {
	t.Helper()
	idx := New[testMeta]("test-model")
	vectors := [][]float32{
		Normalize([]float32{1, 0, 0}),
		Normalize([]float32{0, 1, 0}),
		Normalize([]float32{1, 1, 1}),
	}
	metadata := []testMeta{
		{Name: "a", Category: "qa"},
		{Name: "b", Category: "symptoms"},
		{Name: "c", Category: "qa"},
	}
	require.NoError(t, idx.Build(vectors, metadata))
	return idx
}

func TestPersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)
	require.NoError(t, idx.Persist(dir))

	// 三个产物都在
	for _, name := range []string{VectorsFilename, MetadataFilename, ConfigFilename} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
	}

	loaded, err := Load[testMeta](dir)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Size())
	assert.Equal(t, 3, loaded.Dimension())
	assert.Equal(t, "test-model", loaded.ModelID())
	assert.Equal(t, testMeta{Name: "b", Category: "symptoms"}, loaded.Metadata(1))

	// 加载后的索引可直接检索
	hits, err := loaded.Search([]float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Index)
}

func TestLoadMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)
	require.NoError(t, idx.Persist(dir))

	require.NoError(t, os.Remove(filepath.Join(dir, MetadataFilename)))

	_, err := Load[testMeta](dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexNotFound))
}

func TestLoadEmptyDirectory(t *testing.T) {
	_, err := Load[testMeta](t.TempDir())
	assert.True(t, errors.Is(err, ErrIndexNotFound))
}

func TestLoadDetectsCountMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)
	require.NoError(t, idx.Persist(dir))

	// 篡改元数据：删掉一条记录，使其与向量数不一致
	metaBytes, err := os.ReadFile(filepath.Join(dir, MetadataFilename))
	require.NoError(t, err)
	var metadata []testMeta
	require.NoError(t, json.Unmarshal(metaBytes, &metadata))
	truncated, err := json.Marshal(metadata[:2])
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFilename), truncated, 0o644))

	_, err = Load[testMeta](dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexCorrupt))
}

func TestLoadDetectsConfigCountMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := buildTestIndex(t)
	require.NoError(t, idx.Persist(dir))

	cfg := indexConfig{EmbeddingModel: "test-model", VectorCount: 99, Dimension: 3}
	cfgBytes, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFilename), cfgBytes, 0o644))

	_, err = Load[testMeta](dir)
	assert.True(t, errors.Is(err, ErrIndexCorrupt))
}

func TestPersistEmptyIndex(t *testing.T) {
	dir := t.TempDir()
	idx := New[testMeta]("test-model")
	require.NoError(t, idx.Persist(dir))

	loaded, err := Load[testMeta](dir)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Size())

	hits, err := loaded.Search(nil, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
