package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	text := "fever and sore throat"
	chunks, err := Split(text, 400, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitEmptyText(t *testing.T) {
	chunks, err := Split("   ", 400, 50)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitInvalidConfig(t *testing.T) {
	_, err := Split(words(10), 5, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Split(words(10), 5, 7)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Split(words(10), 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Split(words(10), 5, -1)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestSplitWindowRanges(t *testing.T) {
	// 1000 个词，窗口 400、重叠 50：预期词区间 [0:400]、[350:750]、[700:1000]
	all := strings.Fields(words(1000))
	chunks, err := Split(words(1000), 400, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, strings.Join(all[0:400], " "), chunks[0])
	assert.Equal(t, strings.Join(all[350:750], " "), chunks[1])
	assert.Equal(t, strings.Join(all[700:1000], " "), chunks[2])
}

func TestSplitChunkCount(t *testing.T) {
	// maxWords + k*(maxWords-overlap) 个词应产生恰好 k+1 个分块
	const maxWords, overlap = 100, 20
	for k := 0; k <= 4; k++ {
		n := maxWords + k*(maxWords-overlap)
		chunks, err := Split(words(n), maxWords, overlap)
		require.NoError(t, err)
		assert.Len(t, chunks, k+1, "k=%d n=%d", k, n)
	}
}

func TestSplitCoverageAndLength(t *testing.T) {
	for _, n := range []int{1, 99, 100, 101, 250, 777} {
		chunks, err := Split(words(n), 100, 30)
		require.NoError(t, err)

		// 每个分块不超过窗口大小
		for _, c := range chunks {
			assert.LessOrEqual(t, len(strings.Fields(c)), 100)
		}

		// 所有词都被至少一个分块覆盖
		covered := make(map[string]bool)
		for _, c := range chunks {
			for _, w := range strings.Fields(c) {
				covered[w] = true
			}
		}
		assert.Len(t, covered, n)
	}
}
