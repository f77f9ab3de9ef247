// Package chunker 将长文本切分为带重叠的定长词窗分块。
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig 表示分块参数非法（重叠不小于窗口，窗口无法前进）。
var ErrInvalidConfig = errors.New("invalid chunking config")

// Split 以 maxWords 个词为窗口、overlapWords 个词为相邻窗口的重叠，
// 将文本切分为分块序列。
// 文本不超过一个窗口时整体作为单个分块返回；最后一个窗口收缩到文本末尾，
// 因此最后两个分块的实际重叠可能大于 overlapWords。无副作用。
func Split(text string, maxWords, overlapWords int) ([]string, error) {
	if maxWords <= 0 {
		return nil, fmt.Errorf("%w: max words must be positive, got %d", ErrInvalidConfig, maxWords)
	}
	if overlapWords < 0 || overlapWords >= maxWords {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, overlapWords, maxWords)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}
	if len(words) <= maxWords {
		return []string{text}, nil
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}
		start = end - overlapWords
	}
	return chunks, nil
}
