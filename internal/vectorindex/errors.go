package vectorindex

import "errors"

var (
	// ErrDimensionMismatch 表示向量维度或向量/元数据数量与索引不一致。
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrIndexNotFound 表示持久化目录中缺少索引产物。
	ErrIndexNotFound = errors.New("index artifacts not found")
	// ErrIndexCorrupt 表示加载出的向量数与元数据数不一致。
	ErrIndexCorrupt = errors.New("index artifacts corrupt")
)
