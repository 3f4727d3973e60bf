package search

import (
	"errors"
)

// 错误分类
// 空结果不是错误：过滤、索引、缓存各层对"没有匹配"一律返回空集合
var (
	// ErrNotFound 记录不存在，调用方按空结果处理
	ErrNotFound = errors.New("record not found")

	// ErrEmbedderUnavailable 向量服务调用失败
	// 语义检索直接失败并可重试，绝不用零向量顶替（零向量会把永远无分的
	// 结果污染进缓存）
	ErrEmbedderUnavailable = errors.New("embedding service unavailable")

	// ErrIndexInconsistent 派生索引与语料基数不一致，应触发重建而非崩溃
	ErrIndexInconsistent = errors.New("index inconsistent with corpus")

	// ErrInvalidInput 非法的过滤参数，在边界处拒绝，不进入索引查询
	ErrInvalidInput = errors.New("invalid input")
)
