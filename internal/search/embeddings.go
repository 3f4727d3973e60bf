package search

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Normalize 就地做 L2 归一化；零向量保持不变
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// Dot 点积；输入向量已归一化时即余弦相似度
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// SaveMatrix 把向量矩阵落盘
// 格式：corpus_size × dim 个 float32，小端、行主序、无文件头
// 先写临时文件再改名，避免读到写了一半的矩阵
func SaveMatrix(path string, dim int, rows [][]float32) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create matrix file failed: %w", err)
	}

	buf := make([]byte, dim*4)
	for _, row := range rows {
		if len(row) != dim {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("%w: row dim %d, expected %d", ErrIndexInconsistent, len(row), dim)
		}
		for i, v := range row {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := f.Write(buf); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("write matrix file failed: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close matrix file failed: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadMatrix 从盘上读回向量矩阵
// 行数必须与当前语料基数一致，否则拒绝复用（返回 ErrIndexInconsistent）
func LoadMatrix(path string, dim, expectRows int) ([][]float32, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	rowBytes := int64(dim) * 4
	if rowBytes == 0 || info.Size()%rowBytes != 0 {
		return nil, fmt.Errorf("%w: matrix file size %d not a multiple of row size %d",
			ErrIndexInconsistent, info.Size(), rowBytes)
	}
	rows := int(info.Size() / rowBytes)
	if rows != expectRows {
		return nil, fmt.Errorf("%w: matrix has %d rows, corpus has %d",
			ErrIndexInconsistent, rows, expectRows)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read matrix file failed: %w", err)
	}

	out := make([][]float32, rows)
	for r := 0; r < rows; r++ {
		row := make([]float32, dim)
		base := r * dim * 4
		for i := 0; i < dim; i++ {
			row[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[base+i*4:]))
		}
		out[r] = row
	}
	return out, nil
}
