package search

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	vec := []float32{3, 4}
	Normalize(vec)
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Fatalf("期望 [0.6 0.8], 得到 %v", vec)
	}

	// 零向量保持不变，不产生 NaN
	zero := []float32{0, 0, 0}
	Normalize(zero)
	for _, v := range zero {
		if v != 0 {
			t.Fatalf("零向量不应被修改, 得到 %v", zero)
		}
	}
}

func TestDot(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0.5, 0.5, 0}
	if got := Dot(a, b); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("期望 0.5, 得到 %v", got)
	}
}

func TestMatrixRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.bin")
	rows := [][]float32{
		{1, 2, 3},
		{-0.5, 0.25, 0},
	}

	if err := SaveMatrix(path, 3, rows); err != nil {
		t.Fatalf("落盘失败: %v", err)
	}

	got, err := LoadMatrix(path, 3, 2)
	if err != nil {
		t.Fatalf("读回失败: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 行, 得到 %d", len(got))
	}
	for r := range rows {
		for i := range rows[r] {
			if got[r][i] != rows[r][i] {
				t.Fatalf("第 %d 行不一致: 期望 %v, 得到 %v", r, rows[r], got[r])
			}
		}
	}
}

func TestLoadMatrixRowCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.bin")
	if err := SaveMatrix(path, 3, [][]float32{{1, 2, 3}}); err != nil {
		t.Fatalf("落盘失败: %v", err)
	}

	// 语料基数与矩阵行数不符时必须拒绝复用
	_, err := LoadMatrix(path, 3, 2)
	if !errors.Is(err, ErrIndexInconsistent) {
		t.Fatalf("期望 ErrIndexInconsistent, 得到 %v", err)
	}
}

func TestLoadMatrixCorruptSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.bin")
	// 5 字节不是任何行宽的整数倍
	if err := os.WriteFile(path, []byte{1, 2, 3, 4, 5}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadMatrix(path, 3, 1)
	if !errors.Is(err, ErrIndexInconsistent) {
		t.Fatalf("期望 ErrIndexInconsistent, 得到 %v", err)
	}
}

func TestSaveMatrixBadRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.bin")
	err := SaveMatrix(path, 3, [][]float32{{1, 2}})
	if !errors.Is(err, ErrIndexInconsistent) {
		t.Fatalf("期望 ErrIndexInconsistent, 得到 %v", err)
	}
	// 失败时不应留下半成品文件
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("失败的落盘不应产生目标文件")
	}
}
