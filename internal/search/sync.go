package search

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/user/kinosearch/internal/model"
)

// SyncState 同步器状态机：IDLE -> CHECKING -> (UP_TO_DATE | REBUILDING) -> IDLE
type SyncState int32

const (
	StateIdle SyncState = iota
	StateChecking
	StateRebuilding
)

func (s SyncState) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "idle"
	}
}

// CheckForUpdates 惰性的语料一致性检查
// 比对当前语料基数与上次成功构建时记录的基数，增长则整体重建。
// 用 singleflight 合并并发触发：同一时刻最多一次检查/重建在跑，
// 其余请求共享结果。返回值表示本次是否发生了重建。
func (e *Engine) CheckForUpdates(ctx context.Context) (bool, error) {
	v, err, _ := e.sf.Do("sync", func() (interface{}, error) {
		return e.checkOnce(ctx)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (e *Engine) checkOnce(ctx context.Context) (bool, error) {
	e.state.Store(int32(StateChecking))
	defer e.state.Store(int32(StateIdle))

	count, err := e.store.Count()
	if err != nil {
		return false, fmt.Errorf("count corpus failed: %w", err)
	}

	snap := e.snap.Load()
	if snap != nil && snap.count == count {
		// UP_TO_DATE：基数未变，不做任何事
		return false, nil
	}

	if snap != nil {
		log.Printf("[Sync] 检测到语料变化: %d -> %d，开始重建索引", snap.count, count)
	} else {
		log.Printf("[Sync] 首次构建索引，语料 %d 部影片", count)
	}

	e.state.Store(int32(StateRebuilding))
	if err := e.rebuild(ctx); err != nil {
		// 中途失败：不发布任何半成品，旧索引继续服务读请求
		return false, fmt.Errorf("rebuild aborted: %w", err)
	}
	return true, nil
}

// rebuild 全量重建所有派生状态并原子发布
// 新快照完全在旁路构建，构建成功后一次性替换引用并清空结果缓存
func (e *Engine) rebuild(ctx context.Context) error {
	start := time.Now()

	movies, err := e.store.ListAll()
	if err != nil {
		return fmt.Errorf("load corpus failed: %w", err)
	}

	vectors, err := e.corpusVectors(ctx, movies)
	if err != nil {
		return err
	}

	snap := buildSnapshot(movies, vectors)
	e.snap.Store(snap)

	// 重建生效后整体失效缓存并清零命中统计
	e.cache.Clear()
	e.totalSearches.Store(0)
	e.cacheHits.Store(0)

	if e.opts.MatrixFile != "" {
		if err := SaveMatrix(e.opts.MatrixFile, e.opts.Dim, vectors); err != nil {
			log.Printf("[Sync] 向量矩阵落盘失败: %v", err)
		}
	}

	log.Printf("[Sync] 索引重建完成: %d 部影片, 耗时 %v", len(movies), time.Since(start))
	return nil
}

// corpusVectors 为每部影片取得归一化向量
// 先尝试复用盘上的矩阵（仅首次构建且行数吻合时），否则分批重新生成；
// 任何一次向量化失败都会中止整个重建
func (e *Engine) corpusVectors(ctx context.Context, movies []model.Movie) ([][]float32, error) {
	if e.snap.Load() == nil && e.opts.MatrixFile != "" {
		if vectors, err := LoadMatrix(e.opts.MatrixFile, e.opts.Dim, len(movies)); err == nil {
			log.Printf("[Sync] 复用盘上向量矩阵: %d 行", len(vectors))
			for _, v := range vectors {
				Normalize(v)
			}
			return vectors, nil
		}
	}

	vectors := make([][]float32, len(movies))
	for i := range movies {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		vec, err := e.embedder.Embed(ctx, movies[i].EmbeddingText())
		if err != nil {
			return nil, fmt.Errorf("%w: embed movie %d: %v", ErrEmbedderUnavailable, movies[i].ID, err)
		}
		if len(vec) != e.opts.Dim {
			return nil, fmt.Errorf("%w: movie %d vector dim %d, expected %d",
				ErrIndexInconsistent, movies[i].ID, len(vec), e.opts.Dim)
		}
		Normalize(vec)
		vectors[i] = vec

		if saver, ok := e.store.(EmbeddingSaver); ok {
			if err := saver.SaveEmbedding(movies[i].ID, vec); err != nil {
				log.Printf("[Sync] 回写影片 %d 向量失败: %v", movies[i].ID, err)
			}
		}

		if (i+1)%e.opts.BatchSize == 0 {
			log.Printf("[Sync] 向量生成进度: %d/%d", i+1, len(movies))
		}
	}
	return vectors, nil
}

// buildSnapshot 在旁路组装一份完整的派生状态
func buildSnapshot(movies []model.Movie, vectors [][]float32) *snapshot {
	snap := &snapshot{
		movies:    movies,
		rowByID:   make(map[int]int, len(movies)),
		vectors:   vectors,
		normYears: make([]float64, len(movies)),
		genreRows: make(map[string][]int),
		attrIndex: NewAttributeIndex(),
		textIndex: NewTextIndex(),
		count:     len(movies),
	}

	minYear, maxYear := 0, 0
	for i := range movies {
		y := movies[i].Year
		if i == 0 || y < minYear {
			minYear = y
		}
		if i == 0 || y > maxYear {
			maxYear = y
		}
	}
	snap.minYear, snap.maxYear = minYear, maxYear

	for i := range movies {
		m := &movies[i]
		snap.rowByID[m.ID] = i
		snap.normYears[i] = snap.normYear(m.Year)
		for _, genre := range m.Genres {
			g := strings.ToLower(genre)
			if g != "" {
				snap.genreRows[g] = append(snap.genreRows[g], i)
			}
		}
		snap.attrIndex.Index(m)
		snap.textIndex.Index(m)
	}

	return snap
}
