package search

import (
	"container/heap"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/user/kinosearch/internal/model"
	"github.com/user/kinosearch/internal/utils"
	"golang.org/x/sync/singleflight"
)

// 混合得分的固定权重与相关度下限
const (
	textWeight  = 0.85
	yearWeight  = 0.05
	genreWeight = 0.10

	// 每命中一个查询流派词，genre_score 增加的量
	genreHitScore = 0.1

	// 低于等于该混合得分的候选一律丢弃
	relevanceFloor = 0.10

	// 单次打分后做局部选择的候选上限
	candidateLimit = 100

	// 过滤浏览的结果上限
	filterResultLimit = 30
)

// MovieStore 影片库只读视图，可安全地重复调用
type MovieStore interface {
	ListAll() ([]model.Movie, error)
	Count() (int, error)
}

// EmbeddingSaver 影片库可选实现：回写单部影片的向量
type EmbeddingSaver interface {
	SaveEmbedding(movieID int, vec []float32) error
}

// Embedder 向量生成协作方，可能失败或超时，不能假定永远可用
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// snapshot 一次重建产出的全部派生状态
// 构建完成后只读；读请求要么看到整个旧快照、要么看到整个新快照
type snapshot struct {
	movies    []model.Movie
	rowByID   map[int]int
	vectors   [][]float32 // 已归一化
	normYears []float64
	minYear   int
	maxYear   int
	genreRows map[string][]int // 小写流派 -> 行号
	attrIndex *AttributeIndex
	textIndex *TextIndex
	count     int
}

// Options 引擎参数
type Options struct {
	Dim        int
	MatrixFile string
	BatchSize  int
	CacheSize  int
	CacheTTL   time.Duration
}

// Engine 混合检索引擎
// 显式构造、按引用传入请求层，不做任何包级单例
type Engine struct {
	store    MovieStore
	embedder Embedder
	opts     Options

	snap  atomic.Pointer[snapshot]
	cache *utils.SearchCache[[]model.SearchHit]
	sf    singleflight.Group
	state atomic.Int32

	totalSearches atomic.Int64
	cacheHits     atomic.Int64
}

// NewEngine 创建引擎（不触发任何 IO，首次构建走 CheckForUpdates）
func NewEngine(store MovieStore, embedder Embedder, opts Options) *Engine {
	if opts.Dim <= 0 {
		opts.Dim = 768
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		opts:     opts,
		cache:    utils.NewSearchCache[[]model.SearchHit](opts.CacheSize, opts.CacheTTL),
	}
}

// yearPattern 查询文本中的 4 位年份（1900-2029）
var yearPattern = regexp.MustCompile(`\b(19\d{2}|20[0-2]\d)\b`)

// Search 语义检索
// 混合得分 = 0.85*文本相似度 + 0.05*年份接近度 + 0.10*流派命中
// 年份与流派先从查询文本里解析，显式过滤参数优先
func (e *Engine) Search(ctx context.Context, query string, topK, yearFilter int, genreFilter string) ([]model.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.SearchHit{}, nil
	}
	if topK <= 0 {
		topK = 10
	}
	if yearFilter != 0 && (yearFilter < 1900 || yearFilter > 2029) {
		return nil, fmt.Errorf("%w: year filter %d out of range", ErrInvalidInput, yearFilter)
	}

	// 惰性一致性检查：每次请求前比对语料基数，必要时重建
	if _, err := e.CheckForUpdates(ctx); err != nil {
		if e.snap.Load() == nil {
			// 从未建成过索引：把真实失败原因原样抛出，
			// 影片库故障不能被包装成向量服务故障
			return nil, fmt.Errorf("index has never been built: %w", err)
		}
		log.Printf("[Engine] 语料同步失败，继续使用现有索引: %v", err)
	}

	snap := e.snap.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: index has never been built", ErrEmbedderUnavailable)
	}

	e.totalSearches.Add(1)

	key := Fingerprint(query, yearFilter, genreFilter, topK)
	if cached, ok := e.cache.Get(key); ok {
		e.cacheHits.Add(1)
		return cached, nil
	}

	// 从查询文本解析年份与流派，显式参数覆盖/追加
	queryYear := parseYear(query)
	genres := matchGenres(query, snap.genreRows)
	if yearFilter != 0 {
		queryYear = yearFilter
	}
	if genreFilter != "" {
		genres = append(genres, strings.ToLower(genreFilter))
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedderUnavailable, err)
	}
	if len(queryVec) != e.opts.Dim {
		return nil, fmt.Errorf("%w: query vector dim %d, index dim %d",
			ErrIndexInconsistent, len(queryVec), e.opts.Dim)
	}
	Normalize(queryVec)

	scores := e.blendScores(snap, queryVec, queryYear, genres)

	k := candidateLimit
	if k > len(scores) {
		k = len(scores)
	}
	rows := topRows(scores, k)

	hits := make([]model.SearchHit, 0, topK)
	for _, row := range rows {
		if scores[row] <= relevanceFloor {
			continue
		}
		hits = append(hits, model.SearchHit{MovieID: snap.movies[row].ID, Score: scores[row]})
		if len(hits) >= topK {
			break
		}
	}

	e.cache.Set(key, hits)
	return hits, nil
}

// blendScores 计算整个语料的混合得分
func (e *Engine) blendScores(snap *snapshot, queryVec []float32, queryYear int, genres []string) []float64 {
	scores := make([]float64, len(snap.movies))
	for i, vec := range snap.vectors {
		scores[i] = textWeight * Dot(vec, queryVec)
	}

	if queryYear != 0 {
		qNorm := snap.normYear(queryYear)
		for i := range scores {
			scores[i] += yearWeight * (1.0 - abs(snap.normYears[i]-qNorm))
		}
	}

	// 每命中一个语料中存在的流派词，该流派下的影片 genre_score 加 0.1，
	// 最终再乘流派权重混入总分
	for _, genre := range genres {
		for _, row := range snap.genreRows[genre] {
			scores[row] += genreWeight * genreHitScore
		}
	}

	return scores
}

// normYear 把年份线性映射到 [0,1]，端点取建索引时的语料最小/最大年份
func (s *snapshot) normYear(year int) float64 {
	if s.maxYear <= s.minYear {
		return 0
	}
	n := float64(year-s.minYear) / float64(s.maxYear-s.minYear)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// FilterSearch 属性过滤 + 文本相关度的组合浏览
// criteria 为空且无查询词时在边界直接拒绝，避免无意的全量扫描
func (e *Engine) FilterSearch(ctx context.Context, criteria map[string]string, query string) ([]model.SearchHit, error) {
	if _, err := e.CheckForUpdates(ctx); err != nil {
		log.Printf("[Engine] 语料同步失败，继续使用现有索引: %v", err)
	}

	snap := e.snap.Load()
	if snap == nil {
		// 索引尚未建成：退化为对影片库的子串扫描，只收窄召回，不打分
		return e.fallbackFilter(criteria, query)
	}

	allowed, constrained := snap.attrIndex.Filter(criteria)
	if !constrained && strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty criteria and empty query", ErrInvalidInput)
	}

	var hits []model.SearchHit
	if strings.TrimSpace(query) != "" {
		for _, hit := range snap.textIndex.SearchText(query) {
			if constrained {
				if _, ok := allowed[hit.MovieID]; !ok {
					continue
				}
			}
			hits = append(hits, hit)
		}
	} else {
		// 只有过滤条件：按目录评分倒序
		ids := make([]int, 0, len(allowed))
		for id := range allowed {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			ri := snap.ratingOf(ids[i])
			rj := snap.ratingOf(ids[j])
			if ri != rj {
				return ri > rj
			}
			return ids[i] < ids[j]
		})
		for _, id := range ids {
			hits = append(hits, model.SearchHit{MovieID: id})
		}
	}

	if len(hits) > filterResultLimit {
		hits = hits[:filterResultLimit]
	}
	return hits, nil
}

// fallbackFilter 无快照时的降级路径，绝不失败
func (e *Engine) fallbackFilter(criteria map[string]string, query string) ([]model.SearchHit, error) {
	movies, err := e.store.ListAll()
	if err != nil {
		log.Printf("[Engine] 降级扫描读取影片库失败: %v", err)
		return []model.SearchHit{}, nil
	}

	ix := NewAttributeIndex()
	ix.Rebuild(movies)
	allowed, constrained := ix.Filter(criteria)
	if !constrained && strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty criteria and empty query", ErrInvalidInput)
	}

	var ids []int
	if strings.TrimSpace(query) != "" {
		for _, id := range FallbackScan(movies, query) {
			if constrained {
				if _, ok := allowed[id]; !ok {
					continue
				}
			}
			ids = append(ids, id)
		}
	} else {
		for id := range allowed {
			ids = append(ids, id)
		}
		sort.Ints(ids)
	}

	hits := make([]model.SearchHit, 0, len(ids))
	for _, id := range ids {
		hits = append(hits, model.SearchHit{MovieID: id})
		if len(hits) >= filterResultLimit {
			break
		}
	}
	return hits, nil
}

func (s *snapshot) ratingOf(id int) float64 {
	if row, ok := s.rowByID[id]; ok {
		return s.movies[row].Rating
	}
	return 0
}

// Similar 与指定影片同流派的影片 ID（按目录评分倒序）
// 没有流派重叠时退回同年份
func (e *Engine) Similar(movieID, count int) []int {
	snap := e.snap.Load()
	if snap == nil {
		return nil
	}
	row, ok := snap.rowByID[movieID]
	if !ok {
		return nil
	}
	m := &snap.movies[row]

	seen := map[int]struct{}{movieID: {}}
	var ids []int
	collect := func(attr, value string) {
		for _, id := range snap.attrIndex.IDs(attr, value) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	for _, genre := range m.Genres {
		collect(AttrGenre, genre)
	}
	if len(ids) == 0 {
		collect(AttrYear, strconv.Itoa(m.Year))
	}

	sort.Slice(ids, func(i, j int) bool {
		ri := snap.ratingOf(ids[i])
		rj := snap.ratingOf(ids[j])
		if ri != rj {
			return ri > rj
		}
		return ids[i] < ids[j]
	})
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids
}

// FacetValues 维度枚举（流派/国家/分类），来自当前快照的倒排索引
func (e *Engine) FacetValues(attr string) []string {
	snap := e.snap.Load()
	if snap == nil {
		return nil
	}
	return snap.attrIndex.Values(attr)
}

// Status 引擎运行状态
type Status struct {
	MoviesCount   int     `json:"movies_count"`
	CacheSize     int     `json:"cache_size"`
	CacheHitRate  string  `json:"cache_hit_rate"`
	TotalSearches int64   `json:"total_searches"`
	EmbeddingRows int     `json:"embedding_rows"`
	EmbeddingDim  int     `json:"embedding_dim"`
	GenresCount   int     `json:"genres_count"`
	State         string  `json:"state"`
	MinYear       int     `json:"min_year"`
	MaxYear       int     `json:"max_year"`
}

// Stats 当前状态信息
func (e *Engine) Stats() Status {
	st := Status{
		CacheSize:     e.cache.Len(),
		TotalSearches: e.totalSearches.Load(),
		EmbeddingDim:  e.opts.Dim,
		State:         SyncState(e.state.Load()).String(),
		CacheHitRate:  "0.0%",
	}
	if total := e.totalSearches.Load(); total > 0 {
		st.CacheHitRate = fmt.Sprintf("%.1f%%", float64(e.cacheHits.Load())/float64(total)*100)
	}
	if snap := e.snap.Load(); snap != nil {
		st.MoviesCount = snap.count
		st.EmbeddingRows = len(snap.vectors)
		st.GenresCount = len(snap.genreRows)
		st.MinYear = snap.minYear
		st.MaxYear = snap.maxYear
	}
	return st
}

// Fingerprint 查询指纹：规范化查询 + 过滤参数 + 结果数
// topK 参与指纹，避免不同 topK 的调用共享同一条缓存
func Fingerprint(query string, yearFilter int, genreFilter string, topK int) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	raw := fmt.Sprintf("%s|%d|%s|%d", normalized, yearFilter, strings.ToLower(genreFilter), topK)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// parseYear 从自由文本里解析 4 位年份，没有时返回 0
func parseYear(query string) int {
	match := yearPattern.FindString(query)
	if match == "" {
		return 0
	}
	year, _ := strconv.Atoi(match)
	return year
}

// matchGenres 找出查询中以完整词出现的语料流派（忽略大小写）
func matchGenres(query string, genreRows map[string][]int) []string {
	q := strings.ToLower(query)
	var matched []string
	for genre := range genreRows {
		if containsToken(q, genre) {
			matched = append(matched, genre)
		}
	}
	sort.Strings(matched)
	return matched
}

// rowHeap 固定容量小顶堆，用于局部选择 top-k 行号
type rowHeap struct {
	rows   []int
	scores []float64
}

func (h *rowHeap) Len() int { return len(h.rows) }
func (h *rowHeap) Less(i, j int) bool {
	return h.scores[h.rows[i]] < h.scores[h.rows[j]]
}
func (h *rowHeap) Swap(i, j int)      { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *rowHeap) Push(x interface{}) { h.rows = append(h.rows, x.(int)) }
func (h *rowHeap) Pop() interface{} {
	old := h.rows
	n := len(old)
	x := old[n-1]
	h.rows = old[:n-1]
	return x
}

// topRows 选出得分最高的 k 行并按得分倒序返回
// 只维护一个大小为 k 的堆，不对整个语料排序
func topRows(scores []float64, k int) []int {
	if k <= 0 {
		return nil
	}
	h := &rowHeap{scores: scores}
	heap.Init(h)
	for row := range scores {
		if h.Len() < k {
			heap.Push(h, row)
			continue
		}
		if scores[row] > scores[h.rows[0]] {
			h.rows[0] = row
			heap.Fix(h, 0)
		}
	}

	out := make([]int, len(h.rows))
	copy(out, h.rows)
	sort.Slice(out, func(i, j int) bool {
		if scores[out[i]] != scores[out[j]] {
			return scores[out[i]] > scores[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
