package service

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"strings"

	"github.com/user/kinosearch/internal/model"
)

const (
	// 每次最多取多少部点赞影片参与推荐
	sampleLimit = 5
	// 合并描述做相似检索时的分组大小
	likeBatchSize = 3
	// 每组相似检索要多少候选
	batchTopK = 10
	// 候选在多个分组里重复出现时，每多一次加的共识分
	consensusBonus = 0.1
	// 热门补位影片的固定低相关度，保证排在真实候选之后
	popularPadScore = 0.1
	// 默认推荐条数
	defaultRecommendLimit = 10
)

// MovieFinder 推荐所需的影片库视图
type MovieFinder interface {
	FindByIDs(ids []int) ([]model.Movie, error)
	ListPopular(limit int) ([]model.Movie, error)
}

// LikeSource 用户点赞来源
type LikeSource interface {
	ListByUser(userID string) ([]int, error)
}

// Searcher 语义检索入口
type Searcher interface {
	Search(ctx context.Context, query string, topK, yearFilter int, genreFilter string) ([]model.SearchHit, error)
}

// RecommendService 基于点赞集合的推荐生成器
type RecommendService struct {
	movies   MovieFinder
	likes    LikeSource
	searcher Searcher
}

// NewRecommendService 创建推荐服务
func NewRecommendService(movies MovieFinder, likes LikeSource, searcher Searcher) *RecommendService {
	return &RecommendService{
		movies:   movies,
		likes:    likes,
		searcher: searcher,
	}
}

// Recommend 为用户生成推荐
// 没有点赞时显式返回空列表（不悄悄替换成热门榜，调用方要能区分
// "没有信号"和"没有匹配"）；单个分组的检索失败只损失该组候选
func (s *RecommendService) Recommend(ctx context.Context, userID string, limit int) ([]model.ScoredMovie, error) {
	if limit <= 0 {
		limit = defaultRecommendLimit
	}

	likedIDs, err := s.likes.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if len(likedIDs) == 0 {
		return []model.ScoredMovie{}, nil
	}

	liked := make(map[int]struct{}, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = struct{}{}
	}

	likedMovies, err := s.movies.FindByIDs(likedIDs)
	if err != nil {
		return nil, err
	}

	sampled := sampleMovies(likedMovies, sampleLimit)

	// 按组合并描述做相似检索，累计每个候选的出现次数和最高原始得分
	type candidate struct {
		score       float64
		appearances int
	}
	candidates := make(map[int]*candidate)

	for start := 0; start < len(sampled); start += likeBatchSize {
		end := start + likeBatchSize
		if end > len(sampled) {
			end = len(sampled)
		}
		query := batchQuery(sampled[start:end])
		if query == "" {
			continue
		}

		hits, err := s.searcher.Search(ctx, query, batchTopK, 0, "")
		if err != nil {
			log.Printf("[Recommend] 分组相似检索失败: %v", err)
			continue
		}

		for _, hit := range hits {
			if _, isLiked := liked[hit.MovieID]; isLiked {
				continue
			}
			c, ok := candidates[hit.MovieID]
			if !ok {
				candidates[hit.MovieID] = &candidate{score: hit.Score, appearances: 1}
				continue
			}
			c.appearances++
			if hit.Score > c.score {
				c.score = hit.Score
			}
		}
	}

	// 最终得分 = 各组最高原始得分 + 跨组共识加成
	type ranked struct {
		id    int
		score float64
	}
	merged := make([]ranked, 0, len(candidates))
	for id, c := range candidates {
		merged = append(merged, ranked{
			id:    id,
			score: c.score + consensusBonus*float64(c.appearances-1),
		})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].id < merged[j].id
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	ids := make([]int, len(merged))
	scoreByID := make(map[int]float64, len(merged))
	for i, m := range merged {
		ids[i] = m.id
		scoreByID[m.id] = m.score
	}

	movies, err := s.movies.FindByIDs(ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.ScoredMovie, 0, limit)
	present := make(map[int]struct{}, limit)
	for _, m := range movies {
		out = append(out, model.ScoredMovie{Movie: m, RelevanceScore: scoreByID[m.ID]})
		present[m.ID] = struct{}{}
	}

	// 不足时用热门影片补位，固定低相关度让它们排在最后
	if len(out) < limit {
		popular, err := s.movies.ListPopular(limit)
		if err != nil {
			log.Printf("[Recommend] 获取热门影片失败: %v", err)
			return out, nil
		}
		for _, m := range popular {
			if len(out) >= limit {
				break
			}
			if _, isLiked := liked[m.ID]; isLiked {
				continue
			}
			if _, dup := present[m.ID]; dup {
				continue
			}
			present[m.ID] = struct{}{}
			out = append(out, model.ScoredMovie{Movie: m, RelevanceScore: popularPadScore})
		}
	}

	return out, nil
}

// sampleMovies 均匀无放回抽样，数量不超过 n 时原样返回
func sampleMovies(movies []model.Movie, n int) []model.Movie {
	if len(movies) <= n {
		return movies
	}
	idx := rand.Perm(len(movies))[:n]
	out := make([]model.Movie, 0, n)
	for _, i := range idx {
		out = append(out, movies[i])
	}
	return out
}

// batchQuery 拼接一组影片的描述；没有描述用标题，两者都没有就跳过
func batchQuery(movies []model.Movie) string {
	var parts []string
	for i := range movies {
		text := movies[i].Description
		if text == "" {
			text = movies[i].Title
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
