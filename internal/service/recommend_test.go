package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/user/kinosearch/internal/model"
)

type fakeMovieFinder struct {
	movies  map[int]model.Movie
	popular []model.Movie
}

func (f *fakeMovieFinder) FindByIDs(ids []int) ([]model.Movie, error) {
	out := make([]model.Movie, 0, len(ids))
	for _, id := range ids {
		if m, ok := f.movies[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMovieFinder) ListPopular(limit int) ([]model.Movie, error) {
	if limit > len(f.popular) {
		limit = len(f.popular)
	}
	return f.popular[:limit], nil
}

type fakeLikeSource struct {
	likes map[string][]int
}

func (f *fakeLikeSource) ListByUser(userID string) ([]int, error) {
	return f.likes[userID], nil
}

// fakeSearcher 按查询文本查表返回固定命中，未登记的查询报错
type fakeSearcher struct {
	hits    map[string][]model.SearchHit
	failAll bool
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, topK, yearFilter int, genreFilter string) ([]model.SearchHit, error) {
	f.queries = append(f.queries, query)
	if f.failAll {
		return nil, errors.New("ollama unreachable")
	}
	hits, ok := f.hits[query]
	if !ok {
		return nil, errors.New("unexpected query: " + query)
	}
	return hits, nil
}

// 五部点赞影片，描述 d1..d5；分组大小 3，产生两个批次查询
func recommendFixture() (*fakeMovieFinder, *fakeLikeSource) {
	finder := &fakeMovieFinder{movies: map[int]model.Movie{
		1:  {ID: 1, Title: "Лайк 1", Description: "d1"},
		2:  {ID: 2, Title: "Лайк 2", Description: "d2"},
		3:  {ID: 3, Title: "Лайк 3", Description: "d3"},
		4:  {ID: 4, Title: "Лайк 4", Description: "d4"},
		5:  {ID: 5, Title: "Лайк 5", Description: "d5"},
		10: {ID: 10, Title: "Кандидат 10"},
		11: {ID: 11, Title: "Кандидат 11"},
		12: {ID: 12, Title: "Кандидат 12"},
	}}
	likes := &fakeLikeSource{likes: map[string][]int{
		"u1": {1, 2, 3, 4, 5},
	}}
	return finder, likes
}

func TestRecommendEmptyLikes(t *testing.T) {
	finder, likes := recommendFixture()
	s := NewRecommendService(finder, likes, &fakeSearcher{})

	// 没有点赞信号：显式空列表，不悄悄替换成热门榜
	got, err := s.Recommend(context.Background(), "anon", 10)
	if err != nil {
		t.Fatalf("不应失败: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("期望空列表, 得到 %v", got)
	}
}

func TestRecommendConsensusBonus(t *testing.T) {
	finder, likes := recommendFixture()
	searcher := &fakeSearcher{hits: map[string][]model.SearchHit{
		// 候选 10 在两个分组都出现：基础分取最高 0.6，加一次共识分
		"d1 d2 d3": {
			{MovieID: 10, Score: 0.5},
			{MovieID: 11, Score: 0.65},
		},
		"d4 d5": {
			{MovieID: 10, Score: 0.6},
		},
	}}
	s := NewRecommendService(finder, likes, searcher)

	got, err := s.Recommend(context.Background(), "u1", 2)
	if err != nil {
		t.Fatalf("推荐失败: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 条推荐, 得到 %d", len(got))
	}

	// 10: 0.6 + 0.1 = 0.7 排在 11: 0.65 之前
	if got[0].ID != 10 || got[1].ID != 11 {
		t.Fatalf("期望顺序 [10 11], 得到 [%d %d]", got[0].ID, got[1].ID)
	}
	if math.Abs(got[0].RelevanceScore-0.7) > 1e-9 {
		t.Fatalf("期望共识加成后得分 0.7, 得到 %v", got[0].RelevanceScore)
	}
	if len(searcher.queries) != 2 {
		t.Fatalf("期望 2 次分组检索, 实际 %d 次", len(searcher.queries))
	}
}

func TestRecommendExcludesLiked(t *testing.T) {
	finder, likes := recommendFixture()
	searcher := &fakeSearcher{hits: map[string][]model.SearchHit{
		// 已点赞的影片 1 混在命中里，必须被剔除
		"d1 d2 d3": {
			{MovieID: 1, Score: 0.99},
			{MovieID: 10, Score: 0.5},
		},
		"d4 d5": {},
	}}
	s := NewRecommendService(finder, likes, searcher)

	got, err := s.Recommend(context.Background(), "u1", 1)
	if err != nil {
		t.Fatalf("推荐失败: %v", err)
	}
	if len(got) != 1 || got[0].ID != 10 {
		t.Fatalf("期望只推荐影片 10, 得到 %v", got)
	}
}

func TestRecommendPopularPadding(t *testing.T) {
	finder, likes := recommendFixture()
	finder.popular = []model.Movie{
		{ID: 1, Title: "Лайк 1"}, // 已点赞，不能补位
		{ID: 10, Title: "Кандидат 10"},
		{ID: 11, Title: "Кандидат 11"},
		{ID: 12, Title: "Кандидат 12"},
	}
	searcher := &fakeSearcher{hits: map[string][]model.SearchHit{
		"d1 d2 d3": {{MovieID: 10, Score: 0.8}},
		"d4 d5":    {},
	}}
	s := NewRecommendService(finder, likes, searcher)

	got, err := s.Recommend(context.Background(), "u1", 3)
	if err != nil {
		t.Fatalf("推荐失败: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("期望补位到 3 条, 得到 %d", len(got))
	}

	// 第一条是真实候选，后两条是热门补位（跳过已点赞和已入选的）
	if got[0].ID != 10 || got[1].ID != 11 || got[2].ID != 12 {
		t.Fatalf("期望 [10 11 12], 得到 [%d %d %d]", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[1].RelevanceScore != 0.1 || got[2].RelevanceScore != 0.1 {
		t.Fatalf("补位影片应为固定低相关度 0.1, 得到 %v %v", got[1].RelevanceScore, got[2].RelevanceScore)
	}
	if got[0].RelevanceScore <= got[1].RelevanceScore {
		t.Fatal("真实候选应排在补位影片之前")
	}
}

func TestRecommendToleratesBatchFailure(t *testing.T) {
	finder, likes := recommendFixture()
	searcher := &fakeSearcher{hits: map[string][]model.SearchHit{
		// 第一组未登记会报错，第二组正常：只损失第一组候选
		"d4 d5": {{MovieID: 11, Score: 0.4}},
	}}
	s := NewRecommendService(finder, likes, searcher)

	got, err := s.Recommend(context.Background(), "u1", 2)
	if err != nil {
		t.Fatalf("单组失败不应整体失败: %v", err)
	}
	if len(got) != 1 || got[0].ID != 11 {
		t.Fatalf("期望保留第二组候选 [11], 得到 %v", got)
	}
}

func TestRecommendAllSearchesFail(t *testing.T) {
	finder, likes := recommendFixture()
	finder.popular = []model.Movie{{ID: 10}, {ID: 11}}
	searcher := &fakeSearcher{failAll: true}
	s := NewRecommendService(finder, likes, searcher)

	// 向量服务整体不可用：退化为纯热门补位，而不是报错
	got, err := s.Recommend(context.Background(), "u1", 2)
	if err != nil {
		t.Fatalf("不应失败: %v", err)
	}
	if len(got) != 2 || got[0].ID != 10 || got[1].ID != 11 {
		t.Fatalf("期望热门补位 [10 11], 得到 %v", got)
	}
}
