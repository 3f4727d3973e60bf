package search

import (
	"reflect"
	"testing"

	"github.com/lib/pq"
	"github.com/user/kinosearch/internal/model"
)

func attrTestMovies() []model.Movie {
	return []model.Movie{
		{ID: 1, Title: "Побег из Шоушенка", Year: 1994, Type: model.TypeMovie, Category: "classic",
			Genres: pq.StringArray{"Drama"}, Countries: pq.StringArray{"США"}},
		{ID: 2, Title: "Маска", Year: 1994, Type: model.TypeMovie,
			Genres: pq.StringArray{"comedy"}, Countries: pq.StringArray{"США"}},
		{ID: 3, Title: "Интерстеллар", Year: 2014, Type: model.TypeMovie,
			Genres: pq.StringArray{"sci-fi", "drama"}, Countries: pq.StringArray{"США", "Великобритания"}},
	}
}

func TestAttributeIndexFilterIntersection(t *testing.T) {
	ix := NewAttributeIndex()
	ix.Rebuild(attrTestMovies())

	// 流派 + 年份的交集
	got, constrained := ix.Filter(map[string]string{
		AttrGenre: "drama",
		AttrYear:  "1994",
	})
	if !constrained {
		t.Fatal("期望有约束的过滤")
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 部影片, 得到 %d", len(got))
	}
	if _, ok := got[1]; !ok {
		t.Fatalf("期望影片 1 命中, 得到 %v", got)
	}
}

func TestAttributeIndexFilterUnconstrained(t *testing.T) {
	ix := NewAttributeIndex()
	ix.Rebuild(attrTestMovies())

	// 空条件集是"无约束"，不是"无结果"
	got, constrained := ix.Filter(map[string]string{})
	if constrained || got != nil {
		t.Fatalf("空条件集应返回 (nil, false), 得到 (%v, %v)", got, constrained)
	}

	// 空字符串值视同未提供
	got, constrained = ix.Filter(map[string]string{AttrGenre: ""})
	if constrained || got != nil {
		t.Fatalf("空值条件应返回 (nil, false), 得到 (%v, %v)", got, constrained)
	}
}

func TestAttributeIndexFilterNoMatch(t *testing.T) {
	ix := NewAttributeIndex()
	ix.Rebuild(attrTestMovies())

	// 有约束但无命中：返回空集合而不是 nil 标记
	got, constrained := ix.Filter(map[string]string{AttrGenre: "horror"})
	if !constrained {
		t.Fatal("期望有约束的过滤")
	}
	if len(got) != 0 {
		t.Fatalf("期望空结果, 得到 %v", got)
	}
}

func TestAttributeIndexGenreCaseNormalization(t *testing.T) {
	ix := NewAttributeIndex()
	ix.Rebuild(attrTestMovies())

	// 影片 1 的流派写作 "Drama"，查询大小写都要命中
	for _, q := range []string{"drama", "Drama", "DRAMA"} {
		got, _ := ix.Filter(map[string]string{AttrGenre: q})
		if len(got) != 2 {
			t.Fatalf("流派 %q 期望 2 部影片, 得到 %d", q, len(got))
		}
	}
}

func TestAttributeIndexIDsSorted(t *testing.T) {
	ix := NewAttributeIndex()
	ix.Rebuild(attrTestMovies())

	got := ix.IDs(AttrCountry, "США")
	want := []int{1, 2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("期望 %v, 得到 %v", want, got)
	}
}

func TestAttributeIndexValues(t *testing.T) {
	ix := NewAttributeIndex()
	ix.Rebuild(attrTestMovies())

	got := ix.Values(AttrGenre)
	want := []string{"comedy", "drama", "sci-fi"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("期望 %v, 得到 %v", want, got)
	}
}

func TestAttributeIndexRebuildIdempotent(t *testing.T) {
	ix := NewAttributeIndex()
	movies := attrTestMovies()
	ix.Rebuild(movies)
	ix.Rebuild(movies)

	// 重复重建不能产生重复 ID
	got := ix.IDs(AttrGenre, "drama")
	want := []int{1, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("期望 %v, 得到 %v", want, got)
	}
}
