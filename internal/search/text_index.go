package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/user/kinosearch/internal/model"
)

// 各字段的文本相关度权重
const (
	weightTitle            = 5.0
	weightShortDescription = 2.0
	weightDescription      = 1.0
)

type textDoc struct {
	id               int
	title            string
	shortDescription string
	description      string
	rating           float64
}

// TextIndex 加权多字段文本索引
// 标题权重最高，其次短简介，再次完整简介；得分相同时按目录评分倒序
type TextIndex struct {
	docs []textDoc
}

// NewTextIndex 创建空索引
func NewTextIndex() *TextIndex {
	return &TextIndex{}
}

// Index 登记一部影片（字段统一转小写存储）
func (ix *TextIndex) Index(m *model.Movie) {
	ix.docs = append(ix.docs, textDoc{
		id:               m.ID,
		title:            strings.ToLower(m.Title),
		shortDescription: strings.ToLower(m.ShortDescription),
		description:      strings.ToLower(m.Description),
		rating:           m.Rating,
	})
}

// Clear 清空索引
func (ix *TextIndex) Clear() {
	ix.docs = nil
}

// Len 索引中的文档数
func (ix *TextIndex) Len() int {
	return len(ix.docs)
}

// SearchText 加权词项检索，返回按得分倒序的命中
// 每个查询词命中一个字段，就按该字段权重加分；零分文档不返回
func (ix *TextIndex) SearchText(query string) []model.SearchHit {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		id     int
		score  float64
		rating float64
	}
	var hits []scored

	for _, doc := range ix.docs {
		var score float64
		for _, term := range terms {
			if containsToken(doc.title, term) {
				score += weightTitle
			}
			if containsToken(doc.shortDescription, term) {
				score += weightShortDescription
			}
			if containsToken(doc.description, term) {
				score += weightDescription
			}
		}
		if score > 0 {
			hits = append(hits, scored{id: doc.id, score: score, rating: doc.rating})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].rating > hits[j].rating
	})

	out := make([]model.SearchHit, len(hits))
	for i, h := range hits {
		out[i] = model.SearchHit{MovieID: h.id, Score: h.score}
	}
	return out
}

// FallbackScan 兜底的子串扫描：标题/简介/短简介忽略大小写包含即命中
// 不打分，只收窄召回；任何输入都不会失败
func FallbackScan(movies []model.Movie, query string) []int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var ids []int
	for i := range movies {
		m := &movies[i]
		if strings.Contains(strings.ToLower(m.Title), q) ||
			strings.Contains(strings.ToLower(m.Description), q) ||
			strings.Contains(strings.ToLower(m.ShortDescription), q) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Tokenize 按非字母数字切词并转小写
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsToken 判断词项是否以完整词形式出现在文本中
func containsToken(text, term string) bool {
	if text == "" || term == "" {
		return false
	}
	start := 0
	for {
		idx := strings.Index(text[start:], term)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(term)

		// 两侧必须是词边界；按 rune 解码，避免把多字节字母误判成边界
		leftOK := idx == 0
		if !leftOK {
			r, _ := utf8.DecodeLastRuneInString(text[:idx])
			leftOK = isBoundary(r)
		}
		rightOK := end == len(text)
		if !rightOK {
			r, _ := utf8.DecodeRuneInString(text[end:])
			rightOK = isBoundary(r)
		}
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
		if start >= len(text) {
			return false
		}
	}
}

func isBoundary(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
