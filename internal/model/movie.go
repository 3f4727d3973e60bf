package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// 影片类型
const (
	TypeMovie  = "movie"
	TypeSeries = "series"
	TypeOther  = "other"
)

// Movie 影片模型（目录正本，写入后只读）
type Movie struct {
	ID               int              `json:"id" db:"id"`
	KpID             string           `json:"kp_id" db:"kp_id" gorm:"unique"`
	Title            string           `json:"title" db:"title"`
	AlternativeTitle string           `json:"alternative_title" db:"alternative_title"`
	Year             int              `json:"year" db:"year"`
	Type             string           `json:"type" db:"type"`
	Description      string           `json:"description" db:"description"`
	ShortDescription string           `json:"short_description" db:"short_description"`
	Rating           float64          `json:"rating" db:"rating" gorm:"index"`
	Poster           string           `json:"poster" db:"poster"`
	Genres           pq.StringArray   `json:"genres" db:"genres" gorm:"type:text[]"`
	Countries        pq.StringArray   `json:"countries" db:"countries" gorm:"type:text[]"`
	Category         string           `json:"category" db:"category"`
	IsSeries         bool             `json:"is_series" db:"is_series"`
	Embedding        *pgvector.Vector `json:"-" db:"embedding" gorm:"type:vector(768)"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at" gorm:"index"`
}

// EmbeddingText 生成用于向量化的文本
// 优先使用完整简介，其次短简介，都没有时只用标题
func (m *Movie) EmbeddingText() string {
	if m.Description != "" {
		return m.Title + ". " + m.Description
	}
	if m.ShortDescription != "" {
		return m.Title + ". " + m.ShortDescription
	}
	return m.Title
}

// SearchHit 单条检索命中（影片 ID + 混合得分）
type SearchHit struct {
	MovieID int     `json:"movie_id"`
	Score   float64 `json:"score"`
}

// ScoredMovie 带相关度得分的影片（对外响应用）
type ScoredMovie struct {
	Movie
	RelevanceScore float64 `json:"relevance_score"`
}
