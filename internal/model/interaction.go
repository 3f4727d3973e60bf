package model

import (
	"time"
)

// Like 用户点赞关系（user <-> movie 双向，幂等）
type Like struct {
	UserID    string    `json:"user_id" db:"user_id" gorm:"primaryKey"`
	MovieID   int       `json:"movie_id" db:"movie_id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Rating 用户评分（1-5 分，按 (user, movie) 唯一）
type Rating struct {
	UserID    string    `json:"user_id" db:"user_id" gorm:"primaryKey"`
	MovieID   int       `json:"movie_id" db:"movie_id" gorm:"primaryKey"`
	Value     int       `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Comment 影片评论（只追加，按时间倒序读取）
type Comment struct {
	ID        int64     `json:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	MovieID   int       `json:"movie_id" db:"movie_id" gorm:"index"`
	UserID    string    `json:"user_id" db:"user_id" gorm:"index"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"index"`
}
