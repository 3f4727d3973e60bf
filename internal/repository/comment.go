package repository

import (
	"time"

	"github.com/user/kinosearch/internal/model"
	"gorm.io/gorm"
)

// CommentRepository 评论仓库（只追加）
type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Add 追加一条评论，返回带自增 ID 的完整记录
func (r *CommentRepository) Add(userID string, movieID int, text string) (*model.Comment, error) {
	comment := &model.Comment{
		MovieID:   movieID,
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := r.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// ListByMovie 影片评论，按时间从新到旧
func (r *CommentRepository) ListByMovie(movieID, limit int) ([]model.Comment, error) {
	if limit <= 0 {
		limit = 20
	}
	var comments []model.Comment
	err := r.db.Where("movie_id = ?", movieID).
		Order("created_at DESC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

// ListByUser 用户发表过的评论
func (r *CommentRepository) ListByUser(userID string, limit int) ([]model.Comment, error) {
	if limit <= 0 {
		limit = 20
	}
	var comments []model.Comment
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}
