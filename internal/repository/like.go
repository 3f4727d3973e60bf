package repository

import (
	"time"

	"github.com/user/kinosearch/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository 点赞关系仓库
// 一张 (user_id, movie_id) 主键表同时承担正反两个方向的查询，
// 成员关系天然对称；重复点赞靠冲突忽略保证幂等
type LikeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

// Add 点赞（已存在时无副作用）
func (r *LikeRepository) Add(userID string, movieID int) error {
	like := &model.Like{
		UserID:    userID,
		MovieID:   movieID,
		CreatedAt: time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error
}

// Remove 取消点赞（未点赞时是空操作，不报错）
func (r *LikeRepository) Remove(userID string, movieID int) error {
	return r.db.Where("user_id = ? AND movie_id = ?", userID, movieID).
		Delete(&model.Like{}).Error
}

// IsLiked 是否已点赞
func (r *LikeRepository) IsLiked(userID string, movieID int) (bool, error) {
	var count int64
	err := r.db.Model(&model.Like{}).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Count(&count).Error
	return count > 0, err
}

// ListByUser 用户点赞过的影片 ID（点赞时间倒序）
func (r *LikeRepository) ListByUser(userID string) ([]int, error) {
	var ids []int
	err := r.db.Model(&model.Like{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("movie_id", &ids).Error
	return ids, err
}

// ListUsersByMovie 点赞过该影片的用户（反向）
func (r *LikeRepository) ListUsersByMovie(movieID int) ([]string, error) {
	var users []string
	err := r.db.Model(&model.Like{}).
		Where("movie_id = ?", movieID).
		Pluck("user_id", &users).Error
	return users, err
}

// RemoveAllByUser 删除用户的全部点赞
func (r *LikeRepository) RemoveAllByUser(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&model.Like{}).Error
}
