package repository

import (
	"time"

	"github.com/user/kinosearch/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingRepository 用户评分仓库
// 聚合评分每次都重新 AVG，跨重启不信任任何增量均值
type RatingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Rate 写入或覆盖用户对影片的评分
func (r *RatingRepository) Rate(userID string, movieID, value int) error {
	rating := &model.Rating{
		UserID:    userID,
		MovieID:   movieID,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(rating).Error
}

// GetUserRating 用户对影片的评分，没有时返回 0
func (r *RatingRepository) GetUserRating(userID string, movieID int) (int, error) {
	var rating model.Rating
	err := r.db.Where("user_id = ? AND movie_id = ?", userID, movieID).
		First(&rating).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return rating.Value, nil
}

// GetAverage 影片的聚合评分（所有评分的算术平均），没有评分时返回 0
func (r *RatingRepository) GetAverage(movieID int) (float64, error) {
	var avg *float64
	err := r.db.Model(&model.Rating{}).
		Where("movie_id = ?", movieID).
		Select("AVG(value)").
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

// CountByMovie 影片的评分人数
func (r *RatingRepository) CountByMovie(movieID int) (int, error) {
	var count int64
	err := r.db.Model(&model.Rating{}).
		Where("movie_id = ?", movieID).
		Count(&count).Error
	return int(count), err
}
