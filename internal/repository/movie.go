package repository

import (
	"errors"

	"github.com/pgvector/pgvector-go"
	"github.com/user/kinosearch/internal/model"
	"gorm.io/gorm"
)

// 不带向量列的字段清单，全量加载时避免把矩阵拖出数据库
var movieColumns = []string{
	"id", "kp_id", "title", "alternative_title", "year", "type",
	"description", "short_description", "rating", "poster",
	"genres", "countries", "category", "is_series", "updated_at",
}

// MovieRepository 影片库只读适配器
// 对核心引擎暴露规范化后的影片：年份缺失/非法时取 2000，
// 评分是唯一的 float 字段（多来源评分的调和在导入侧完成）
type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// ListAll 全量读取语料，可安全地重复调用
func (r *MovieRepository) ListAll() ([]model.Movie, error) {
	var movies []model.Movie
	if err := r.db.Select(movieColumns).Order("id").Find(&movies).Error; err != nil {
		return nil, err
	}
	for i := range movies {
		normalizeMovie(&movies[i])
	}
	return movies, nil
}

// Count 语料基数
func (r *MovieRepository) Count() (int, error) {
	var count int64
	if err := r.db.Model(&model.Movie{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// FindByID 按 ID 查找影片，不存在时返回 (nil, nil)
func (r *MovieRepository) FindByID(id int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.Select(movieColumns).Where("id = ?", id).First(&movie).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	normalizeMovie(&movie)
	return &movie, nil
}

// FindByIDs 批量查找，结果保持入参顺序，缺失的 ID 跳过
func (r *MovieRepository) FindByIDs(ids []int) ([]model.Movie, error) {
	if len(ids) == 0 {
		return []model.Movie{}, nil
	}

	var movies []model.Movie
	if err := r.db.Select(movieColumns).Where("id IN ?", ids).Find(&movies).Error; err != nil {
		return nil, err
	}

	byID := make(map[int]*model.Movie, len(movies))
	for i := range movies {
		normalizeMovie(&movies[i])
		byID[movies[i].ID] = &movies[i]
	}

	ordered := make([]model.Movie, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, *m)
		}
	}
	return ordered, nil
}

// ListPopular 热门影片：优先用户评分均值，没有用户评分时退回目录评分
func (r *MovieRepository) ListPopular(limit int) ([]model.Movie, error) {
	if limit <= 0 {
		limit = 10
	}
	var movies []model.Movie
	err := r.db.Raw(`
		SELECT m.id, m.kp_id, m.title, m.alternative_title, m.year, m.type,
		       m.description, m.short_description,
		       COALESCE(ur.avg_value, m.rating) AS rating,
		       m.poster, m.genres, m.countries, m.category, m.is_series, m.updated_at
		FROM movies m
		LEFT JOIN (
			SELECT movie_id, AVG(value) AS avg_value
			FROM ratings
			GROUP BY movie_id
		) ur ON ur.movie_id = m.id
		ORDER BY COALESCE(ur.avg_value, m.rating) DESC, m.id
		LIMIT ?
	`, limit).Scan(&movies).Error
	if err != nil {
		return nil, err
	}
	for i := range movies {
		normalizeMovie(&movies[i])
	}
	return movies, nil
}

// SaveEmbedding 回写影片向量（重建时由同步器调用）
func (r *MovieRepository) SaveEmbedding(movieID int, vec []float32) error {
	v := pgvector.NewVector(vec)
	return r.db.Model(&model.Movie{}).Where("id = ?", movieID).
		Update("embedding", &v).Error
}

// normalizeMovie 适配器口径：年份非法取 2000，类型收敛到枚举
func normalizeMovie(m *model.Movie) {
	if m.Year < 1900 {
		m.Year = 2000
	}
	switch m.Type {
	case model.TypeMovie, model.TypeSeries, model.TypeOther:
	case "tv-series", "mini-series":
		m.Type = model.TypeSeries
	case "":
		if m.IsSeries {
			m.Type = model.TypeSeries
		} else {
			m.Type = model.TypeMovie
		}
	default:
		m.Type = model.TypeOther
	}
	if m.Rating < 0 {
		m.Rating = 0
	}
}
