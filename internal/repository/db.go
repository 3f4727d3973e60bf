package repository

import (
	"fmt"

	"github.com/user/kinosearch/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 初始化数据库连接
func InitDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层连接失败: %w", err)
	}

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	// 设置连接池
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	// pgvector 扩展必须先于建表
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("启用 pgvector 扩展失败: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Movie{},
		&model.Like{},
		&model.Rating{},
		&model.Comment{},
	); err != nil {
		return nil, fmt.Errorf("自动建表失败: %w", err)
	}

	return db, nil
}

// Repositories 仓库集合
type Repositories struct {
	DB      *gorm.DB
	Movie   *MovieRepository
	Like    *LikeRepository
	Rating  *RatingRepository
	Comment *CommentRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:      db,
		Movie:   NewMovieRepository(db),
		Like:    NewLikeRepository(db),
		Rating:  NewRatingRepository(db),
		Comment: NewCommentRepository(db),
	}
}
