package handler

import (
	"github.com/user/kinosearch/internal/config"
	"github.com/user/kinosearch/internal/repository"
	"github.com/user/kinosearch/internal/search"
	"github.com/user/kinosearch/internal/service"
)

// Handler HTTP 处理器
type Handler struct {
	Repos       *repository.Repositories
	Config      *config.Config
	Engine      *search.Engine
	Recommender *service.RecommendService
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, cfg *config.Config, engine *search.Engine) *Handler {
	recommender := service.NewRecommendService(repos.Movie, repos.Like, engine)

	return &Handler{
		Repos:       repos,
		Config:      cfg,
		Engine:      engine,
		Recommender: recommender,
	}
}
