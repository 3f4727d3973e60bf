package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/kinosearch/internal/handler"
	"github.com/user/kinosearch/internal/middleware"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查（不触发索引初始化）
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "kinosearch"})
	})

	// ==================== 检索 ====================
	r.GET("/search", h.Search)
	r.GET("/filter", h.Filter)
	r.GET("/status", h.Status)
	r.GET("/popular", h.Popular)
	r.GET("/genres", h.Genres)
	r.GET("/countries", h.Countries)
	r.GET("/categories", h.Categories)

	// ==================== 影片 ====================
	r.GET("/movie/:id", h.Movie)
	r.GET("/movie/:id/similar", h.Similar)
	r.GET("/movie/:id/comments", h.Comments)

	// ==================== 用户交互（匿名会话标识）====================
	user := r.Group("/")
	user.Use(middleware.EnsureUser())
	{
		user.POST("/like", h.Like)
		user.POST("/unlike", h.Unlike)
		user.GET("/liked", h.LikedMovies)
		user.GET("/movie/:id/liked", h.IsLiked)
		user.POST("/likes/clear", h.RemoveAllLikes)
		user.POST("/rate", h.Rate)
		user.GET("/movie/:id/rating", h.GetRating)
		user.POST("/comment", h.AddComment)
		user.GET("/recommendations", h.Recommendations)
	}
}
