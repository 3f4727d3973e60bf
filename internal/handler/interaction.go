package handler

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/kinosearch/internal/middleware"
	"github.com/user/kinosearch/internal/utils"
)

// likeRequest 点赞/取消点赞请求体
type likeRequest struct {
	MovieID int `json:"movie_id" binding:"required"`
}

// Like 点赞影片（幂等）
func (h *Handler) Like(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "无效的请求参数")
		return
	}

	movie, err := h.Repos.Movie.FindByID(req.MovieID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if movie == nil {
		utils.NotFound(c, "影片不存在")
		return
	}

	if err := h.Repos.Like.Add(userID, req.MovieID); err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"liked": true})
}

// Unlike 取消点赞（未点赞时是空操作）
func (h *Handler) Unlike(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "无效的请求参数")
		return
	}

	if err := h.Repos.Like.Remove(userID, req.MovieID); err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"liked": false})
}

// LikedMovies 用户点赞过的影片
func (h *Handler) LikedMovies(c *gin.Context) {
	userID := middleware.GetUserID(c)

	ids, err := h.Repos.Like.ListByUser(userID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	movies, err := h.Repos.Movie.FindByIDs(ids)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"movies": movies, "total": len(movies)})
}

// IsLiked 是否点赞过指定影片
func (h *Handler) IsLiked(c *gin.Context) {
	userID := middleware.GetUserID(c)
	movieID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "影片 ID 必须是数字")
		return
	}

	liked, err := h.Repos.Like.IsLiked(userID, movieID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"liked": liked})
}

// RemoveAllLikes 清空用户全部点赞
func (h *Handler) RemoveAllLikes(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if err := h.Repos.Like.RemoveAllByUser(userID); err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"removed": true})
}

// rateRequest 评分请求体（1-5 分，越界在边界直接拒绝）
type rateRequest struct {
	MovieID int `json:"movie_id" binding:"required"`
	Rating  int `json:"rating" binding:"required,min=1,max=5"`
}

// Rate 给影片评分
func (h *Handler) Rate(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "评分必须在 1 到 5 之间")
		return
	}

	movie, err := h.Repos.Movie.FindByID(req.MovieID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if movie == nil {
		utils.NotFound(c, "影片不存在")
		return
	}

	if err := h.Repos.Rating.Rate(userID, req.MovieID, req.Rating); err != nil {
		utils.InternalServerError(c, "")
		return
	}

	// 聚合评分每次写入后重算
	avg, err := h.Repos.Rating.GetAverage(req.MovieID)
	if err != nil {
		log.Printf("[Handler] 重算影片 %d 聚合评分失败: %v", req.MovieID, err)
	}
	utils.Success(c, gin.H{"rating": req.Rating, "avg_rating": avg})
}

// GetRating 用户对影片的评分
func (h *Handler) GetRating(c *gin.Context) {
	userID := middleware.GetUserID(c)
	movieID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "影片 ID 必须是数字")
		return
	}

	rating, err := h.Repos.Rating.GetUserRating(userID, movieID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"rating": rating})
}

// commentRequest 评论请求体
type commentRequest struct {
	MovieID int    `json:"movie_id" binding:"required"`
	Text    string `json:"text" binding:"required"`
}

// AddComment 发表评论
func (h *Handler) AddComment(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "评论内容不能为空")
		return
	}

	movie, err := h.Repos.Movie.FindByID(req.MovieID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if movie == nil {
		utils.NotFound(c, "影片不存在")
		return
	}

	comment, err := h.Repos.Comment.Add(userID, req.MovieID, req.Text)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, comment)
}

// Comments 影片评论列表（从新到旧）
func (h *Handler) Comments(c *gin.Context) {
	movieID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "影片 ID 必须是数字")
		return
	}
	count, _ := strconv.Atoi(c.DefaultQuery("count", "20"))

	comments, err := h.Repos.Comment.ListByMovie(movieID, count)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, comments)
}

// Recommendations 基于点赞的推荐
// 没有点赞时返回空列表和 total=0，调用方据此区分"没有信号"
func (h *Handler) Recommendations(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	movies, err := h.Recommender.Recommend(c.Request.Context(), userID, limit)
	if err != nil {
		h.searchError(c, err)
		return
	}
	utils.Success(c, gin.H{"movies": movies, "total": len(movies)})
}
