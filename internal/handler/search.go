package handler

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/kinosearch/internal/model"
	"github.com/user/kinosearch/internal/search"
	"github.com/user/kinosearch/internal/utils"
)

// Search 语义检索
// GET /search?query=...&limit=10&year=...&genre=...
// 空查询和零命中都返回空列表（200），依赖故障才是错误
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		utils.Success(c, []model.ScoredMovie{})
		return
	}

	topK, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	yearFilter := 0
	if yearStr := c.Query("year"); yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			utils.BadRequest(c, "年份参数必须是数字")
			return
		}
		yearFilter = y
	}
	genreFilter := c.Query("genre")

	hits, err := h.Engine.Search(c.Request.Context(), query, topK, yearFilter, genreFilter)
	if err != nil {
		h.searchError(c, err)
		return
	}

	utils.Success(c, h.attachMovies(hits))
}

// Filter 属性过滤浏览（可带文本查询词）
// GET /filter?genre=...&year=...&type=...&country=...&category=...&query=...
func (h *Handler) Filter(c *gin.Context) {
	criteria := map[string]string{
		search.AttrGenre:    c.Query("genre"),
		search.AttrYear:     c.Query("year"),
		search.AttrType:     c.Query("type"),
		search.AttrCountry:  c.Query("country"),
		search.AttrCategory: c.Query("category"),
	}
	query := c.Query("query")

	hits, err := h.Engine.FilterSearch(c.Request.Context(), criteria, query)
	if err != nil {
		h.searchError(c, err)
		return
	}

	utils.Success(c, h.attachMovies(hits))
}

// Status 检索系统状态
func (h *Handler) Status(c *gin.Context) {
	// 状态请求同样触发惰性一致性检查
	if _, err := h.Engine.CheckForUpdates(c.Request.Context()); err != nil {
		log.Printf("[Handler] 状态请求触发的同步失败: %v", err)
	}
	utils.Success(c, h.Engine.Stats())
}

// Movie 影片详情（带聚合评分）
func (h *Handler) Movie(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "影片 ID 必须是数字")
		return
	}

	movie, err := h.Repos.Movie.FindByID(id)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if movie == nil {
		utils.NotFound(c, "影片不存在")
		return
	}

	avg, err := h.Repos.Rating.GetAverage(id)
	if err != nil {
		log.Printf("[Handler] 读取影片 %d 聚合评分失败: %v", id, err)
	}

	utils.Success(c, gin.H{
		"movie":      movie,
		"avg_rating": avg,
	})
}

// Similar 同类影片
// GET /movie/:id/similar?count=6
func (h *Handler) Similar(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "影片 ID 必须是数字")
		return
	}
	count, _ := strconv.Atoi(c.DefaultQuery("count", "6"))
	if count <= 0 {
		count = 6
	}

	ids := h.Engine.Similar(id, count)
	movies, err := h.Repos.Movie.FindByIDs(ids)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, movies)
}

// Popular 热门影片（短暂缓存，避免每次都聚合评分表）
func (h *Handler) Popular(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit <= 0 {
		limit = 10
	}

	cacheKey := "popular:" + strconv.Itoa(limit)
	if cached, ok := utils.CacheGet(cacheKey); ok {
		utils.Success(c, cached)
		return
	}

	movies, err := h.Repos.Movie.ListPopular(limit)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}

	utils.CacheSet(cacheKey, movies, 5*time.Minute)
	utils.Success(c, movies)
}

// Genres 全部流派
func (h *Handler) Genres(c *gin.Context) {
	h.facet(c, search.AttrGenre)
}

// Countries 全部国家
func (h *Handler) Countries(c *gin.Context) {
	h.facet(c, search.AttrCountry)
}

// Categories 全部分类
func (h *Handler) Categories(c *gin.Context) {
	h.facet(c, search.AttrCategory)
}

func (h *Handler) facet(c *gin.Context, attr string) {
	cacheKey := "facet:" + attr
	if cached, ok := utils.CacheGet(cacheKey); ok {
		utils.Success(c, cached)
		return
	}

	values := h.Engine.FacetValues(attr)
	if values == nil {
		values = []string{}
	}
	utils.CacheSet(cacheKey, values, 5*time.Minute)
	utils.Success(c, values)
}

// attachMovies 把命中补全成影片数据，保持得分顺序
func (h *Handler) attachMovies(hits []model.SearchHit) []model.ScoredMovie {
	ids := make([]int, len(hits))
	scoreByID := make(map[int]float64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.MovieID
		scoreByID[hit.MovieID] = hit.Score
	}

	movies, err := h.Repos.Movie.FindByIDs(ids)
	if err != nil {
		log.Printf("[Handler] 补全检索结果失败: %v", err)
		return []model.ScoredMovie{}
	}

	out := make([]model.ScoredMovie, 0, len(movies))
	for _, m := range movies {
		out = append(out, model.ScoredMovie{Movie: m, RelevanceScore: scoreByID[m.ID]})
	}
	return out
}

// searchError 把核心错误分类映射到 HTTP 状态
func (h *Handler) searchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, search.ErrInvalidInput):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, search.ErrEmbedderUnavailable):
		utils.ServiceUnavailable(c, "向量服务暂不可用，请稍后重试")
	case errors.Is(err, search.ErrIndexInconsistent):
		utils.ServiceUnavailable(c, "索引正在重建，请稍后重试")
	default:
		log.Printf("[Handler] 检索失败: %v", err)
		utils.InternalServerError(c, "")
	}
}
