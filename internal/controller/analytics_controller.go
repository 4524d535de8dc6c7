package controller

import (
	"sage_edu_backend/internal/service"
	"sage_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
}

func NewAnalyticsController(analyticsService *service.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{AnalyticsService: analyticsService}
}

// GetStats godoc
// @Summary 学习统计
// @Description 完成模块数、学习时长、积分与按模块类型的分布
// @Tags 学习分析
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.LearningStats}
// @Router /api/analytics/stats [get]
func (c *AnalyticsController) GetStats(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	stats, err := c.AnalyticsService.Stats(claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// GetInsights godoc
// @Summary AI 学习洞察
// @Tags 学习分析
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.LearningInsights}
// @Failure 502 {object} util.Response "generation failed"
// @Router /api/analytics/insights [get]
func (c *AnalyticsController) GetInsights(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	insights, err := c.AnalyticsService.Insights(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, insights)
}

// GetAdaptive godoc
// @Summary 自适应学习推荐
// @Description 根据完成记录推荐接下来学习的模块
// @Tags 学习分析
// @Produce  json
// @Security ApiKeyAuth
// @Param   limit query int false "推荐数量" default(5)
// @Success 200 {object} util.Response{data=[]service.Recommendation}
// @Failure 502 {object} util.Response "generation failed"
// @Router /api/analytics/adaptive [get]
func (c *AnalyticsController) GetAdaptive(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	limit := queryInt(ctx, "limit", 5)
	if limit > 20 {
		limit = 20
	}
	recs, err := c.AnalyticsService.Adaptive(ctx.Request.Context(), claims.UserID, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, recs)
}
