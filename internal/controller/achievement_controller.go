package controller

import (
	"sage_edu_backend/internal/service"
	"sage_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AchievementController struct {
	AchievementService *service.AchievementService
}

func NewAchievementController(achievementService *service.AchievementService) *AchievementController {
	return &AchievementController{AchievementService: achievementService}
}

// GetUserAchievements godoc
// @Summary 获取用户成就
// @Description 积分、等级、排名、徽章与排行榜
// @Tags 成就
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.UserAchievements}
// @Failure 401 {object} util.Response "未授权"
// @Router /api/achievements [get]
func (c *AchievementController) GetUserAchievements(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}

	achievements, err := c.AchievementService.GetUserAchievements(claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, achievements)
}

// GetLeaderboard godoc
// @Summary 获取排行榜
// @Tags 成就
// @Produce  json
// @Security ApiKeyAuth
// @Param   limit query int false "返回数量" default(10)
// @Success 200 {object} util.Response{data=[]service.LeaderboardEntry}
// @Router /api/achievements/leaderboard [get]
func (c *AchievementController) GetLeaderboard(ctx *gin.Context) {
	limit := queryInt(ctx, "limit", 10)
	if limit > 100 {
		limit = 100
	}

	leaderboard, err := c.AchievementService.GetLeaderboard(limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, leaderboard)
}

// CompleteModule godoc
// @Summary 完成模块
// @Description 每个模块只计一次积分，重复提交返回 alreadyCompleted
// @Tags 成就
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Param   body body service.CompleteModuleRequest false "得分"
// @Success 200 {object} util.Response{data=service.CompletionResult}
// @Failure 403 {object} util.Response "课程未发布"
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/modules/{id}/complete [post]
func (c *AchievementController) CompleteModule(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}

	var req service.CompleteModuleRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	result, err := c.AchievementService.CompleteModule(ctx.Request.Context(), claims.UserID, ctx.Param("id"), req.Score)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
