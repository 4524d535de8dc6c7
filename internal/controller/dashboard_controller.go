package controller

import (
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/service"
	"sage_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	DashboardService *service.DashboardService
}

func NewDashboardController(dashboardService *service.DashboardService) *DashboardController {
	return &DashboardController{DashboardService: dashboardService}
}

// GetDashboard godoc
// @Summary 获取仪表盘数据
// @Description 学生返回积分、成就、最近完成与推荐课程；教师返回自己的课程统计
// @Tags 仪表盘
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object}
// @Failure 401 {object} util.Response "未授权"
// @Router /api/dashboard [get]
func (c *DashboardController) GetDashboard(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}

	if claims.Role == model.Teacher || claims.Role == model.Admin {
		d, err := c.DashboardService.GetTeacherDashboard(ctx.Request.Context(), claims.UserID)
		if err != nil {
			respondError(ctx, err)
			return
		}
		util.Success(ctx, d)
		return
	}

	d, err := c.DashboardService.GetStudentDashboard(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, d)
}
