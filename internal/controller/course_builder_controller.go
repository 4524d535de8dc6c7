package controller

import (
	"net/http"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/service"
	"sage_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseBuilderController struct {
	Builder *service.CourseBuilderService
	Media   *service.MediaService
	Hub     *service.BuilderHub
}

func NewCourseBuilderController(builder *service.CourseBuilderService, media *service.MediaService, hub *service.BuilderHub) *CourseBuilderController {
	return &CourseBuilderController{
		Builder: builder,
		Media:   media,
		Hub:     hub,
	}
}

// swagger:model CreateModuleRequest
type CreateModuleRequest struct {
	ModuleType       model.ModuleType `json:"moduleType" binding:"required"`
	TimelinePosition *int             `json:"timelinePosition" binding:"required"`
	DurationMinutes  int              `json:"durationMinutes"`
}

// swagger:model MoveModuleRequest
type MoveModuleRequest struct {
	Position *int `json:"position" binding:"required"`
}

// ModuleTypes godoc
// @Summary 模块类型目录
// @Description 组件面板的固定顺序类型列表
// @Tags 课程编辑器
// @Produce  json
// @Success 200 {object} util.Response{data=[]model.ModuleTypeInfo}
// @Router /api/modules/types [get]
func (c *CourseBuilderController) ModuleTypes(ctx *gin.Context) {
	util.Success(ctx, model.ModuleTypes())
}

// GetTimeline godoc
// @Summary 课程时间线
// @Description 返回槽位、放置区与总时长，同一槽位的多个模块按创建时间排列
// @Tags 课程编辑器
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response{data=service.TimelineView}
// @Failure 403 {object} util.Response "无权操作"
// @Router /api/teacher/courses/{id}/timeline [get]
func (c *CourseBuilderController) GetTimeline(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	courseID := ctx.Param("id")
	if _, err := c.Builder.AuthorizeCourse(ctx.Request.Context(), courseID, claims); err != nil {
		respondError(ctx, err)
		return
	}

	layout, err := c.Builder.Timeline(ctx.Request.Context(), courseID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, service.NewTimelineView(courseID, layout))
}

// ListModules godoc
// @Summary 课程模块列表
// @Tags 课程编辑器
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课程ID"
// @Success 200 {object} util.Response{data=[]model.CourseModule}
// @Router /api/teacher/courses/{id}/modules [get]
func (c *CourseBuilderController) ListModules(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	courseID := ctx.Param("id")
	if _, err := c.Builder.AuthorizeCourse(ctx.Request.Context(), courseID, claims); err != nil {
		respondError(ctx, err)
		return
	}

	modules, err := c.Builder.ListModules(ctx.Request.Context(), courseID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, modules)
}

// CreateModule godoc
// @Summary 在空槽位创建模块
// @Description durationMinutes 为 0 时使用默认时长
// @Tags 课程编辑器
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课程ID"
// @Param   body body CreateModuleRequest true "模块类型与位置"
// @Success 201 {object} util.Response{data=model.CourseModule}
// @Failure 400 {object} util.Response "参数错误"
// @Failure 409 {object} util.Response "槽位已被占用"
// @Router /api/teacher/courses/{id}/modules [post]
func (c *CourseBuilderController) CreateModule(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	var req CreateModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	courseID := ctx.Param("id")
	if _, err := c.Builder.AuthorizeCourse(ctx.Request.Context(), courseID, claims); err != nil {
		respondError(ctx, err)
		return
	}

	m, err := c.Builder.PlaceModule(ctx.Request.Context(), courseID, req.ModuleType, *req.TimelinePosition, req.DurationMinutes)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, m)
}

// UpdateModule godoc
// @Summary 更新模块设置
// @Description 局部更新，未提交的字段保持不变
// @Tags 课程编辑器
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Param   body body service.ModuleUpdate true "要修改的字段"
// @Success 200 {object} util.Response{data=model.CourseModule}
// @Failure 400 {object} util.Response "参数错误"
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/teacher/modules/{id} [patch]
func (c *CourseBuilderController) UpdateModule(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	var req service.ModuleUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	moduleID := ctx.Param("id")
	if _, err := c.Builder.AuthorizeModule(ctx.Request.Context(), moduleID, claims); err != nil {
		respondError(ctx, err)
		return
	}

	m, err := c.Builder.UpdateModule(ctx.Request.Context(), moduleID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, m)
}

// MoveModule godoc
// @Summary 移动模块到指定槽位
// @Description 只修改该模块的位置，目标槽位已有模块时两者并存
// @Tags 课程编辑器
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Param   body body MoveModuleRequest true "目标位置"
// @Success 200 {object} util.Response{data=model.CourseModule}
// @Router /api/teacher/modules/{id}/position [put]
func (c *CourseBuilderController) MoveModule(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	var req MoveModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	moduleID := ctx.Param("id")
	if _, err := c.Builder.AuthorizeModule(ctx.Request.Context(), moduleID, claims); err != nil {
		respondError(ctx, err)
		return
	}

	m, err := c.Builder.MoveModule(ctx.Request.Context(), moduleID, *req.Position)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, m)
}

// DeleteModule godoc
// @Summary 删除模块
// @Tags 课程编辑器
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/teacher/modules/{id} [delete]
func (c *CourseBuilderController) DeleteModule(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	moduleID := ctx.Param("id")
	if _, err := c.Builder.AuthorizeModule(ctx.Request.Context(), moduleID, claims); err != nil {
		respondError(ctx, err)
		return
	}

	if err := c.Builder.DeleteModule(ctx.Request.Context(), moduleID); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadMedia godoc
// @Summary 上传视频/图片模块的媒体文件
// @Description 视频会探测时长并写回模块时长，同时生成缩略图
// @Tags 课程编辑器
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Param   file formData file true "媒体文件"
// @Success 200 {object} util.Response{data=service.MediaUploadResult}
// @Failure 400 {object} util.Response "文件类型与模块类型不符"
// @Failure 413 {object} util.Response "文件过大"
// @Router /api/teacher/modules/{id}/media [post]
func (c *CourseBuilderController) UploadMedia(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, util.MaxMediaUploadBytes+(1<<20))
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	result, err := c.Media.UploadModuleMedia(ctx.Request.Context(), claims, ctx.Param("id"), header)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// HandleWS godoc
// @Summary 课程编辑器实时会话
// @Description 拖放事件通过 websocket 上行，服务端推送时间线与拖拽状态
// @Tags 课程编辑器
// @Security ApiKeyAuth
// @Param   id path string true "课程ID"
// @Param   token query string false "JWT，浏览器无法设置请求头时使用"
// @Router /api/teacher/courses/{id}/builder/ws [get]
func (c *CourseBuilderController) HandleWS(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	courseID := ctx.Param("id")
	if _, err := c.Builder.AuthorizeCourse(ctx.Request.Context(), courseID, claims); err != nil {
		respondError(ctx, err)
		return
	}

	service.ServeBuilderWs(c.Hub, ctx.Writer, ctx.Request, claims.UserID, courseID)
}
