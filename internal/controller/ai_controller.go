package controller

import (
	"sage_edu_backend/internal/service"
	"sage_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AIController struct {
	Generation *service.GenerationService
	Tutor      *service.TutorService
}

func NewAIController(generation *service.GenerationService, tutor *service.TutorService) *AIController {
	return &AIController{
		Generation: generation,
		Tutor:      tutor,
	}
}

// Generate godoc
// @Summary AI 生成
// @Description type 为模块类型时生成内容并原样写入该模块的 aiContent；type 为 course 时生成整门课程及模块
// @Tags AI
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.GenerateRequest true "生成请求"
// @Success 200 {object} util.Response{data=object} "模块或课程"
// @Failure 400 {object} util.Response "参数错误"
// @Failure 502 {object} util.Response "generation failed"
// @Router /api/ai/generate [post]
func (c *AIController) Generate(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	var req service.GenerateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if req.IsCourse() {
		course, err := c.Generation.GenerateCourse(ctx.Request.Context(), req, claims)
		if err != nil {
			respondError(ctx, err)
			return
		}
		util.Created(ctx, course)
		return
	}

	m, err := c.Generation.GenerateModuleContent(ctx.Request.Context(), req, claims)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, m)
}

// TutorAsk godoc
// @Summary AI 助教问答（流式）
// @Description 以 SSE 返回回答片段，事件依次为 message、end，失败时为 error
// @Tags AI
// @Accept  json
// @Produce  text/event-stream
// @Security ApiKeyAuth
// @Param   body body service.TutorAskRequest true "问题"
// @Router /api/ai/tutor/ask [post]
func (c *AIController) TutorAsk(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	var req service.TutorAskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	stream, errChan := c.Tutor.AskStream(ctx.Request.Context(), claims.UserID, req)

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")

	for content := range stream {
		ctx.SSEvent("message", content)
		ctx.Writer.Flush()
	}

	if err := <-errChan; err != nil {
		util.LogInternalErrorOnly(ctx, err)
		ctx.SSEvent("error", "generation failed")
		ctx.Writer.Flush()
		return
	}

	ctx.SSEvent("end", "done")
	ctx.Writer.Flush()
}

// TutorHistory godoc
// @Summary 助教会话历史
// @Tags AI
// @Produce  json
// @Security ApiKeyAuth
// @Param   sessionId query string true "会话ID"
// @Success 200 {object} util.Response{data=[]model.TutorMessage}
// @Router /api/ai/tutor/history [get]
func (c *AIController) TutorHistory(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	sessionID := ctx.Query("sessionId")
	if sessionID == "" {
		util.BadRequest(ctx, "sessionId is required")
		return
	}

	history, err := c.Tutor.History(claims.UserID, sessionID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, history)
}

// TutorSessions godoc
// @Summary 助教会话列表
// @Tags AI
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]string}
// @Router /api/ai/tutor/sessions [get]
func (c *AIController) TutorSessions(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	sessions, err := c.Tutor.Sessions(claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, sessions)
}
