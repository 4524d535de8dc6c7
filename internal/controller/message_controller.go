package controller

import (
	"sage_edu_backend/internal/service"
	"sage_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MessageController struct {
	MessageService *service.MessageService
}

func NewMessageController(messageService *service.MessageService) *MessageController {
	return &MessageController{MessageService: messageService}
}

// SendMessage godoc
// @Summary 发送私信
// @Tags 消息
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.SendMessageRequest true "消息"
// @Success 201 {object} util.Response{data=model.Message}
// @Failure 400 {object} util.Response "内容为空或发给自己"
// @Failure 404 {object} util.Response "收件人不存在"
// @Router /api/messages [post]
func (c *MessageController) SendMessage(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	var req service.SendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	msg, err := c.MessageService.Send(claims.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, msg)
}

// GetConversations godoc
// @Summary 会话列表
// @Tags 消息
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.ConversationPeer}
// @Router /api/messages/conversations [get]
func (c *MessageController) GetConversations(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	peers, err := c.MessageService.Peers(claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, peers)
}

// GetConversation godoc
// @Summary 与某用户的消息记录
// @Description 按时间倒序分页，读取时将对方发来的消息标记为已读
// @Tags 消息
// @Produce  json
// @Security ApiKeyAuth
// @Param   userId path int true "对方用户ID"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/messages/conversations/{userId} [get]
func (c *MessageController) GetConversation(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	peerID, ok := paramUint(ctx, "userId")
	if !ok {
		return
	}
	page := queryInt(ctx, "page", 1)
	limit := queryInt(ctx, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	msgs, total, err := c.MessageService.Conversation(claims.UserID, peerID, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: msgs, Total: total, Page: page, Limit: limit})
}

// MarkRead godoc
// @Summary 标记与某用户的消息为已读
// @Tags 消息
// @Produce  json
// @Security ApiKeyAuth
// @Param   userId path int true "对方用户ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/messages/conversations/{userId}/read [put]
func (c *MessageController) MarkRead(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	peerID, ok := paramUint(ctx, "userId")
	if !ok {
		return
	}
	n, err := c.MessageService.MarkRead(claims.UserID, peerID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"updated": n})
}

// UnreadCount godoc
// @Summary 未读消息数
// @Tags 消息
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object}
// @Router /api/messages/unread [get]
func (c *MessageController) UnreadCount(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if claims == nil {
		return
	}
	n, err := c.MessageService.UnreadCount(claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"unread": n})
}
