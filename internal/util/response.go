package util

import (
	"net/http"
	"sage_edu_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// OperationFailed 存储层错误对前端统一为不透明提示，详细错误只写日志
func OperationFailed(c *gin.Context, err error) {
	logger.Log.Error("Operation failed", zap.Error(err), zap.String("path", c.FullPath()))
	Error(c, http.StatusInternalServerError, "operation failed")
}

// GenerationFailed AI 调用失败的统一提示
func GenerationFailed(c *gin.Context, err error) {
	logger.Log.Warn("AI generation failed", zap.Error(err), zap.String("path", c.FullPath()))
	Error(c, http.StatusBadGateway, "generation failed")
}

// LogInternalErrorOnly 响应已开始写出时只记录日志
func LogInternalErrorOnly(c *gin.Context, err error) {
	logger.Log.Error("Request failed after response started", zap.Error(err), zap.String("path", c.FullPath()))
}
