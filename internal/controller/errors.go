package controller

import (
	"errors"
	"net/http"
	"sage_edu_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{util.ErrUserNotFound, http.StatusNotFound},
	{util.ErrCourseNotFound, http.StatusNotFound},
	{util.ErrModuleNotFound, http.StatusNotFound},
	{util.ErrEmailRegistered, http.StatusConflict},
	{util.ErrSlotOccupied, http.StatusConflict},
	{util.ErrDropRejected, http.StatusConflict},
	{util.ErrInvalidCredential, http.StatusUnauthorized},
	{util.ErrUnauthorized, http.StatusUnauthorized},
	{util.ErrPermissionDenied, http.StatusForbidden},
	{util.ErrCourseNotPublished, http.StatusForbidden},
	{util.ErrInvalidModuleType, http.StatusBadRequest},
	{util.ErrInvalidPosition, http.StatusBadRequest},
	{util.ErrInvalidField, http.StatusBadRequest},
	{util.ErrInvalidDuration, http.StatusBadRequest},
	{util.ErrInvalidMediaType, http.StatusBadRequest},
	{util.ErrNoActiveDrag, http.StatusBadRequest},
	{util.ErrEmptyMessage, http.StatusBadRequest},
	{util.ErrCannotMessageSelf, http.StatusBadRequest},
	{util.ErrMediaTooLarge, http.StatusRequestEntityTooLarge},
}

// respondError 已知错误按语义返回，AI 错误统一为 generation failed，其余为 operation failed
func respondError(ctx *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			util.Error(ctx, e.status, err.Error())
			return
		}
	}
	if errors.Is(err, util.ErrGenerationFailed) || errors.Is(err, util.ErrAIResponseInvalid) {
		util.GenerationFailed(ctx, err)
		return
	}
	util.OperationFailed(ctx, err)
}

func currentClaims(ctx *gin.Context) *util.Claims {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
	}
	return claims
}

func queryInt(ctx *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(ctx.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func paramUint(ctx *gin.Context, key string) (uint, bool) {
	v, err := strconv.ParseUint(ctx.Param(key), 10, 64)
	if err != nil || v == 0 {
		util.BadRequest(ctx, "invalid "+key)
		return 0, false
	}
	return uint(v), true
}
