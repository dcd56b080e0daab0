package controller

import (
	"academy_backend/internal/model"
	"academy_backend/internal/service"
	"academy_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

// syncContext 从JWT声明与连通性探测构造本次请求的同步上下文
func syncContext(ctx *gin.Context, probe *service.ConnectivityProbe) (model.SyncContext, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return model.SyncContext{}, false
	}
	return model.SyncContext{
		TenantID:  user.TenantID,
		UserID:    user.UserID,
		Reachable: probe.Reachable(),
	}, true
}

// handleDomainError 业务错误到HTTP状态的映射：
// 前置条件未满足→409，资源不存在→404，其余按内部错误记录
func handleDomainError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPreconditionNotMet):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
