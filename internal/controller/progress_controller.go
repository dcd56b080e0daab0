package controller

import (
	"academy_backend/internal/service"
	"academy_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	Service *service.ProgressService
	Levels  *service.LevelService
	Probe   *service.ConnectivityProbe
}

func NewProgressController(svc *service.ProgressService, levels *service.LevelService, probe *service.ConnectivityProbe) *ProgressController {
	return &ProgressController{Service: svc, Levels: levels, Probe: probe}
}

// AddXPRequest XP发放请求体
type AddXPRequest struct {
	Amount      int    `json:"amount" binding:"min=0"`
	SourceType  string `json:"sourceType" binding:"required,oneof=lesson course mission badge streak bonus"`
	SourceID    string `json:"sourceId"`
	Description string `json:"description"`
}

// @Summary 获取学习进度
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.UserProgress}
// @Router /api/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	progress, err := c.Service.GetProgress(sctx)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"progress": progress, "offline": !sctx.Reachable})
}

// @Summary 发放XP
// @Tags 进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body AddXPRequest true "XP奖励"
// @Success 200 {object} util.Response{data=model.XPAwardResult}
// @Router /api/progress/xp [post]
func (c *ProgressController) AddXP(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	var req AddXPRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.Service.AddXP(sctx, req.Amount, req.SourceType, req.SourceID, req.Description)
	if err != nil {
		handleDomainError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 获取连续学习天数
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.Streak}
// @Router /api/progress/streak [get]
func (c *ProgressController) GetStreak(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	streak, err := c.Service.GetStreak(sctx)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, streak)
}

// @Summary 获取仪表盘统计
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.UserStats}
// @Router /api/progress/stats [get]
func (c *ProgressController) GetStats(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	stats, err := c.Service.GetStats(sctx)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 获取XP流水
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Param limit query int false "条数上限" default(50)
// @Success 200 {object} util.Response
// @Router /api/progress/history [get]
func (c *ProgressController) GetXPHistory(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(util.DefaultXPHistoryLimit)))
	entries, err := c.Service.GetXPHistory(sctx, limit)
	if err != nil {
		// 流水只存远程，离线不是硬错误，返回空列表加离线标记
		if errors.Is(err, util.ErrRemoteUnreachable) {
			util.Success(ctx, gin.H{"list": []interface{}{}, "offline": true})
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"list": entries, "offline": false})
}

// @Summary 获取等级目录
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/levels [get]
func (c *ProgressController) GetLevels(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	util.Success(ctx, c.Levels.GetLevels(sctx))
}

// @Summary 触发同步对账
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.UserProgress}
// @Router /api/progress/sync [post]
func (c *ProgressController) Sync(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	progress, err := c.Service.Refresh(sctx)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"progress": progress, "offline": !c.Probe.Reachable()})
}

// @Summary 清空本地缓存
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/progress/local [delete]
func (c *ProgressController) ResetLocal(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	if err := c.Service.ResetLocal(sctx); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
