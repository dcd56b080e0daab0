package controller

import (
	"academy_backend/internal/service"
	"academy_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MissionController struct {
	Service *service.MissionService
	Probe   *service.ConnectivityProbe
}

func NewMissionController(svc *service.MissionService, probe *service.ConnectivityProbe) *MissionController {
	return &MissionController{Service: svc, Probe: probe}
}

// ToggleChecklistRequest 清单项勾选请求体
type ToggleChecklistRequest struct {
	Checked *bool `json:"checked" binding:"required"`
}

// @Summary 获取任务列表（含进度与可用性）
// @Tags 任务
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/missions [get]
func (c *MissionController) ListMissions(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	missions, err := c.Service.ListMissions(sctx)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"list": missions, "offline": !c.Probe.Reachable()})
}

// @Summary 获取任务进度
// @Tags 任务
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response{data=model.MissionProgress}
// @Router /api/missions/{id}/progress [get]
func (c *MissionController) GetProgress(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	progress, err := c.Service.GetProgress(sctx, ctx.Param("id"))
	if err != nil {
		handleDomainError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 开始任务
// @Tags 任务
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response{data=model.MissionProgress}
// @Router /api/missions/{id}/start [post]
func (c *MissionController) StartMission(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	progress, err := c.Service.StartMission(sctx, ctx.Param("id"))
	if err != nil {
		handleDomainError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 勾选/取消勾选清单项
// @Tags 任务
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Param itemId path string true "清单项ID"
// @Param body body ToggleChecklistRequest true "勾选状态"
// @Success 200 {object} util.Response{data=model.MissionProgress}
// @Router /api/missions/{id}/checklist/{itemId} [put]
func (c *MissionController) ToggleChecklistItem(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	var req ToggleChecklistRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	progress, err := c.Service.ToggleChecklistItem(sctx, ctx.Param("id"), ctx.Param("itemId"), *req.Checked)
	if err != nil {
		handleDomainError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 完成任务
// @Tags 任务
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response{data=service.MissionCompletion}
// @Router /api/missions/{id}/complete [post]
func (c *MissionController) CompleteMission(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	completion, err := c.Service.CompleteMission(sctx, ctx.Param("id"))
	if err != nil {
		handleDomainError(ctx, err)
		return
	}
	util.Success(ctx, completion)
}

// @Summary 标记任务使用过帮助
// @Tags 任务
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response{data=model.MissionProgress}
// @Router /api/missions/{id}/help [post]
func (c *MissionController) MarkHelpUsed(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	progress, err := c.Service.MarkHelpUsed(sctx, ctx.Param("id"))
	if err != nil {
		handleDomainError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}
