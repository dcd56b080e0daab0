package controller

import (
	"academy_backend/internal/service"
	"academy_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LessonController struct {
	Service *service.LessonService
	Probe   *service.ConnectivityProbe
}

func NewLessonController(svc *service.LessonService, probe *service.ConnectivityProbe) *LessonController {
	return &LessonController{Service: svc, Probe: probe}
}

// VideoProgressRequest 视频播放位置上报
type VideoProgressRequest struct {
	CurrentTime float64 `json:"currentTime" binding:"min=0"`
}

// SubmitQuizRequest 测验提交
type SubmitQuizRequest struct {
	Score int `json:"score" binding:"min=0,max=100"`
}

// @Summary 获取课时目录
// @Tags 课时
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/lessons [get]
func (c *LessonController) ListLessons(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	lessons, err := c.Service.ListLessons(sctx)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"list": lessons, "offline": !c.Probe.Reachable()})
}

// @Summary 获取课时进度
// @Tags 课时
// @Produce json
// @Security BearerAuth
// @Param id path string true "课时ID"
// @Success 200 {object} util.Response{data=model.LessonProgress}
// @Router /api/lessons/{id}/progress [get]
func (c *LessonController) GetProgress(ctx *gin.Context) {
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

// @Summary 上报视频播放位置
// @Tags 课时
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "课时ID"
// @Param body body VideoProgressRequest true "播放位置（秒）"
// @Success 200 {object} util.Response{data=model.LessonProgress}
// @Router /api/lessons/{id}/video [put]
func (c *LessonController) RecordVideoProgress(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	var req VideoProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	progress, err := c.Service.RecordVideoProgress(sctx, ctx.Param("id"), req.CurrentTime)
	if err != nil {
		handleDomainError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 提交课时测验
// @Tags 课时
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "课时ID"
// @Param body body SubmitQuizRequest true "测验分数（百分制）"
// @Success 200 {object} util.Response{data=service.QuizOutcome}
// @Router /api/lessons/{id}/quiz [post]
func (c *LessonController) SubmitQuiz(ctx *gin.Context) {
	sctx, ok := syncContext(ctx, c.Probe)
	if !ok {
		return
	}
	var req SubmitQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	outcome, err := c.Service.SubmitQuiz(sctx, ctx.Param("id"), req.Score)
	if err != nil {
		handleDomainError(ctx, err)
		return
	}
	util.Success(ctx, outcome)
}
