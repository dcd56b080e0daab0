package controller

import (
	"academy_backend/internal/service"
	"academy_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	LocalDB *gorm.DB
	Probe   *service.ConnectivityProbe
}

func NewHealthController(localDB *gorm.DB, probe *service.ConnectivityProbe) *HealthController {
	return &HealthController{LocalDB: localDB, Probe: probe}
}

// @Summary 健康检查
// @Description 检查服务状态；远程库不可达时服务降级运行而非不可用
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	localStatus := "up"
	if sqlDB, err := c.LocalDB.DB(); err != nil {
		localStatus = "down"
	} else if err := sqlDB.Ping(); err != nil {
		localStatus = "down"
	}

	remoteStatus := "up"
	status := "ok"
	if !c.Probe.Reachable() {
		remoteStatus = "down"
		status = "degraded"
	}
	if localStatus == "down" {
		status = "unhealthy"
	}

	util.Success(ctx, gin.H{
		"status": status,
		"components": gin.H{
			"remote_store": remoteStatus,
			"local_cache":  localStatus,
		},
	})
}
