package app

import (
	"academy_backend/docs"
	"academy_backend/internal/config"
	"academy_backend/internal/middleware"

	"academy_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerProgressRoutes(authGroup, c)
		a.registerLessonRoutes(authGroup, c)
		a.registerMissionRoutes(authGroup, c)
	}
}

func (a *App) registerProgressRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/levels", c.progress.GetLevels)

	progress := rg.Group("/progress")
	{
		progress.GET("", c.progress.GetProgress)
		progress.POST("/xp", c.progress.AddXP)
		progress.GET("/streak", c.progress.GetStreak)
		progress.GET("/stats", c.progress.GetStats)
		progress.GET("/history", c.progress.GetXPHistory)
		progress.POST("/sync", c.progress.Sync)
		progress.DELETE("/local", c.progress.ResetLocal)
	}
}

func (a *App) registerLessonRoutes(rg *gin.RouterGroup, c *controllers) {
	lessons := rg.Group("/lessons")
	{
		lessons.GET("", c.lesson.ListLessons)
		lessons.GET("/:id/progress", c.lesson.GetProgress)
		lessons.PUT("/:id/video", c.lesson.RecordVideoProgress)
		lessons.POST("/:id/quiz", c.lesson.SubmitQuiz)
	}
}

func (a *App) registerMissionRoutes(rg *gin.RouterGroup, c *controllers) {
	missions := rg.Group("/missions")
	{
		missions.GET("", c.mission.ListMissions)
		missions.GET("/:id/progress", c.mission.GetProgress)
		missions.POST("/:id/start", c.mission.StartMission)
		missions.PUT("/:id/checklist/:itemId", c.mission.ToggleChecklistItem)
		missions.POST("/:id/complete", c.mission.CompleteMission)
		missions.POST("/:id/help", c.mission.MarkHelpUsed)
	}
}
