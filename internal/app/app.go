package app

import (
	"academy_backend/internal/config"
	"academy_backend/internal/controller"
	"academy_backend/internal/localstore"
	"academy_backend/internal/repository"
	"academy_backend/internal/service"
	"academy_backend/pkg/database"
	"academy_backend/pkg/logger"
	"academy_backend/pkg/monitoring"
	"academy_backend/pkg/security"
	"academy_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	LocalDB  *gorm.DB
	Redis    *redis.Client
	Probe    *service.ConnectivityProbe
	services *services

	cancelBackground context.CancelFunc
	configCallbacks  []func(*config.Config)
}

type repositories struct {
	progress *repository.ProgressRepository
	history  *repository.XPHistoryRepository
	lesson   *repository.LessonRepository
	mission  *repository.MissionRepository
	level    *repository.LevelRepository
}

type services struct {
	level    *service.LevelService
	progress *service.ProgressService
	lesson   *service.LessonService
	mission  *service.MissionService
}

type controllers struct {
	progress *controller.ProgressController
	lesson   *controller.LessonController
	mission  *controller.MissionController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新回调入口，由配置监听器触发
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Probe.SetInterval(time.Duration(cfg.Sync.ProbeIntervalSeconds) * time.Second)
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
	logger.Log.Info("Configuration reloaded",
		zap.Int("probeIntervalSeconds", cfg.Sync.ProbeIntervalSeconds))
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		progress: repository.NewProgressRepository(db),
		history:  repository.NewXPHistoryRepository(db),
		lesson:   repository.NewLessonRepository(db),
		mission:  repository.NewMissionRepository(db),
		level:    repository.NewLevelRepository(db),
	}
}

func (a *App) initServices(repos *repositories, local *localstore.Store, probe *service.ConnectivityProbe, rdb *redis.Client) *services {
	s := &services{}
	s.level = service.NewLevelService(repos.level, rdb)
	s.progress = service.NewProgressService(repos.progress, repos.history, repos.lesson, repos.mission, s.level, local, probe)
	s.lesson = service.NewLessonService(repos.lesson, s.progress, local, probe)
	s.mission = service.NewMissionService(repos.mission, s.progress, local, probe)

	// 连接恢复时整体重放积压的待发写入
	probe.OnRestore(s.progress.DrainAllOutbox)
	return s
}

func (a *App) initControllers(s *services, localDB *gorm.DB, probe *service.ConnectivityProbe) *controllers {
	return &controllers{
		progress: controller.NewProgressController(s.progress, s.level, probe),
		lesson:   controller.NewLessonController(s.lesson, probe),
		mission:  controller.NewMissionController(s.mission, probe),
		health:   controller.NewHealthController(localDB, probe),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg.Server.Mode)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize remote store", zap.Error(err))
	}

	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		// 远程库暂时不可达不阻塞启动，服务以离线模式运行
		if err := database.Migrate(db); err != nil {
			logger.Log.Warn("Remote store migration failed, starting in offline mode", zap.Error(err))
		} else {
			logger.Log.Info("Remote store migration completed")
		}
	}

	localDB, err := database.InitLocalDB(cfg.Cache.Path)
	if err != nil {
		logger.Log.Fatal("Failed to initialize local cache store", zap.Error(err))
	}
	local, err := localstore.NewStore(localDB)
	if err != nil {
		logger.Log.Fatal("Failed to migrate local cache store", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// Redis只承担等级目录缓存，缺席时直接走远程库
		logger.Log.Warn("Redis unavailable, level catalog caching disabled", zap.Error(err))
		rdb = nil
	}

	probe := service.NewConnectivityProbe(db,
		time.Duration(cfg.Sync.RemoteTimeoutSeconds)*time.Second,
		time.Duration(cfg.Sync.ProbeIntervalSeconds)*time.Second)

	app := &App{
		Config:  cfg,
		DB:      db,
		LocalDB: localDB,
		Redis:   rdb,
		Probe:   probe,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, local, probe, rdb)
	app.services = services
	controllers := app.initControllers(services, localDB, probe)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("academy-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	bgCtx, cancel := context.WithCancel(context.Background())
	app.cancelBackground = cancel
	go probe.Run(bgCtx)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if a.cancelBackground != nil {
		a.cancelBackground()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
