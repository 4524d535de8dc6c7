package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sage_edu_backend/internal/config"
	"sage_edu_backend/internal/controller"
	"sage_edu_backend/internal/middleware"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/service"
	"sage_edu_backend/pkg/configwatcher"
	"sage_edu_backend/pkg/database"
	"sage_edu_backend/pkg/logger"
	"sage_edu_backend/pkg/monitoring"
	"sage_edu_backend/pkg/security"
	"sage_edu_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	course     *repository.CourseRepository
	module     *repository.CourseModuleRepository
	achieve    *repository.AchievementRepository
	completion *repository.CompletionRepository
	message    *repository.MessageRepository
	tutor      *repository.TutorRepository
}

type services struct {
	auth        *service.AuthService
	user        *service.UserService
	storage     *service.StorageService
	ai          *service.AIService
	builder     *service.CourseBuilderService
	builderHub  *service.BuilderHub
	course      *service.CourseService
	media       *service.MediaService
	generation  *service.GenerationService
	tutor       *service.TutorService
	analytics   *service.AnalyticsService
	achievement *service.AchievementService
	message     *service.MessageService
	dashboard   *service.DashboardService
	scheduler   *service.PublishScheduler
}

type controllers struct {
	auth        *controller.AuthController
	user        *controller.UserController
	course      *controller.CourseController
	builder     *controller.CourseBuilderController
	ai          *controller.AIController
	analytics   *controller.AnalyticsController
	achievement *controller.AchievementController
	message     *controller.MessageController
	dashboard   *controller.DashboardController
	health      *controller.HealthController
}

// RegisterConfigCallback 配置热更新时回调
func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 由配置监听器调用，只更新可热更新的部分
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		course:     repository.NewCourseRepository(db),
		module:     repository.NewCourseModuleRepository(db),
		achieve:    repository.NewAchievementRepository(db),
		completion: repository.NewCompletionRepository(db),
		message:    repository.NewMessageRepository(db),
		tutor:      repository.NewTutorRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.ai = service.NewAIService(cfg.AI)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user)

	s.builder = service.NewCourseBuilderService(repos.module, repos.course, rdb, cfg)
	s.builderHub = service.NewBuilderHub(rdb, s.builder)
	go s.builderHub.Run()

	s.course = service.NewCourseService(repos.course, repos.module, s.builder)
	s.media = service.NewMediaService(s.builder, s.storage)
	s.generation = service.NewGenerationService(s.ai, s.builder, repos.course)
	s.tutor = service.NewTutorService(s.ai, repos.tutor, repos.module)
	s.analytics = service.NewAnalyticsService(s.ai, repos.completion, repos.module, repos.user)
	s.achievement = service.NewAchievementService(db, repos.achieve, repos.completion, repos.user, repos.module, repos.course, cfg)
	s.message = service.NewMessageService(repos.message, repos.user)
	s.dashboard = service.NewDashboardService(s.achievement, s.course, repos.completion, repos.message)
	s.scheduler = service.NewPublishScheduler(s.course)

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.ai.UpdateConfig(newCfg.AI)
		logger.Log.Info("AI client settings reloaded", zap.String("model", newCfg.AI.Model))
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth, s.user),
		user:        controller.NewUserController(s.user),
		course:      controller.NewCourseController(s.course),
		builder:     controller.NewCourseBuilderController(s.builder, s.media, s.builderHub),
		ai:          controller.NewAIController(s.generation, s.tutor),
		analytics:   controller.NewAnalyticsController(s.analytics),
		achievement: controller.NewAchievementController(s.achievement),
		message:     controller.NewMessageController(s.message),
		dashboard:   controller.NewDashboardController(s.dashboard),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit, "/api/health", "/metrics"))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.Server.Mode != "release" || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("sage-edu-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing, continuing without it", zap.Error(err))
			cfg.Tracing.Enabled = false
		} else {
			app.tracer = tp
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	if err := services.scheduler.Start(); err != nil {
		logger.Log.Error("Failed to start publish scheduler", zap.Error(err))
	}

	return app
}

func (a *App) Run(configFile string) {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if configFile != "" {
		if err := configwatcher.WatchConfig(watchCtx, configFile, a.ApplyConfig); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// 先关闭编辑器连接，再停止定时任务
	if a.services != nil {
		a.services.builderHub.Stop()
		a.services.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
	_ = logger.Log.Sync()
}
