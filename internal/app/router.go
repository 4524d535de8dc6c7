package app

import (
	"sage_edu_backend/docs"
	"sage_edu_backend/internal/config"
	"sage_edu_backend/internal/middleware"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 学生/通用 授权接口
		registerStudentRoutes(authGroup, c)

		// 教师相关接口
		registerTeacherRoutes(authGroup, c)
	}
}

func registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.GET("/modules/types", c.builder.ModuleTypes)

		// 课程浏览：可选认证，课程负责人能看到未发布内容
		public.GET("/courses", c.course.ListCourses)
		public.GET("/courses/:id", middleware.TryAuthMiddleware(cfg), c.course.GetCourse)
	}
}

func registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)
	rg.PUT("/user/profile", c.user.UpdateProfile)
	rg.GET("/dashboard", c.dashboard.GetDashboard)

	// 学习进度与成就
	rg.POST("/modules/:id/complete", c.achievement.CompleteModule)
	rg.GET("/achievements", c.achievement.GetUserAchievements)
	rg.GET("/achievements/leaderboard", c.achievement.GetLeaderboard)

	// 分析
	rg.GET("/analytics/stats", c.analytics.GetStats)
	rg.GET("/analytics/insights", c.analytics.GetInsights)
	rg.GET("/analytics/adaptive", c.analytics.GetAdaptive)

	// AI
	ai := rg.Group("/ai")
	{
		ai.POST("/generate", c.ai.Generate)
		ai.POST("/tutor/ask", c.ai.TutorAsk)
		ai.GET("/tutor/history", c.ai.TutorHistory)
		ai.GET("/tutor/sessions", c.ai.TutorSessions)
	}

	// 私信
	messages := rg.Group("/messages")
	{
		messages.POST("", c.message.SendMessage)
		messages.GET("/unread", c.message.UnreadCount)
		messages.GET("/conversations", c.message.GetConversations)
		messages.GET("/conversations/:userId", c.message.GetConversation)
		messages.PUT("/conversations/:userId/read", c.message.MarkRead)
	}
}

func registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.GET("/courses", c.course.ListMyCourses)
		teacher.POST("/courses", c.course.CreateCourse)
		teacher.PUT("/courses/:id", c.course.UpdateCourse)
		teacher.DELETE("/courses/:id", c.course.DeleteCourse)
		teacher.POST("/courses/:id/publish", c.course.PublishCourse)

		// 课程编辑器
		teacher.GET("/courses/:id/timeline", c.builder.GetTimeline)
		teacher.GET("/courses/:id/modules", c.builder.ListModules)
		teacher.POST("/courses/:id/modules", c.builder.CreateModule)
		teacher.GET("/courses/:id/builder/ws", c.builder.HandleWS)
		teacher.PATCH("/modules/:id", c.builder.UpdateModule)
		teacher.PUT("/modules/:id/position", c.builder.MoveModule)
		teacher.DELETE("/modules/:id", c.builder.DeleteModule)
		teacher.POST("/modules/:id/media", c.builder.UploadMedia)
	}
}
