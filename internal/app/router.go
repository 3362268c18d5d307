package app

import (
	"portfolio_backend/docs"
	"portfolio_backend/internal/config"
	"portfolio_backend/internal/middleware"
	"portfolio_backend/internal/model"
	"portfolio_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret, "/api/evidence/:id/file"))
	{
		a.registerCandidateRoutes(authGroup, c)
		a.registerAssessorRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerCandidateRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/profile", c.auth.Profile)

	quals := group.Group("/qualifications")
	{
		quals.GET("", c.portfolio.ListQualifications)
		quals.GET("/:qualification/units", c.portfolio.ListUnits)
		quals.GET("/:qualification/stats", c.portfolio.GetStats)
		quals.GET("/:qualification/progress", c.portfolio.GetProgress)
		quals.POST("/:qualification/compile", c.portfolio.Compile)
	}

	evidence := group.Group("/evidence")
	{
		evidence.GET("", c.evidence.ListEvidence)
		evidence.POST("", c.evidence.UploadEvidence)
		evidence.GET("/:id", c.evidence.GetEvidence)
		evidence.DELETE("/:id", c.evidence.DeleteEvidence)
		evidence.GET("/:id/file", c.evidence.DownloadEvidence)
		evidence.PUT("/:id/file", c.evidence.ResubmitEvidence)
	}

	group.GET("/files/:name", c.file.Download)
}

func (a *App) registerAssessorRoutes(group *gin.RouterGroup, c *controllers) {
	assessor := group.Group("/assessor")
	assessor.Use(middleware.RoleMiddleware(model.Assessor))
	{
		assessor.GET("/evidence/pending", c.evidence.ListPending)
		assessor.POST("/evidence/:id/feedback", c.evidence.SubmitFeedback)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/users", c.auth.CreateUser)
	}
}
