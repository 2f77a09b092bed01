package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/adapter/notification"
	"galera-cd/internal/api/handler"
	"galera-cd/internal/api/middleware"
	"galera-cd/internal/core"
	"galera-cd/internal/core/capacity"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/pkg/config"
	"galera-cd/internal/pkg/crypto"
	"galera-cd/internal/repository"
	"galera-cd/internal/service"
)

// Services 路由依赖的服务
type Services struct {
	Preflight  service.PreflightService
	Deployment service.DeploymentService
	Template   service.TemplateService
	User       service.UserService
	Sweeper    handler.Sweeper
}

// NewServices 组装服务层
func NewServices(cfg *config.Config, db *gorm.DB, engine *core.CoreEngine, exec executor.Executor,
	notifier notification.Notifier, sealer *crypto.Sealer, logger *zap.Logger) *Services {
	deploymentRepo := repository.NewDeploymentRepository(db)
	preflightRepo := repository.NewPreflightRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	userRepo := repository.NewUserRepository(db)

	return &Services{
		Preflight: service.NewPreflightService(preflightRepo, exec, cfg.Executor.PreflightJob, logger.Named("preflight")),
		Deployment: service.NewDeploymentService(service.DeploymentDeps{
			DB:          db,
			Deployments: deploymentRepo,
			Preflights:  preflightRepo,
			Templates:   templateRepo,
			Executor:    exec,
			Transitions: engine.StateMachine(),
			Tracker:     engine,
			Notifier:    notifier,
			Sealer:      sealer,
			Resolver:    capacity.NewResolver(cfg.Core.CapacityFloorGB),
			JobName:     cfg.Executor.DeployJob,
			Logger:      logger.Named("deployment"),
		}),
		Template: service.NewTemplateService(templateRepo, notifier, logger.Named("template")),
		User:     service.NewUserService(userRepo, logger.Named("user")),
		Sweeper:  engine,
	}
}

// Setup 设置路由
func Setup(cfg *config.Config, svc *Services) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(&cfg.CORS))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authHandler := handler.NewAuthHandler(svc.User)
	preflightHandler := handler.NewPreflightHandler(svc.Preflight)
	deploymentHandler := handler.NewDeploymentHandler(svc.Deployment)
	templateHandler := handler.NewTemplateHandler(svc.Template)
	reconcileHandler := handler.NewReconcileHandler(svc.Sweeper)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/refresh", authHandler.Refresh)

		// 执行器回调, 不走 JWT
		v1.POST("/preflight/:id/complete", middleware.CallbackToken(cfg.Callback.Token), preflightHandler.Complete)

		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(svc.User))
		{
			authed.GET("/auth/me", authHandler.GetMe)

			preflight := authed.Group("/preflight")
			{
				preflight.POST("", middleware.RequirePermission(auth.PermPreflightCreate), preflightHandler.Start)
				preflight.GET("/:id", middleware.RequirePermission(auth.PermPreflightView), preflightHandler.Get)
			}

			deployments := authed.Group("/deployments")
			{
				deployments.POST("", middleware.RequirePermission(auth.PermDeploymentCreate), deploymentHandler.Submit)
				deployments.GET("", middleware.RequirePermission(auth.PermDeploymentView), deploymentHandler.History)
				deployments.GET("/:id", middleware.RequirePermission(auth.PermDeploymentView), deploymentHandler.Get)
				deployments.GET("/:id/logs", middleware.RequirePermission(auth.PermDeploymentView), deploymentHandler.Logs)
				deployments.POST("/:id/approve", middleware.RequirePermission(auth.PermDeploymentApprove), deploymentHandler.Approve)
				deployments.POST("/:id/reject", middleware.RequirePermission(auth.PermDeploymentApprove), deploymentHandler.Reject)
				deployments.POST("/:id/cancel", middleware.RequirePermission(auth.PermDeploymentCancel), deploymentHandler.Cancel)
			}

			templates := authed.Group("/templates")
			{
				templates.GET("", middleware.RequirePermission(auth.PermTemplateView), templateHandler.List)
				templates.GET("/:id", middleware.RequirePermission(auth.PermTemplateView), templateHandler.Get)
				templates.POST("", middleware.RequirePermission(auth.PermTemplateWrite), templateHandler.Create)
				templates.PUT("/:id", middleware.RequirePermission(auth.PermTemplateWrite), templateHandler.Update)
				templates.POST("/:id/duplicate", middleware.RequirePermission(auth.PermTemplateWrite), templateHandler.Duplicate)
				templates.POST("/:id/approve", middleware.RequirePermission(auth.PermTemplateApprove), templateHandler.Approve)
				templates.POST("/:id/reject", middleware.RequirePermission(auth.PermTemplateApprove), templateHandler.Reject)
				templates.DELETE("/:id", middleware.RequirePermission(auth.PermTemplateDelete), templateHandler.Delete)
			}

			authed.POST("/admin/reconcile", middleware.RequirePermission(auth.PermReconcileRun), reconcileHandler.Run)
		}
	}

	return r
}
