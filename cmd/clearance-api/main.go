package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/unihub-dev/clearance-api/api/swagger"
	"github.com/unihub-dev/clearance-api/internal/handler"
	"github.com/unihub-dev/clearance-api/internal/middleware"
	"github.com/unihub-dev/clearance-api/internal/models"
	"github.com/unihub-dev/clearance-api/internal/repository"
	"github.com/unihub-dev/clearance-api/internal/service"
	rediscache "github.com/unihub-dev/clearance-api/pkg/cache"
	"github.com/unihub-dev/clearance-api/pkg/config"
	"github.com/unihub-dev/clearance-api/pkg/database"
	"github.com/unihub-dev/clearance-api/pkg/jobs"
	"github.com/unihub-dev/clearance-api/pkg/logger"
	corsmiddleware "github.com/unihub-dev/clearance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unihub-dev/clearance-api/pkg/middleware/requestid"
)

// @title Clearance Management API
// @version 1.0.0
// @description University clearance request lifecycle, review and reporting API
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewClearanceRequestRepository(db)
	typeRepo := repository.NewClearanceTypeRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	cacheRepo := repository.NewRedisCacheRepository(redisClient)

	// Services.
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthServiceConfig{
		JWTSecret:         cfg.JWT.Secret,
		Expiration:        cfg.JWT.Expiration,
		RefreshExpiration: cfg.JWT.RefreshExpiration,
	})
	userService := service.NewUserService(userRepo, validate, logr)
	requestService := service.NewClearanceRequestService(requestRepo, userRepo, typeRepo, userRepo, validate, logr, service.ClearanceRequestServiceConfig{
		IDPrefix:     cfg.Requests.IDPrefix,
		IDRetryLimit: cfg.Requests.IDRetryLimit,
	})
	typeService := service.NewClearanceTypeService(typeRepo, userRepo, validate, logr)
	dashboardService := service.NewDashboardService(analyticsRepo, requestRepo, typeRepo, userRepo, cacheRepo, logr, service.DashboardServiceConfig{
		CacheEnabled: cfg.Dashboard.CacheEnabled,
		CacheTTL:     cfg.Dashboard.CacheTTL,
		TrendWeeks:   cfg.Dashboard.TrendWeeks,
	})
	notificationService := service.NewNotificationService(requestRepo, userRepo, logr, service.NotificationServiceConfig{
		LookbackDays: cfg.Notifications.LookbackDays,
		MaxItems:     cfg.Notifications.MaxItems,
	})
	configService := service.NewConfigurationService(configRepo, userRepo, validate, logr)
	exportService := service.NewExportService(requestRepo, userRepo, cacheRepo, logr, service.ExportServiceConfig{
		StorageDir:     cfg.Exports.StorageDir,
		AsyncThreshold: cfg.Exports.AsyncThreshold,
	})

	exportQueue := jobs.NewQueue("exports", exportService.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportService.BindQueue(exportQueue)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportQueue.Start(rootCtx)
	defer exportQueue.Stop()

	// Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := middleware.NewHTTPMetrics(registry)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	requestHandler := handler.NewClearanceRequestHandler(requestService, httpMetrics)
	typeHandler := handler.NewClearanceTypeHandler(typeService, userService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	configHandler := handler.NewConfigurationHandler(configService)
	exportHandler := handler.NewExportHandler(exportService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(middleware.RequestLogger(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(httpMetrics.Handler())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWTAuth(authService), authHandler.Logout)
		auth.PUT("/password", middleware.JWTAuth(authService), authHandler.ChangePassword)
	}

	secured := api.Group("")
	secured.Use(middleware.JWTAuth(authService))
	{
		requests := secured.Group("/requests")
		{
			requests.POST("", middleware.RequireRoles(models.RoleStudent), requestHandler.Submit)
			requests.GET("", requestHandler.List)
			requests.GET("/:id", requestHandler.Get)
			requests.POST("/:id/decision", middleware.RequireRoles(models.RoleOfficer, models.RoleAdmin), requestHandler.Decide)
			requests.POST("/bulk-decision", middleware.RequireRoles(models.RoleOfficer, models.RoleAdmin), requestHandler.DecideBulk)
		}

		types := secured.Group("/clearance-types")
		{
			types.GET("", typeHandler.List)
			types.GET("/eligible", middleware.RequireRoles(models.RoleStudent), typeHandler.Eligible)
			types.GET("/:id", typeHandler.Get)
			types.POST("", middleware.RequireRoles(models.RoleAdmin), typeHandler.Create)
			types.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), typeHandler.Update)
			types.PATCH("/:id/active", middleware.RequireRoles(models.RoleAdmin), typeHandler.SetActive)
		}

		dashboard := secured.Group("/dashboard")
		{
			dashboard.GET("/overview", middleware.RequireRoles(models.RoleOfficer, models.RoleAdmin), dashboardHandler.Overview)
			dashboard.GET("/progress", middleware.RequireRoles(models.RoleStudent), dashboardHandler.MyProgress)
		}
		secured.GET("/students/:id/progress", middleware.RequireRoles(models.RoleOfficer, models.RoleAdmin), dashboardHandler.StudentProgress)

		secured.GET("/notifications", notificationHandler.List)

		exports := secured.Group("/exports", middleware.RequireRoles(models.RoleOfficer, models.RoleAdmin))
		{
			exports.GET("/requests", exportHandler.Generate)
			exports.GET("/jobs/:id", exportHandler.JobStatus)
		}

		admin := secured.Group("", middleware.RequireRoles(models.RoleAdmin))
		{
			admin.GET("/users", userHandler.List)
			admin.POST("/users", userHandler.Create)
			admin.PUT("/users/:id", userHandler.Update)
			admin.GET("/users/students/:id", userHandler.GetStudent)
			admin.GET("/users/officers/:id", userHandler.GetOfficer)
			admin.GET("/audit-logs", userHandler.AuditTrail)
			admin.GET("/configuration", configHandler.List)
			admin.GET("/configuration/:key", configHandler.Get)
			admin.PUT("/configuration/:key", configHandler.Update)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
