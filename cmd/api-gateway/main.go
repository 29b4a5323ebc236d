package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/jobhive/jobhive-api/api/swagger"
	"github.com/jobhive/jobhive-api/internal/handler"
	"github.com/jobhive/jobhive-api/internal/middleware"
	"github.com/jobhive/jobhive-api/internal/models"
	"github.com/jobhive/jobhive-api/internal/repository"
	"github.com/jobhive/jobhive-api/internal/service"
	"github.com/jobhive/jobhive-api/pkg/cache"
	"github.com/jobhive/jobhive-api/pkg/config"
	"github.com/jobhive/jobhive-api/pkg/database"
	"github.com/jobhive/jobhive-api/pkg/jobs"
	"github.com/jobhive/jobhive-api/pkg/logger"
	corsmiddleware "github.com/jobhive/jobhive-api/pkg/middleware/cors"
	reqidmiddleware "github.com/jobhive/jobhive-api/pkg/middleware/requestid"
	"github.com/jobhive/jobhive-api/pkg/password"
	"github.com/jobhive/jobhive-api/pkg/ratelimit"
	"github.com/jobhive/jobhive-api/pkg/token"
)

// @title JobHive API
// @version 1.0.0
// @description Credential and session lifecycle endpoints for the JobHive marketplace
// @BasePath /api/v1
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		if cfg.RateLimit.UseRedis {
			limiterStore = ratelimit.NewRedisStore(redisClient, "ratelimit")
		}
	}
	limiter := ratelimit.NewLimiter(limiterStore)

	users := repository.NewUserRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)
	profiles := repository.NewProfileRepository(db)
	audits := repository.NewAuditRepository(db)

	codec := token.NewCodec(cfg.JWT.Secret, cfg.JWT.Issuer)
	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	notifyQueue := service.NewNotifyQueue(service.NewLogNotifier(logr), jobs.QueueConfig{
		Workers: 2,
		Logger:  logr,
	})
	notifyQueue.Start(context.Background())
	defer notifyQueue.Stop()
	notifier := service.NewQueueNotifier(notifyQueue)

	authSvc := service.NewAuthService(users, tokens, profiles, notifier, password.Hasher{}, codec, validate, logr, service.AuthConfig{
		AccessTTL:    cfg.JWT.AccessTTL,
		RefreshTTL:   cfg.JWT.RefreshTTL,
		ResetTTL:     cfg.JWT.ResetTTL,
		ResetBaseURL: cfg.JWT.ResetBaseURL,
	})

	authHandler := handler.NewAuthHandler(authSvc, metricsSvc, cfg.OAuth)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	guards := middleware.NewGuards(limiter, cfg.RateLimit, metricsSvc, logr)
	authGuard := guards.Bucket("auth")
	apiGuard := guards.Bucket("api")
	authed := middleware.JWT(authSvc, metricsSvc)

	api := r.Group(cfg.APIPrefix)
	auth := api.Group("/auth")
	{
		// Credential endpoints share the strict auth budget.
		auth.POST("/register", authGuard, middleware.Audit(audits, models.AuditActionRegister), authHandler.Register)
		auth.POST("/login", authGuard, middleware.Audit(audits, models.AuditActionLogin), authHandler.Login)
		auth.POST("/refresh", authGuard, middleware.Audit(audits, models.AuditActionRefresh), authHandler.Refresh)
		auth.POST("/forgot-password", authGuard, authHandler.ForgotPassword)
		auth.POST("/reset-password", authGuard, middleware.Audit(audits, models.AuditActionPasswordReset), authHandler.ResetPassword)
		auth.GET("/oauth/google", authGuard, authHandler.GoogleOAuth)

		auth.POST("/logout", apiGuard, authed, middleware.Audit(audits, models.AuditActionLogout), authHandler.Logout)
		auth.POST("/change-password", authGuard, authed, middleware.Audit(audits, models.AuditActionPasswordChange), authHandler.ChangePassword)
		auth.GET("/me", apiGuard, authed, authHandler.Me)
		auth.DELETE("/account", apiGuard, authed, middleware.Audit(audits, models.AuditActionAccountDelete), authHandler.DeleteAccount)
		auth.GET("/export", apiGuard, authed, authHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
