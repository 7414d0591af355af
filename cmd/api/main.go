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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/dulcevicio/course-api/api/swagger"
	"github.com/dulcevicio/course-api/internal/handler"
	"github.com/dulcevicio/course-api/internal/middleware"
	"github.com/dulcevicio/course-api/internal/models"
	"github.com/dulcevicio/course-api/internal/repository"
	"github.com/dulcevicio/course-api/internal/service"
	"github.com/dulcevicio/course-api/pkg/cache"
	"github.com/dulcevicio/course-api/pkg/config"
	"github.com/dulcevicio/course-api/pkg/database"
	"github.com/dulcevicio/course-api/pkg/export"
	"github.com/dulcevicio/course-api/pkg/logger"
	corsmiddleware "github.com/dulcevicio/course-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dulcevicio/course-api/pkg/middleware/requestid"
	"github.com/dulcevicio/course-api/pkg/storage"
)

// @title Course Platform API
// @version 1.0.0
// @description REST backend for the online course platform
// @BasePath /api/v1
// @schemes http
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	store, err := storage.NewLocalStorage(cfg.Storage.BaseDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	metricsSvc := service.NewMetricsService()

	// The catalog cache is optional: a missing Redis only disables it.
	var cacheRepo service.CacheRepository
	cacheEnabled := false
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			cacheEnabled = true
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cacheEnabled)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, store, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, lessonRepo, cacheSvc, store, validate, logr)
	lessonSvc := service.NewLessonService(lessonRepo, courseRepo, courseSvc, store, validate, logr)
	accessSvc := service.NewAccessService(enrollmentRepo, logr)
	certificateSvc := service.NewCertificateService(enrollmentRepo, export.NewCertificateRenderer(), store, metricsSvc, logr,
		cfg.Certificates.WorkerConcurrency, cfg.Certificates.WorkerRetries)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, userRepo, courseRepo, lessonRepo, courseRepo,
		certificateSvc, auditRepo, metricsSvc, validate, logr)
	reviewSvc := service.NewReviewService(reviewRepo, accessSvc, courseRepo, validate, logr)
	auditSvc := service.NewAuditService(auditRepo, logr)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	certificateSvc.Start(rootCtx)
	defer certificateSvc.Stop()

	if cfg.ExpirySweep.Enabled {
		sweeper := service.NewExpirySweeper(enrollmentRepo, logr)
		if err := sweeper.Start(cfg.ExpirySweep.Schedule); err != nil {
			logr.Sugar().Fatalw("failed to start expiry sweep", "error", err)
		}
		defer sweeper.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, lessonSvc, accessSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	downloadHandler := handler.NewDownloadHandler(enrollmentSvc, signer, store, cfg.APIPrefix)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.MaxMultipartMemory = cfg.Storage.MaxUploadBytes

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	r.Static("/static", cfg.Storage.BaseDir)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), authSvc,
		authHandler, userHandler, courseHandler, lessonHandler,
		enrollmentHandler, reviewHandler, auditHandler, downloadHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func registerRoutes(api *gin.RouterGroup, authSvc *service.AuthService,
	auth *handler.AuthHandler, users *handler.UserHandler, courses *handler.CourseHandler,
	lessons *handler.LessonHandler, enrollments *handler.EnrollmentHandler,
	reviews *handler.ReviewHandler, audit *handler.AuditHandler, downloads *handler.DownloadHandler) {

	authenticated := middleware.JWT(authSvc)
	optional := middleware.OptionalJWT(authSvc)
	moderator := middleware.MinRole(models.RoleModerator)
	admin := middleware.MinRole(models.RoleAdmin)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", auth.Register)
		authGroup.POST("/login", auth.Login)
		authGroup.GET("/me", authenticated, auth.Me)
		authGroup.PUT("/password", authenticated, auth.ChangePassword)
	}

	userGroup := api.Group("/users", authenticated)
	{
		userGroup.GET("", moderator, users.List)
		userGroup.POST("", admin, users.Create)
		userGroup.GET("/:id", users.Get)
		userGroup.PUT("/:id", users.Update)
		userGroup.DELETE("/:id", admin, users.Delete)
		userGroup.POST("/me/avatar", users.UploadAvatar)
	}

	courseGroup := api.Group("/courses")
	{
		courseGroup.GET("", optional, courses.List)
		courseGroup.GET("/slug/:slug", courses.GetBySlug)
		courseGroup.GET("/:id", optional, courses.Get)
		courseGroup.POST("", authenticated, admin, courses.Create)
		courseGroup.PUT("/:id", authenticated, moderator, courses.Update)
		courseGroup.PUT("/:id/status", authenticated, admin, courses.UpdateStatus)
		courseGroup.POST("/:id/cover", authenticated, moderator, courses.UploadCover)
		courseGroup.DELETE("/:id", authenticated, admin, courses.Delete)
		courseGroup.GET("/:id/access", authenticated, courses.CheckAccess)

		courseGroup.GET("/:id/lessons", optional, courses.ListLessons)
		courseGroup.GET("/:id/lessons/:lessonId", authenticated, moderator, lessons.Get)
		courseGroup.POST("/:id/lessons", authenticated, moderator, lessons.Create)
		courseGroup.PUT("/:id/lessons/:lessonId", authenticated, moderator, lessons.Update)
		courseGroup.PUT("/:id/lessons/:lessonId/reorder", authenticated, moderator, lessons.Reorder)
		courseGroup.DELETE("/:id/lessons/:lessonId", authenticated, moderator, lessons.Delete)
		courseGroup.POST("/:id/lessons/:lessonId/materials", authenticated, moderator, lessons.AddMaterial)
		courseGroup.DELETE("/:id/lessons/:lessonId/materials", authenticated, moderator, lessons.ClearMaterials)

		courseGroup.GET("/:id/reviews", optional, reviews.ListByCourse)
		courseGroup.POST("/:id/reviews", authenticated, reviews.Create)
	}

	reviewGroup := api.Group("/reviews", authenticated)
	{
		reviewGroup.POST("/:reviewId/approve", moderator, reviews.Approve)
		reviewGroup.DELETE("/:reviewId", reviews.Delete)
	}

	enrollmentGroup := api.Group("/enrollments", authenticated)
	{
		enrollmentGroup.GET("", moderator, enrollments.List)
		enrollmentGroup.GET("/me", enrollments.ListMine)
		enrollmentGroup.POST("", admin, enrollments.Create)
		enrollmentGroup.GET("/:id", enrollments.Get)
		enrollmentGroup.PUT("/:id/progress", enrollments.UpdateProgress)
		enrollmentGroup.POST("/:id/extend", admin, enrollments.Extend)
		enrollmentGroup.POST("/:id/cancel", admin, enrollments.Cancel)
		enrollmentGroup.POST("/:id/complete", enrollments.Complete)
		enrollmentGroup.GET("/:id/certificate", enrollments.Certificate)
		enrollmentGroup.GET("/:id/certificate/link", downloads.CertificateLink)
	}

	api.GET("/downloads/:token", downloads.Download)

	api.GET("/audit/:resource/:resourceId", authenticated, admin, audit.ListByResource)
}
