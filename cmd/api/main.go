package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/culinaryhub/culinary-school-api/api/swagger"
	"github.com/culinaryhub/culinary-school-api/internal/handler"
	"github.com/culinaryhub/culinary-school-api/internal/middleware"
	"github.com/culinaryhub/culinary-school-api/internal/models"
	"github.com/culinaryhub/culinary-school-api/internal/repository"
	"github.com/culinaryhub/culinary-school-api/internal/service"
	"github.com/culinaryhub/culinary-school-api/pkg/cache"
	"github.com/culinaryhub/culinary-school-api/pkg/config"
	"github.com/culinaryhub/culinary-school-api/pkg/database"
	"github.com/culinaryhub/culinary-school-api/pkg/jobs"
	"github.com/culinaryhub/culinary-school-api/pkg/logger"
	corsmiddleware "github.com/culinaryhub/culinary-school-api/pkg/middleware/cors"
	reqidmiddleware "github.com/culinaryhub/culinary-school-api/pkg/middleware/requestid"
	"github.com/culinaryhub/culinary-school-api/pkg/storage"
)

// @title Culinary School API
// @version 1.0.0
// @description Course management backend for a cooking school
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// Redis is optional: payment flows and registrations keep working with
	// cold caches when it is unavailable.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	store, err := storage.NewLocalStorage(cfg.Storage.BaseDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	recipeRepo := repository.NewRecipeRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
	}

	authSvc := service.NewAuthService(userRepo, studentRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	courseSvc := newCourseService(courseRepo, cacheRepo, store, cfg.Storage.MaxUploadBytes, cfg.Payments.AvailabilityTTL, validate, logr)
	recipeSvc := service.NewRecipeService(recipeRepo, store, cfg.Storage.MaxUploadBytes, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, certificateRepo, validate, logr)
	instructorSvc := service.NewInstructorService(instructorRepo, validate, logr)
	registrationSvc := service.NewRegistrationService(
		registrationRepo, studentRepo, courseRepo, auditRepo, courseSvc,
		cfg.Payments.BkashNumber, cfg.Payments.ReferencePrefix, validate, logr,
	)

	paymentSvc := service.NewPaymentService(
		paymentRepo, registrationRepo, studentRepo, store, signer, auditRepo,
		nil, cfg.Payments.ProofSubdir, cfg.Payments.MaxProofSize, validate, logr,
	)
	webhookQueue := jobs.NewQueue("payment-webhook", paymentSvc.HandleWebhookJob, jobs.QueueConfig{
		Workers:    cfg.Webhook.Workers,
		BufferSize: cfg.Webhook.BufferSize,
		MaxRetries: cfg.Webhook.MaxRetries,
		RetryDelay: cfg.Webhook.RetryDelay,
		Logger:     logr,
	})
	paymentSvc.SetWebhookQueue(webhookQueue)

	certificateSvc := service.NewCertificateService(certificateRepo, registrationRepo, studentRepo, auditRepo, store, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, registrationRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, courseRepo, paymentRepo, registrationRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	recipeHandler := handler.NewRecipeHandler(recipeSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	instructorHandler := handler.NewInstructorHandler(instructorSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	fileHandler := handler.NewFileHandler(store, signer)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	}

	api.GET("/files/:token", fileHandler.Download)
	api.GET("/certificates/verify/:number", certificateHandler.Verify)
	api.POST("/payments/webhook/:provider", paymentHandler.Webhook)

	courses := api.Group("/courses")
	{
		courses.GET("", middleware.OptionalJWT(authSvc), courseHandler.List)
		courses.GET("/:id", middleware.OptionalJWT(authSvc), courseHandler.Get)
		courses.GET("/:id/availability", courseHandler.Availability)
		courses.GET("/:id/recipes", courseHandler.ListRecipes)
		courses.GET("/:id/instructors", courseHandler.ListInstructors)

		staff := courses.Group("", middleware.JWT(authSvc))
		staff.POST("", middleware.RequireCapability(models.CapCoursesCreate), courseHandler.Create)
		staff.PUT("/:id", middleware.RequireCapability(models.CapCoursesEdit), courseHandler.Update)
		staff.PATCH("/:id/status", courseHandler.UpdateStatus)
		staff.POST("/:id/image", middleware.RequireCapability(models.CapCoursesEdit), courseHandler.UploadImage)
		staff.DELETE("/:id", middleware.RequireCapability(models.CapCoursesDelete), courseHandler.Delete)
		staff.POST("/:id/recipes", middleware.RequireCapability(models.CapCoursesEdit), courseHandler.AttachRecipe)
		staff.POST("/:id/instructors", middleware.RequireCapability(models.CapCoursesEdit), courseHandler.AssignInstructor)
		staff.GET("/:id/students", middleware.RequireCapability(models.CapStudentsView), courseHandler.ListStudents)
		staff.GET("/:id/attendance", middleware.RequireCapability(models.CapStudentsView), attendanceHandler.ListByCourse)
		staff.POST("/:id/register", registrationHandler.RegisterForCourse)
	}

	recipes := api.Group("/recipes")
	{
		recipes.GET("", recipeHandler.List)
		recipes.GET("/:id", recipeHandler.Get)

		staff := recipes.Group("", middleware.JWT(authSvc))
		staff.POST("", middleware.RequireCapability(models.CapRecipesCreate), recipeHandler.Create)
		staff.PUT("/:id", middleware.RequireCapability(models.CapRecipesEdit), recipeHandler.Update)
		staff.DELETE("/:id", middleware.RequireCapability(models.CapRecipesDelete), recipeHandler.Delete)
		staff.POST("/:id/images", middleware.RequireCapability(models.CapRecipesEdit), recipeHandler.AddImage)
	}

	instructors := api.Group("/instructors")
	{
		instructors.GET("", instructorHandler.List)
		instructors.GET("/:id", instructorHandler.Get)
		instructors.GET("/:id/courses", instructorHandler.Courses)

		staff := instructors.Group("", middleware.JWT(authSvc))
		staff.POST("", middleware.RequireCapability(models.CapInstructorsCreate), instructorHandler.Create)
		staff.PUT("/:id", middleware.RequireCapability(models.CapInstructorsEdit), instructorHandler.Update)
		staff.DELETE("/:id", middleware.RequireCapability(models.CapInstructorsDelete), instructorHandler.Delete)
	}

	students := api.Group("/students", middleware.JWT(authSvc))
	{
		students.GET("/me", studentHandler.Profile)
		students.GET("", middleware.RequireCapability(models.CapStudentsView), studentHandler.List)
		students.GET("/:id", middleware.RequireCapability(models.CapStudentsView), studentHandler.Get)
		students.POST("", middleware.RequireCapability(models.CapStudentsCreate), studentHandler.Create)
		students.PUT("/:id", middleware.RequireCapability(models.CapStudentsEdit), studentHandler.Update)
		students.DELETE("/:id", middleware.RequireCapability(models.CapStudentsDelete), studentHandler.Delete)
		students.GET("/:id/courses", middleware.RequireCapability(models.CapStudentsView), studentHandler.Courses)
		students.GET("/:id/certificates", middleware.RequireCapability(models.CapStudentsView), studentHandler.Certificates)
	}

	// Registration ownership is enforced in the service layer, so students
	// reach these routes with a bare JWT.
	registrations := api.Group("/registrations", middleware.JWT(authSvc))
	{
		registrations.POST("", registrationHandler.Register)
		registrations.GET("", registrationHandler.ListOwn)
		registrations.GET("/:id", registrationHandler.Get)
		registrations.DELETE("/:id", registrationHandler.Cancel)
		registrations.POST("/:id/cancel", registrationHandler.Cancel)
		registrations.PUT("/:id/verify", middleware.RequireCapability(models.CapRegistrationsVerify), registrationHandler.Verify)
		registrations.GET("/:id/attendance", middleware.RequireCapability(models.CapStudentsView), attendanceHandler.ListByRegistration)
	}

	payments := api.Group("/payments", middleware.JWT(authSvc))
	{
		payments.POST("", paymentHandler.Submit)
		payments.GET("/report", middleware.RequireCapability(models.CapPaymentsReport), paymentHandler.Report)
		payments.GET("/:id", paymentHandler.Get)
		payments.PUT("/:id/verify", middleware.RequireCapability(models.CapPaymentsVerify), paymentHandler.Verify)
	}

	certificates := api.Group("/certificates", middleware.JWT(authSvc))
	{
		certificates.POST("/generate/:id", middleware.RequireCapability(models.CapCertificatesGenerate), certificateHandler.Generate)
		certificates.GET("/:id", certificateHandler.Get)
	}

	api.POST("/attendance", middleware.JWT(authSvc), middleware.RequireCapability(models.CapStudentsView), attendanceHandler.Record)

	dashboard := api.Group("/dashboard", middleware.JWT(authSvc), middleware.RequireCapability(models.CapDashboardView))
	{
		dashboard.GET("/stats", dashboardHandler.Stats)
		dashboard.GET("/overview", dashboardHandler.Overview)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	webhookQueue.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	webhookQueue.Stop()
}

// newCourseService exists so a nil *repository.CacheRepository stays a nil
// interface inside the service.
func newCourseService(repo *repository.CourseRepository, cacheRepo *repository.CacheRepository, store *storage.LocalStorage, maxImage int64, ttl time.Duration, validate *validator.Validate, logr *zap.Logger) *service.CourseService {
	if cacheRepo == nil {
		return service.NewCourseService(repo, nil, store, maxImage, ttl, validate, logr)
	}
	return service.NewCourseService(repo, cacheRepo, store, maxImage, ttl, validate, logr)
}
