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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/rollcall-api/api/swagger"
	"github.com/noah-isme/rollcall-api/internal/handler"
	"github.com/noah-isme/rollcall-api/internal/middleware"
	"github.com/noah-isme/rollcall-api/internal/repository"
	"github.com/noah-isme/rollcall-api/internal/service"
	"github.com/noah-isme/rollcall-api/pkg/cache"
	"github.com/noah-isme/rollcall-api/pkg/config"
	"github.com/noah-isme/rollcall-api/pkg/database"
	"github.com/noah-isme/rollcall-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/rollcall-api/pkg/middleware/cors"
	"github.com/noah-isme/rollcall-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/rollcall-api/pkg/middleware/requestid"
)

// @title Roll Call API
// @version 1.0.0
// @description Student roster and daily attendance tracking
// @BasePath /api
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
		if cfg.JWT.Secret == "" || cfg.JWT.Secret == "dev_secret" {
			return errors.New("JWT_SECRET must be set in production")
		}
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			return err
		}
		logr.Info("schema migrated")
	}

	var redisClient *redis.Client
	if cfg.Stats.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, stats cache disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cacheRepo.Enabled())

	authSvc := service.NewAuthService(repository.NewUserRepository(db), validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(repository.NewStudentRepository(db), cacheSvc, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(studentSvc, service.ExportConfig{
		Enabled: cfg.Exports.Enabled,
		Title:   cfg.Exports.Title,
	}, metricsSvc, logr, nil, nil)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())
	r.Use(ratelimit.New(0, cfg.RateLimit.PerMinute).Middleware())

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Students: handler.NewStudentHandler(studentSvc, exportSvc),
		Metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis":    cacheRepo.Ping,
		}),
	}, middleware.JWT(authSvc), cfg.Exports.Enabled)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logr.Info("server exited")
	return nil
}
