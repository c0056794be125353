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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/deadline-engine/api/swagger"
	"github.com/noah-isme/deadline-engine/internal/app"
	"github.com/noah-isme/deadline-engine/internal/handler"
	"github.com/noah-isme/deadline-engine/internal/middleware"
	"github.com/noah-isme/deadline-engine/pkg/auth"
	"github.com/noah-isme/deadline-engine/pkg/cache"
	"github.com/noah-isme/deadline-engine/pkg/config"
	"github.com/noah-isme/deadline-engine/pkg/database"
	"github.com/noah-isme/deadline-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/deadline-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/deadline-engine/pkg/middleware/requestid"
)

// @title Deadline Engine API
// @version 1.0.0
// @description Deadline permissions, extension workflow, period scheduling and calendar reconciliation.
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
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	redisClient := cache.NewOptionalRedis(cfg.StatusCache.Enabled, cfg.Redis, logr)
	if redisClient != nil {
		defer redisClient.Close()
	}

	engine := app.New(cfg, logr, db, redisClient)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	engine.StartWorkers(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(engine.Metrics))

	handler.RegisterRoutes(r, cfg.APIPrefix, auth.NewVerifier(cfg.JWT.Secret), engine.Handlers())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
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

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	engine.StopWorkers()
}
