package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"synapse/api"
	"synapse/internal/assignment"
	"synapse/internal/config"
	"synapse/internal/evidence"
	"synapse/internal/infra"
	"synapse/internal/logger"
	"synapse/internal/phase"
	"synapse/internal/version"
	"synapse/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err == nil {
		fmt.Println("loaded environment from .env")
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}
	defer infra.CloseDatabase(db)

	if cfg.Database.AutoMigrate {
		if err := runMigrations(db); err != nil {
			logger.Fatal("migrate database", zap.Error(err))
		}
	} else {
		logger.Info("auto migration disabled by config")
	}

	gin.SetMode(cfg.Server.Mode)

	router, workerServer := api.SetupRouter(db, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := workerServer.Run(); err != nil {
			logger.Fatal("worker server failed", zap.Error(err))
		}
	}()

	gracefulShutdown(server, workerServer, db)
}

func runMigrations(db *gorm.DB) error {
	return infra.AutoMigrate(db,
		&phase.WorkflowPhase{},
		&version.Version{},
		&evidence.Evidence{},
		&assignment.Assignment{},
	)
}

func gracefulShutdown(server *http.Server, workerServer *worker.Server, db *gorm.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}

	workerServer.Shutdown()

	if err := infra.CloseDatabase(db); err != nil {
		logger.Error("database close", zap.Error(err))
	}

	logger.Info("stopped")
}
