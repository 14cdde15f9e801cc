package api

import (
	"os"
	"strings"
	"time"

	"synapse/api/handlers/assignments"
	evidenceHandlers "synapse/api/handlers/evidence"
	"synapse/api/handlers/phases"
	"synapse/api/handlers/versions"
	"synapse/internal/assignment"
	"synapse/internal/auth"
	"synapse/internal/config"
	evidenceSvc "synapse/internal/evidence"
	"synapse/internal/infra"
	"synapse/internal/infra/queue"
	"synapse/internal/logger"
	"synapse/internal/metrics"
	middlewarepkg "synapse/internal/middleware"
	"synapse/internal/notification"
	"synapse/internal/phase"
	"synapse/internal/substrate"
	versionSvc "synapse/internal/version"
	"synapse/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter wires services, handlers and middleware, returning the gin
// router and the background worker server.
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *worker.Server) {
	router := gin.New()

	queueClient := queue.NewClient(cfg.Redis)

	// Redis backs the substrate schedule cache; the engine runs without it,
	// degrading schedule queries and signal delivery to best-effort.
	redisClient, err := infra.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, substrate schedule queries disabled", zap.Error(err))
		redisClient = nil
	}

	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		jwtSecret = strings.TrimSpace(os.Getenv("JWT_SECRET_KEY"))
	}
	if jwtSecret == "" {
		if strings.EqualFold(cfg.Server.Mode, "release") {
			logger.Fatal("JWT secret is not configured; refusing to start in release mode with a default key")
		}
		jwtSecret = "dev_jwt_secret_change_in_production"
		logger.Warn("JWT secret not configured, using the development default")
	}
	jwtService := auth.NewJWTService(jwtSecret, time.Duration(cfg.Auth.TokenExpiryMin)*time.Minute)

	notifier := notification.NewMultiNotifier(
		notification.LogNotifier{},
		notification.NewQueueNotifier(queueClient),
	)

	var substrateClient substrate.Client = substrate.Noop{}
	if cfg.Substrate.Enabled {
		substrateClient = substrate.NewQueueClient(queueClient, redisClient, cfg.Substrate.ScheduleKeyPrefix)
	}

	coordinator := assignment.NewCoordinator(db, assignment.DefaultCascadeTable(),
		assignment.WithNotifier(notifier),
	)
	calculator := phase.NewCalculator(cfg.SLA.AtRiskDays)
	phaseService := phase.NewService(db, calculator,
		phase.WithGate(coordinator),
		phase.WithSubstrate(substrateClient),
		phase.WithNotifier(notifier),
	)
	versionService := versionSvc.NewService(db)
	evidenceManager := evidenceSvc.NewManager(db,
		evidenceSvc.WithNotifier(notifier),
	)

	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(metrics.GinMiddleware())

	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	phaseHandler := phases.NewPhaseHandler(phaseService)
	versionHandler := versions.NewVersionHandler(versionService)
	evidenceHandler := evidenceHandlers.NewEvidenceHandler(evidenceManager)
	assignmentHandler := assignments.NewAssignmentHandler(coordinator)

	apiV1 := router.Group("/api/v1")
	apiV1.Use(auth.AuthMiddleware(jwtService))
	registerRoutes(apiV1, phaseHandler, versionHandler, evidenceHandler, assignmentHandler)

	workerServer := worker.NewServer(cfg, coordinator, redisClient)

	return router, workerServer
}

// RequestLogger logs each request with method, path, status and latency.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.WithContext(c.Request.Context()).Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// HealthCheck reports basic liveness.
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "synapse",
		})
	}
}

// ReadinessCheck includes database connectivity, for traffic gating.
func ReadinessCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(503, gin.H{"status": "not_ready", "reason": "database connection error"})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(503, gin.H{"status": "not_ready", "reason": "database ping failed"})
			return
		}
		c.JSON(200, gin.H{"status": "ready", "database": "connected"})
	}
}
