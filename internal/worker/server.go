package worker

import (
	"fmt"
	"time"

	"synapse/internal/assignment"
	"synapse/internal/config"
	"synapse/internal/logger"
	"synapse/internal/worker/handlers"
	"synapse/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Server runs the asynq worker: substrate signal dispatch, notification
// delivery and the periodic assignment expiry sweep.
type Server struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *zap.Logger
}

// NewServer wires the worker server and its periodic schedule.
func NewServer(cfg *config.Config, coordinator *assignment.Coordinator, rdb *redis.Client) *Server {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			tasks.QueueSubstrate:     3,
			tasks.QueueNotifications: 2,
			tasks.QueueMaintenance:   1,
		},
		Logger: newAsynqZapLogger(logger.Get()),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeDispatchSignal, handlers.NewSignalHandler(rdb).Handle)
	mux.HandleFunc(tasks.TypeDeliverNotification, handlers.NewNotificationHandler().Handle)
	mux.HandleFunc(tasks.TypeExpireAssignments, handlers.NewExpiryHandler(coordinator).Handle)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
	})

	sweepInterval := cfg.Worker.ExpirySweepIntervalM
	if sweepInterval < 1 {
		sweepInterval = 15
	}
	_, err := scheduler.Register(
		fmt.Sprintf("@every %dm", sweepInterval),
		asynq.NewTask(tasks.TypeExpireAssignments, nil),
		asynq.Queue(tasks.QueueMaintenance),
	)
	if err != nil {
		logger.Warn("register expiry sweep schedule failed", zap.Error(err))
	}

	return &Server{
		srv:       srv,
		scheduler: scheduler,
		mux:       mux,
		logger:    logger.Get(),
	}
}

// Run starts the scheduler and blocks processing tasks until Shutdown.
func (s *Server) Run() error {
	go func() {
		if err := s.scheduler.Run(); err != nil {
			s.logger.Error("scheduler stopped", zap.Error(err))
		}
	}()
	return s.srv.Run(s.mux)
}

// Shutdown stops the worker gracefully.
func (s *Server) Shutdown() {
	s.scheduler.Shutdown()
	s.srv.Shutdown()
}

// asynqZapLogger adapts zap onto asynq's logger interface.
type asynqZapLogger struct {
	l *zap.SugaredLogger
}

func newAsynqZapLogger(l *zap.Logger) *asynqZapLogger {
	return &asynqZapLogger{l: l.Sugar()}
}

func (a *asynqZapLogger) Debug(args ...interface{}) { a.l.Debug(args...) }
func (a *asynqZapLogger) Info(args ...interface{})  { a.l.Info(args...) }
func (a *asynqZapLogger) Warn(args ...interface{})  { a.l.Warn(args...) }
func (a *asynqZapLogger) Error(args ...interface{}) { a.l.Error(args...) }
func (a *asynqZapLogger) Fatal(args ...interface{}) { a.l.Fatal(args...) }
