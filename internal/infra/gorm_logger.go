package infra

import (
	"context"
	"errors"
	"time"

	"synapse/internal/logger"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// dbLogger routes gorm's logging through the process-wide zap logger. Traces
// log at debug, slow statements at warn, failures at error. Record-not-found
// is ordinary control flow in the services and stays quiet.
type dbLogger struct {
	level gormLogger.LogLevel
	slow  time.Duration
}

func newDBLogger(level gormLogger.LogLevel, slow time.Duration) *dbLogger {
	return &dbLogger{level: level, slow: slow}
}

func (l *dbLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	return &dbLogger{level: level, slow: l.slow}
}

func (l *dbLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Info {
		logger.Get().Sugar().Infof(msg, args...)
	}
}

func (l *dbLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Warn {
		logger.Get().Sugar().Warnf(msg, args...)
	}
}

func (l *dbLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormLogger.Error {
		logger.Get().Sugar().Errorf(msg, args...)
	}
}

func (l *dbLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gormLogger.ErrRecordNotFound):
		sql, rows := fc()
		logger.Get().Error("sql failed",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	case l.slow > 0 && elapsed > l.slow:
		sql, rows := fc()
		logger.Get().Warn("slow sql",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
		)
	case l.level >= gormLogger.Info:
		sql, rows := fc()
		logger.Get().Debug("sql",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
		)
	}
}
