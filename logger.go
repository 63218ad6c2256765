package bvh

import (
	"time"

	"go.uber.org/zap"
)

// Logger wraps zap.Logger with bvh-specific helpers so that build and query
// events carry consistent field names.
type Logger struct {
	*zap.Logger
}

// NewLogger wraps z. A nil z yields a logger that discards everything.
func NewLogger(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{Logger: z}
}

// NewDevelopmentLogger creates a human-readable logger at debug level.
func NewDevelopmentLogger() (*Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: z}, nil
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// LogBuild logs the outcome of a build.
func (l *Logger) LogBuild(records, leaves, payload, depth int, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("bvh build failed",
			zap.Int("records", records),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}
	l.Debug("bvh built",
		zap.Int("records", records),
		zap.Int("leaves", leaves),
		zap.Int("payload", payload),
		zap.Int("depth", depth),
		zap.Duration("elapsed", elapsed),
	)
}

// LogQueryFailure logs a query that was aborted.
func (l *Logger) LogQueryFailure(kind string, err error) {
	l.Warn("bvh query aborted",
		zap.String("query", kind),
		zap.Error(err),
	)
}
