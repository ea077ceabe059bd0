// utils/logger.go
package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger

// InitLogger sets up the process-wide sugared logger. "production" switches to
// JSON output; anything else is the human-readable development config.
func InitLogger(level string) {
	var zapConfig zap.Config

	if level == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	log = logger.Sugar()
}

// Sync flushes any buffered log entries.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

func ensure() *zap.SugaredLogger {
	if log == nil {
		InitLogger("info")
	}
	return log
}

func Debug(msg string, keysAndValues ...interface{}) { ensure().Debugw(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...interface{})  { ensure().Infow(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...interface{})  { ensure().Warnw(msg, keysAndValues...) }
func Error(msg string, keysAndValues ...interface{}) { ensure().Errorw(msg, keysAndValues...) }
func Fatal(msg string, keysAndValues ...interface{}) { ensure().Fatalw(msg, keysAndValues...) }
