// Package log provides the service-wide zap logger.
package log

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// log holds the active sugared logger. It starts as a no-op so packages
// can log before Init, which tests and library callers rely on.
var log atomic.Pointer[zap.SugaredLogger]

func init() {
	log.Store(zap.NewNop().Sugar())
}

// Init initializes the package-level logger.
func Init(debug bool) error {
	var (
		zapLogger *zap.Logger
		err       error
	)

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	log.Store(zapLogger.Sugar())
	return nil
}

// GetSugaredLogger returns the active sugared logger.
func GetSugaredLogger() *zap.SugaredLogger {
	return log.Load()
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = GetSugaredLogger().Sync()
}

func Debugf(template string, args ...interface{}) {
	GetSugaredLogger().Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Debugw(msg, keysAndValues...)
}

func Infof(template string, args ...interface{}) {
	GetSugaredLogger().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Infow(msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Warnw(msg, keysAndValues...)
}

func Errorf(template string, args ...interface{}) {
	GetSugaredLogger().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Errorw(msg, keysAndValues...)
}
