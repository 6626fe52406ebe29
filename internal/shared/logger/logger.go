package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	instance *zap.Logger
	once     sync.Once
)

// GetLogger returns the process-wide zap logger, built lazily on first use
// with the development config
func GetLogger() *zap.Logger {
	once.Do(func() {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic("logger init failed: " + err.Error())
		}
		instance = l
	})
	return instance
}
