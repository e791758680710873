package explorer

import (
	"go.uber.org/zap"
)

// Logger is the subset of the *zap.Logger which the explorer utilizes.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}
