package logger

import (
	"fmt"
	"log/slog"
)

// LogError logs a printf-style error message through slog.
func LogError(format string, args ...interface{}) {
	slog.Error(fmt.Sprintf(format, args...))
}

// LogWarn logs a printf-style warning through slog.
func LogWarn(format string, args ...interface{}) {
	slog.Warn(fmt.Sprintf(format, args...))
}
