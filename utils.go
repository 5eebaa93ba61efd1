package oren

import (
	"os"

	"github.com/go-i2p/logger"
)

// logInit initializes the logger with the specified level. The go-i2p logger
// reads its level from DEBUG_I2P once, on first initialization.
func logInit(level int) {
	switch level {
	case DEBUG, INFO:
		os.Setenv("DEBUG_I2P", "debug")
	case WARNING:
		os.Setenv("DEBUG_I2P", "warn")
	case ERROR:
		os.Setenv("DEBUG_I2P", "error")
	case FATAL:
		os.Setenv("DEBUG_I2P", "fatal")
		os.Setenv("WARNFAIL_I2P", "true")
	default:
		os.Setenv("DEBUG_I2P", "error")
	}
	logger.InitializeGoI2PLogger()
}

// Debug logs a debug message with optional arguments.
func Debug(message string, args ...interface{}) {
	if len(args) == 0 {
		logger.GetGoI2PLogger().Debug(message)
		return
	}
	logger.GetGoI2PLogger().Debugf(message, args...)
}

// Info logs an info message with optional arguments.
// Info maps to Warn level in the logger.
func Info(message string, args ...interface{}) {
	if len(args) == 0 {
		logger.GetGoI2PLogger().Warn(message)
		return
	}
	logger.GetGoI2PLogger().Warnf(message, args...)
}

// Warning logs a warning message with optional arguments.
func Warning(message string, args ...interface{}) {
	if len(args) == 0 {
		logger.GetGoI2PLogger().Warn(message)
		return
	}
	logger.GetGoI2PLogger().Warnf(message, args...)
}

// Error logs an error message with optional arguments.
func Error(message string, args ...interface{}) {
	if len(args) == 0 {
		logger.GetGoI2PLogger().Error(message)
		return
	}
	logger.GetGoI2PLogger().Errorf(message, args...)
}

// Fatal logs a fatal message with optional arguments.
// Fatal maps to Error level in the logger; it never exits the process.
func Fatal(message string, args ...interface{}) {
	if len(args) == 0 {
		logger.GetGoI2PLogger().Error(message)
		return
	}
	logger.GetGoI2PLogger().Errorf(message, args...)
}
