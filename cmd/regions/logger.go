package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// setupLogger configures and returns a zap logger writing to stderr
func setupLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	// Configure the encoder
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
