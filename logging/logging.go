// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging builds the zap-backed logger used by the command line.
package logging

import (
	"fmt"
	"io"
	"strings"

	luxlog "github.com/luxfi/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a luxfi logger whose level can change after creation.
type Logger struct {
	luxlog.Logger

	level zap.AtomicLevel
}

var _ luxlog.Logger = (*Logger)(nil)

// ParseLevel maps a level name to its zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

// Init creates a logger writing to writer and installs it as the global
// luxfi logger.
func Init(name string, level string, jsonFormat bool, writer io.Writer) (*Logger, error) {
	zapLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	atomic := zap.NewAtomicLevelAt(zapLevel)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "source",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if jsonFormat {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(writer), atomic)
	zapLogger := zap.New(core, zap.AddCaller()).Named(name)

	l := &Logger{
		Logger: luxlog.NewZapLogger(zapLogger),
		level:  atomic,
	}
	luxlog.SetGlobalLogger(l.Logger)
	return l, nil
}

// SetLogLevel changes the level of an initialized logger.
func (l *Logger) SetLogLevel(level string) error {
	zapLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(zapLevel)
	return nil
}

// LogLevel returns the current level name.
func (l *Logger) LogLevel() string {
	return l.level.Level().String()
}
