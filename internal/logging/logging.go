// Package logging holds the process-wide zap logger. Packages log through
// the level helpers; the commands call Init once at startup.
package logging

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	current atomic.Pointer[zap.Logger]
)

// Config selects the level, encoding and destination of log output.
type Config struct {
	Level      string // debug, info, warn, error; empty means info
	Format     string // json or console
	OutputPath string // file to append to; empty means stderr
}

// Init replaces the process logger according to cfg.
func Init(cfg Config) error {
	lvl := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		if lvl, err = zapcore.ParseLevel(cfg.Level); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}

	sink := zapcore.Lock(os.Stderr)
	if cfg.OutputPath != "" {
		ws, _, err := zap.Open(cfg.OutputPath)
		if err != nil {
			return fmt.Errorf("log output %s: %w", cfg.OutputPath, err)
		}
		sink = ws
	}

	level.SetLevel(lvl)
	core := zapcore.NewCore(encoder(cfg.Format), sink, level)
	current.Store(zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	))
	return nil
}

func encoder(format string) zapcore.Encoder {
	if format == "json" {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
}

// UseLogger installs l as the process logger and returns a func that puts
// the previous one back.
func UseLogger(l *zap.Logger) (restore func()) {
	prev := current.Swap(l)
	return func() { current.Store(prev) }
}

// SetLevel changes the minimum level of the logger built by Init.
func SetLevel(name string) error {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Level reports the current minimum level.
func Level() string {
	return level.Level().String()
}

// Sync flushes buffered entries.
func Sync() error {
	if l := current.Load(); l != nil {
		return l.Sync()
	}
	return nil
}

// L returns the process logger. Before Init it writes console output to
// stderr.
func L() *zap.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	l := zap.New(zapcore.NewCore(encoder("console"), zapcore.Lock(os.Stderr), level), zap.AddCallerSkip(1))
	current.CompareAndSwap(nil, l)
	return current.Load()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Fatal logs at fatal level and exits the process.
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }
