// Package logging builds the zap logger shared by the CLI and the service.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the encoder and minimum level.
type Config struct {
	// Level is one of debug, info, warn or error. Empty picks a default for
	// the environment.
	Level string `yaml:"level"`
	// Format is json or console. Empty picks json in production.
	Format string `yaml:"format"`
}

// Logger adapts a zap.SugaredLogger to the service Logger interface.
type Logger struct {
	*zap.SugaredLogger
}

// Debug logs at debug level with alternating keys and values.
func (l *Logger) Debug(msg string, keysAndValues ...any) { l.Debugw(msg, keysAndValues...) }

// Info logs at info level.
func (l *Logger) Info(msg string, keysAndValues ...any) { l.Infow(msg, keysAndValues...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keysAndValues ...any) { l.Warnw(msg, keysAndValues...) }

// Error logs at error level.
func (l *Logger) Error(msg string, keysAndValues ...any) { l.Errorw(msg, keysAndValues...) }

// With returns a child logger carrying the given fields.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}

// Wrap adapts an existing zap logger, mostly for tests using zaptest/observer.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{SugaredLogger: z.Sugar()}
}

// New builds a logger writing to stderr.
func New(env string, cfg Config) (*Logger, error) {
	return NewWithWriter(env, cfg, os.Stderr)
}

// NewWithWriter builds a logger writing to w. Production environments log
// JSON at info level; everything else logs console lines at debug level.
func NewWithWriter(env string, cfg Config, w io.Writer) (*Logger, error) {
	production := strings.EqualFold(env, "production") || strings.EqualFold(env, "prod")

	level := zapcore.DebugLevel
	if production {
		level = zapcore.InfoLevel
	}
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging level: %w", err)
		}
		level = parsed
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "console"
		if production {
			format = "json"
		}
	}
	var encoder zapcore.Encoder
	switch format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("logging format %q: want json or console", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{SugaredLogger: z.Sugar().With("service", "liderforte")}, nil
}
