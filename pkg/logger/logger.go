package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const loggerKey = contextKey("logger")

// DefaultLevel is used when LOG_LEVEL is missing or invalid.
const DefaultLevel = zapcore.DebugLevel

// Config controls logger construction
type Config struct {
	Level string

	// Path enables file output with rotation; stdout otherwise.
	Path       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// ParseLevel maps a level name to a zap level. Python logging names
// (WARNING, CRITICAL, FATAL) are accepted alongside zap's own.
func ParseLevel(name string) (zapcore.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return zapcore.DebugLevel, true
	case "INFO":
		return zapcore.InfoLevel, true
	case "WARN", "WARNING":
		return zapcore.WarnLevel, true
	case "ERROR":
		return zapcore.ErrorLevel, true
	case "CRITICAL", "FATAL", "DPANIC":
		return zapcore.DPanicLevel, true
	}
	return DefaultLevel, false
}

// New builds a JSON logger writing to stdout or to a rotated file.
func New(cfg Config) *zap.Logger {
	writeSyncer := zapcore.AddSync(os.Stdout)
	if cfg.Path != "" {
		writeSyncer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}
	return newWithSyncer(cfg.Level, writeSyncer)
}

func newWithSyncer(levelName string, ws zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, ok := ParseLevel(levelName)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), ws, level)
	l := zap.New(core, zap.AddCaller())
	if !ok {
		l.Warn("LOG_LEVEL missing or invalid; using default",
			zap.String("log_level", levelName), zap.Stringer("default", DefaultLevel))
	}
	return l
}

// WithContext adds logger to context
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or fallback.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
			return l
		}
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// Dump logs v as an embedded JSON object under the given name.
func Dump(l *zap.Logger, level zapcore.Level, name string, v any) {
	ce := l.Check(level, name)
	if ce == nil {
		return
	}
	b, err := MarshalJSON(v)
	if err != nil {
		ce.Write(zap.String(name, "<unserializable>"), zap.Error(err))
		return
	}
	ce.Write(zap.Reflect(name, b))
}
