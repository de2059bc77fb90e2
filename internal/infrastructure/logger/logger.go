package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"browser-agent/internal/application/port/output"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ output.LoggerPort = (*ZapLogger)(nil)

type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Dir is where the JSON log file is created. Empty disables the file
	// core.
	Dir string
	// Console mirrors warnings and errors to stderr.
	Console bool
}

func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Dir:     "log",
		Console: true,
	}
}

// ZapLogger adapts a zap.SugaredLogger to the LoggerPort the rest of the
// engine is written against.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// New builds the production logger: a JSON file core under cfg.Dir plus an
// optional console core for warnings and above.
func New(cfg Config) (*ZapLogger, error) {
	level := zap.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zap.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		filename := fmt.Sprintf("agent_%s.log", time.Now().Format("2006-01-02_15-04-05"))
		file, err := os.Create(filepath.Join(cfg.Dir, filename))
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(file),
			level,
		))
	}
	if cfg.Console {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.AddSync(os.Stderr),
			zap.WarnLevel,
		))
	}
	if len(cores) == 0 {
		return &ZapLogger{sugar: zap.NewNop().Sugar(), base: zap.NewNop()}, nil
	}

	base := zap.New(zapcore.NewTee(cores...))
	return &ZapLogger{sugar: base.Sugar(), base: base}, nil
}

// NewNop returns a logger that discards everything. Handy in tests.
func NewNop() *ZapLogger {
	return &ZapLogger{sugar: zap.NewNop().Sugar(), base: zap.NewNop()}
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func (l *ZapLogger) WithField(key string, value any) output.LoggerPort {
	return &ZapLogger{sugar: l.sugar.With(key, value), base: l.base}
}

func (l *ZapLogger) WithFields(fields map[string]any) output.LoggerPort {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &ZapLogger{sugar: l.sugar.With(args...), base: l.base}
}

func (l *ZapLogger) Close() error {
	// Sync flushes buffered entries; an error on stderr sync is expected
	// on some platforms and safe to ignore.
	_ = l.base.Sync()
	return nil
}
