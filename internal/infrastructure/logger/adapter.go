package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"retrieval-agent/internal/application/port/output"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ output.LoggerPort = (*ZapAdapter)(nil)

type Config struct {
	Level string
	// File is an extra JSON log destination. Its directory is created.
	File string
	// Quiet drops the stderr destination, for commands that own the terminal.
	Quiet bool
}

type ZapAdapter struct {
	sugar *zap.SugaredLogger
	close func()
}

func New(cfg Config) (*ZapAdapter, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	var paths []string
	if !cfg.Quiet {
		paths = append(paths, "stderr")
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		paths = append(paths, cfg.File)
	}
	if len(paths) == 0 {
		return NewNop(), nil
	}

	sink, closeSink, err := zap.Open(paths...)
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)
	return &ZapAdapter{
		sugar: zap.New(core).Sugar(),
		close: closeSink,
	}, nil
}

// NewFromCore wraps an existing zap core.
func NewFromCore(core zapcore.Core) *ZapAdapter {
	return &ZapAdapter{sugar: zap.New(core).Sugar()}
}

func NewNop() *ZapAdapter {
	return &ZapAdapter{sugar: zap.NewNop().Sugar()}
}

func (l *ZapAdapter) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *ZapAdapter) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *ZapAdapter) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *ZapAdapter) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

func (l *ZapAdapter) WithField(key string, value any) output.LoggerPort {
	return &ZapAdapter{sugar: l.sugar.With(key, value), close: l.close}
}

func (l *ZapAdapter) WithFields(fields map[string]any) output.LoggerPort {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &ZapAdapter{sugar: l.sugar.With(args...), close: l.close}
}

// Close flushes buffered entries and releases the outputs. Derived loggers
// share outputs with their parent, so only the root should be closed.
func (l *ZapAdapter) Close() error {
	_ = l.sugar.Sync()
	if l.close != nil {
		l.close()
	}
	return nil
}

// RunLogFile names a per-question log file inside dir, e.g.
// log/2024-05-01_10-00-00_What_is_the_capital.log.
func RunLogFile(dir, question string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.log", now.Format("2006-01-02_15-04-05"), sanitize(question)))
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
	s = strings.Trim(s, "_")
	if s == "" {
		return "run"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
