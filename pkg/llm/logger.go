package llm

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
)

// Fields are structured attributes attached to a log line.
type Fields map[string]any

// Logger is the logging surface used by the LLM backends.
type Logger interface {
	Debug(ctx context.Context, msg string, fields Fields)
	Info(ctx context.Context, msg string, fields Fields)
	Warn(ctx context.Context, msg string, fields Fields)
	Error(ctx context.Context, err error, fields Fields)
}

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

// logxLogger writes through logx but applies its own threshold, so an
// `llm.yaml` log_level never changes the level of the rest of the process.
type logxLogger struct {
	min level
}

// NewLogger returns a Logger backed by go-zero's logx. Unknown levels mean info.
func NewLogger(lvl string) Logger {
	return &logxLogger{min: parseLevel(lvl)}
}

func (l *logxLogger) Debug(ctx context.Context, msg string, fields Fields) {
	if l.min <= levelDebug {
		logx.WithContext(ctx).Debugw("llm: "+msg, logFields(fields)...)
	}
}

func (l *logxLogger) Info(ctx context.Context, msg string, fields Fields) {
	if l.min <= levelInfo {
		logx.WithContext(ctx).Infow("llm: "+msg, logFields(fields)...)
	}
}

func (l *logxLogger) Warn(ctx context.Context, msg string, fields Fields) {
	if l.min <= levelWarn {
		logx.WithContext(ctx).Sloww("llm: "+msg, logFields(fields)...)
	}
}

func (l *logxLogger) Error(ctx context.Context, err error, fields Fields) {
	logx.WithContext(ctx).Errorw("llm: "+err.Error(), logFields(fields)...)
}

func parseLevel(s string) level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return levelDebug
	case "warn", "warning", "slow":
		return levelWarn
	case "error", "severe", "fatal":
		return levelError
	default:
		return levelInfo
	}
}

// logFields converts fields into logx fields ordered by key.
func logFields(fields Fields) []logx.LogField {
	if len(fields) == 0 {
		return nil
	}
	out := make([]logx.LogField, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		out = append(out, logx.Field(k, fields[k]))
	}
	return out
}
