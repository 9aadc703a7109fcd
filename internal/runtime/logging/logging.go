package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields represents structured logging key/value pairs.
type LogFields map[string]any

// ServiceLogger is the logging contract shared by the poller, the lifecycle
// manager and the control plane. It mirrors Watermill's LoggerAdapter with an
// extra Warn level used for recoverable conditions such as a payload that falls
// back from the HTTP path to the raw event path.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// LevelTrace is the slog level Trace messages are written at.
const LevelTrace = watermill.LevelTrace

var logLevelMapping = map[slog.Level]slog.Level{
	slog.LevelDebug: slog.LevelDebug,
	slog.LevelInfo:  slog.LevelInfo,
	slog.LevelWarn:  slog.LevelWarn,
	slog.LevelError: slog.LevelError,
}

// NewSlogServiceLogger wraps a slog.Logger so it satisfies ServiceLogger.
// Debug, Info, Error and Trace go through Watermill's slog adapter; Warn is
// written to the slog logger directly.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("lambdabridge: slog logger cannot be nil")
	}
	return &slogServiceLogger{
		inner: watermill.NewSlogLoggerWithLevelMapping(log, logLevelMapping),
		log:   log,
	}
}

// NewJSONLogger builds a ServiceLogger writing JSON lines to w at the given
// level. Bootstrap uses it on stdout so CloudWatch picks up structured entries.
func NewJSONLogger(w io.Writer, level slog.Level) ServiceLogger {
	return NewSlogServiceLogger(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// Discard returns a logger that drops everything.
func Discard() ServiceLogger {
	return NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ParseLevel maps a textual level to a slog.Level. Unknown values yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type slogServiceLogger struct {
	inner watermill.LoggerAdapter
	log   *slog.Logger
}

func (s *slogServiceLogger) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return s
	}
	return &slogServiceLogger{
		inner: s.inner.With(toWatermillFields(fields)),
		log:   s.log.With(toAttrs(fields)...),
	}
}

func (s *slogServiceLogger) Debug(msg string, fields LogFields) {
	s.inner.Debug(msg, toWatermillFields(fields))
}

func (s *slogServiceLogger) Info(msg string, fields LogFields) {
	s.inner.Info(msg, toWatermillFields(fields))
}

func (s *slogServiceLogger) Warn(msg string, fields LogFields) {
	s.log.Warn(msg, toAttrs(fields)...)
}

func (s *slogServiceLogger) Error(msg string, err error, fields LogFields) {
	s.inner.Error(msg, err, toWatermillFields(fields))
}

func (s *slogServiceLogger) Trace(msg string, fields LogFields) {
	s.inner.Trace(msg, toWatermillFields(fields))
}

// NewWatermillServiceLogger wraps an existing Watermill LoggerAdapter. Watermill
// has no warn level, so Warn is logged at info with a severity field.
func NewWatermillServiceLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("lambdabridge: watermill logger cannot be nil")
	}
	return &watermillServiceLogger{inner: logger}
}

type watermillServiceLogger struct {
	inner watermill.LoggerAdapter
}

func (w *watermillServiceLogger) With(fields LogFields) ServiceLogger {
	return &watermillServiceLogger{inner: w.inner.With(toWatermillFields(fields))}
}

func (w *watermillServiceLogger) Debug(msg string, fields LogFields) {
	w.inner.Debug(msg, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Info(msg string, fields LogFields) {
	w.inner.Info(msg, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Warn(msg string, fields LogFields) {
	wm := watermill.LogFields{"severity": "warn"}
	for k, v := range fields {
		wm[k] = v
	}
	w.inner.Info(msg, wm)
}

func (w *watermillServiceLogger) Error(msg string, err error, fields LogFields) {
	w.inner.Error(msg, err, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Trace(msg string, fields LogFields) {
	w.inner.Trace(msg, toWatermillFields(fields))
}

type serviceLoggerAdapter struct {
	base ServiceLogger
}

// NewWatermillAdapter converts a ServiceLogger into a Watermill LoggerAdapter so
// the control-plane router and its transports log through the same sink.
func NewWatermillAdapter(log ServiceLogger) watermill.LoggerAdapter {
	if log == nil {
		panic("lambdabridge: ServiceLogger cannot be nil")
	}
	return &serviceLoggerAdapter{base: log}
}

func (s *serviceLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	s.base.Error(msg, err, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	s.base.Info(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	s.base.Debug(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	s.base.Trace(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &serviceLoggerAdapter{base: s.base.With(fromWatermillFields(fields))}
}

func toWatermillFields(fields LogFields) watermill.LogFields {
	if len(fields) == 0 {
		return nil
	}
	return watermill.LogFields(fields)
}

func fromWatermillFields(fields watermill.LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	return LogFields(fields)
}

func toAttrs(fields LogFields) []any {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]any, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}
