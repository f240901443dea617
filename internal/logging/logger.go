// Package logging provides the structured logger contract shared by every
// coordinator component, backed by zap.
package logging

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/config"
)

// Logger is the minimal logging contract used across the coordinator.
// Components depend on this interface, never on zap directly, so tests can
// substitute a no-op implementation.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentLogger extends Logger with a component tag, allowing
// sub-components (registry, routing, spawning, ...) to be filtered in
// aggregated logs.
type ComponentLogger interface {
	Logger
	WithComponent(component string) ComponentLogger
}

// NoOp discards everything. Used in tests that don't care about log output.
type NoOp struct{}

func (NoOp) Info(string, map[string]interface{})                          {}
func (NoOp) Error(string, map[string]interface{})                         {}
func (NoOp) Warn(string, map[string]interface{})                          {}
func (NoOp) Debug(string, map[string]interface{})                         {}
func (NoOp) InfoContext(context.Context, string, map[string]interface{})  {}
func (NoOp) ErrorContext(context.Context, string, map[string]interface{}) {}
func (n NoOp) WithComponent(string) ComponentLogger                       { return n }

// zapLogger adapts go.uber.org/zap to the coordinator Logger contract via
// go-logr's zapr bridge, so the logging backend can be swapped for any other
// logr-compatible sink without touching call sites.
type zapLogger struct {
	sink      logr.Logger
	component string
}

// New builds a ComponentLogger from configuration. Format "json" produces
// structured production logs; anything else falls back to a readable
// console encoder, matching zap's own convention.
func New(cfg config.LoggingConfig) (ComponentLogger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	zl, err := zc.Build()
	if err != nil {
		return nil, err
	}

	return &zapLogger{sink: zapr.NewLogger(zl), component: "coordinator"}, nil
}

func (z *zapLogger) withFields(fields map[string]interface{}) logr.Logger {
	l := z.sink.WithValues("component", z.component)
	for k, v := range fields {
		l = l.WithValues(k, v)
	}
	return l
}

func (z *zapLogger) Info(msg string, fields map[string]interface{}) {
	z.withFields(fields).Info(msg)
}

func (z *zapLogger) Warn(msg string, fields map[string]interface{}) {
	z.withFields(fields).V(0).Info(msg, "level", "warn")
}

func (z *zapLogger) Debug(msg string, fields map[string]interface{}) {
	z.withFields(fields).V(1).Info(msg)
}

func (z *zapLogger) Error(msg string, fields map[string]interface{}) {
	var err error
	if e, ok := fields["error"].(error); ok {
		err = e
		delete(fields, "error")
	}
	z.withFields(fields).Error(err, msg)
}

func (z *zapLogger) InfoContext(ctx context.Context, msg string, fields map[string]interface{}) {
	z.Info(msg, fields)
}

func (z *zapLogger) ErrorContext(ctx context.Context, msg string, fields map[string]interface{}) {
	z.Error(msg, fields)
}

func (z *zapLogger) WithComponent(component string) ComponentLogger {
	return &zapLogger{sink: z.sink, component: component}
}
