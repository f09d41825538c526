// Package log provides a context-aware logger backed by zap.
// Attributes are typed by the OpenTelemetry attribute package, so they can be shared with traces.
package log

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

type Logger interface {
	Debug(ctx context.Context, message string)
	Info(ctx context.Context, message string)
	Warn(ctx context.Context, message string)
	Error(ctx context.Context, message string)

	Debugf(ctx context.Context, template string, args ...any)
	Infof(ctx context.Context, template string, args ...any)
	Warnf(ctx context.Context, template string, args ...any)
	Errorf(ctx context.Context, template string, args ...any)

	// With returns a child logger, the attributes are added to each message.
	With(attrs ...attribute.KeyValue) Logger
	// WithComponent returns a child logger, nested components are joined by a dot, for example "gate.churn".
	WithComponent(component string) Logger

	Sync() error
}
