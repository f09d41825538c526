// nolint:forbidigo // allow usage of the "zap" package
package log

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const componentKey = "component"

// zapLogger is the default implementation of the Logger interface.
type zapLogger struct {
	// base contains attributes but not the component field,
	// so a nested component replaces the field instead of duplicating it.
	base      *zap.Logger
	logger    *zap.Logger
	component string
}

func loggerFromZapCore(core zapcore.Core) *zapLogger {
	l := zap.New(core)
	return &zapLogger{base: l, logger: l}
}

func newZapLogger(base *zap.Logger, component string) *zapLogger {
	logger := base
	if component != "" {
		logger = base.With(zap.String(componentKey, component))
	}
	return &zapLogger{base: base, logger: logger, component: component}
}

func (l *zapLogger) Debug(_ context.Context, message string) {
	l.logger.Debug(message)
}

func (l *zapLogger) Info(_ context.Context, message string) {
	l.logger.Info(message)
}

func (l *zapLogger) Warn(_ context.Context, message string) {
	l.logger.Warn(message)
}

func (l *zapLogger) Error(_ context.Context, message string) {
	l.logger.Error(message)
}

func (l *zapLogger) Debugf(ctx context.Context, template string, args ...any) {
	l.Debug(ctx, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Infof(ctx context.Context, template string, args ...any) {
	l.Info(ctx, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Warnf(ctx context.Context, template string, args ...any) {
	l.Warn(ctx, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Errorf(ctx context.Context, template string, args ...any) {
	l.Error(ctx, fmt.Sprintf(template, args...))
}

func (l *zapLogger) With(attrs ...attribute.KeyValue) Logger {
	fields := make([]zap.Field, 0, len(attrs))
	for _, attr := range attrs {
		fields = append(fields, zap.Any(string(attr.Key), attr.Value.AsInterface()))
	}
	return newZapLogger(l.base.With(fields...), l.component)
}

func (l *zapLogger) WithComponent(component string) Logger {
	if l.component != "" {
		component = l.component + "." + component
	}
	return newZapLogger(l.base, component)
}

func (l *zapLogger) Sync() error {
	return l.logger.Sync()
}
