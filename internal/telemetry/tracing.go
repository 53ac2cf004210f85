package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TracingConfig — настройки трассировки.
type TracingConfig struct {
	// Enabled — включить экспорт spans.
	Enabled bool

	// ServiceName — service.name в resource (default: acquire).
	ServiceName string

	// Writer — куда писать spans (default: os.Stdout).
	Writer io.Writer

	// PrettyPrint — форматированный JSON.
	PrettyPrint bool
}

// SetupTracing устанавливает глобальный TracerProvider.
//
// При выключенной трассировке остаётся noop provider по умолчанию.
// Возвращает функцию shutdown, которую нужно вызвать при завершении.
func SetupTracing(cfg TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(writer)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}

	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create console exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "acquire"
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
