package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logSpans writes every finished span to the logger at debug level.
type logSpans struct {
	logger *log.Logger
}

func (p logSpans) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p logSpans) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := log.Fields{
		"span":        s.Name(),
		"trace_id":    s.SpanContext().TraceID().String(),
		"duration_ms": float64(s.EndTime().Sub(s.StartTime()).Microseconds()) / 1000,
		"status":      s.Status().Code.String(),
	}
	for _, kv := range s.Attributes() {
		fields[string(kv.Key)] = kv.Value.Emit()
	}
	p.logger.WithFields(fields).Debug("span")
}

func (p logSpans) Shutdown(context.Context) error   { return nil }
func (p logSpans) ForceFlush(context.Context) error { return nil }

func setupTracing(logger *log.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(logSpans{logger: logger}),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
