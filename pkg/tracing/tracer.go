// Package tracing is the span helper used by domain packages. Without a
// registered provider the global no-op tracer makes every call inert.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "graph-api"

// Start opens a span as a child of the span in ctx. Callers must End it.
//
//	ctx, span := tracing.Start(ctx, "graphs.bulk_upload.nodes",
//	    attribute.Int("graph.nodes.count", len(nodes)),
//	)
//	defer span.End()
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// Fail records err on span and marks it failed. It returns err unchanged.
func Fail(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
