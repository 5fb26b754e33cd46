package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation names a traced database operation.
type SpanOperation string

const (
	SpanOperationDBQuery  SpanOperation = "db.query"
	SpanOperationDBInsert SpanOperation = "db.insert"
	SpanOperationDBUpdate SpanOperation = "db.update"
	SpanOperationDBDelete SpanOperation = "db.delete"
	SpanOperationDBTx     SpanOperation = "db.transaction"
)

const databaseScope = "github.com/lexintake/console/database"

// StartDatabaseSpan starts a client span named "DB <operation> <table>" on the global
// provider. An empty table, as for a transaction, is left out of the name and attributes.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, table string) (context.Context, trace.Span) {
	name := "DB " + string(operation)
	attrs := []attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		semconv.DBOperationKey.String(string(operation)),
	}
	if table != "" {
		name += " " + table
		attrs = append(attrs, semconv.DBSQLTableKey.String(table))
	}
	return otel.Tracer(databaseScope).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// End finishes span. A nil err marks it OK; anything else is recorded and marks it failed.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
