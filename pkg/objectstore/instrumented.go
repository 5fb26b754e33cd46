package objectstore

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPresignUnsupported is returned by Presign for backends without presigned URLs.
var ErrPresignUnsupported = errors.New("backend does not support presigned urls")

// instrumented decorates the selected backend with metrics and spans.
type instrumented struct {
	next    Service
	variant Variant
	metrics Metrics
	tracer  trace.Tracer
}

func newInstrumented(next Service, variant Variant, metrics Metrics, tracer trace.Tracer) *instrumented {
	return &instrumented{next: next, variant: variant, metrics: metrics, tracer: tracer}
}

func (i *instrumented) Store(ctx context.Context, key string, data []byte, contentType string) (info ObjectInfo, err error) {
	ctx, done := i.begin(ctx, "store", key)
	defer func() { done(err) }()
	return i.next.Store(ctx, key, data, contentType)
}

func (i *instrumented) Retrieve(ctx context.Context, key string) (obj *Object, err error) {
	ctx, done := i.begin(ctx, "retrieve", key)
	defer func() { done(err) }()
	return i.next.Retrieve(ctx, key)
}

func (i *instrumented) List(ctx context.Context, prefix string) (infos []ObjectInfo, err error) {
	ctx, done := i.begin(ctx, "list", prefix)
	defer func() { done(err) }()
	return i.next.List(ctx, prefix)
}

func (i *instrumented) Delete(ctx context.Context, key string) (err error) {
	ctx, done := i.begin(ctx, "delete", key)
	defer func() { done(err) }()
	return i.next.Delete(ctx, key)
}

func (i *instrumented) HealthCheck(ctx context.Context) error {
	return i.next.HealthCheck(ctx)
}

func (i *instrumented) Variant() Variant {
	return i.variant
}

func (i *instrumented) Close() error {
	return i.next.Close()
}

// Unwrap returns the undecorated backend.
func (i *instrumented) Unwrap() Service {
	return i.next
}

func (i *instrumented) begin(ctx context.Context, op, key string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, "objectstore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.variant", i.variant.String()),
			attribute.String("storage.key", key),
		),
	)
	return ctx, func(err error) {
		outcome := OutcomeSuccess
		if err != nil {
			outcome = OutcomeFailure
			if errors.Is(err, ErrNotFound) {
				outcome = "not_found"
			} else {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
		if i.metrics != nil {
			i.metrics.RecordStorageOperation(i.variant.String(), op, outcome, time.Since(start))
		}
	}
}

// Presign returns a temporary download URL for key when the backend behind svc
// supports it, and ErrPresignUnsupported otherwise.
func Presign(ctx context.Context, svc Service, key string, expiry time.Duration) (string, error) {
	for svc != nil {
		if p, ok := svc.(Presigner); ok {
			return p.PresignGetURL(ctx, key, expiry)
		}
		u, ok := svc.(interface{ Unwrap() Service })
		if !ok {
			break
		}
		svc = u.Unwrap()
	}
	return "", ErrPresignUnsupported
}
