package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/charlesng35/workpass/internal/events"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

var tracer = otel.Tracer("github.com/charlesng35/workpass/internal/services")

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// startSpan opens a span for a multi-step workflow. Callers pass the returned
// finish func the final error so failures are recorded on the span.
func startSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ensureContext(ctx), name)
	return ctx, func(err error) {
		endSpan(span, err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// publishBestEffort emits an event and logs delivery failures without
// failing the caller.
func publishBestEffort(ctx context.Context, publisher events.Publisher, log *zap.Logger, event events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		log.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("subject", event.Subject),
			zap.Error(err),
		)
	}
}

func pageBounds(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > maxPageSize {
		perPage = defaultPageSize
	}
	return page, perPage
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
