package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/charlesng35/workpass/pkg/metrics"
)

// unmatchedRoute labels requests that hit no registered route, keeping
// probe traffic from inflating metric cardinality.
const unmatchedRoute = "unmatched"

var httpTracer = otel.Tracer("github.com/charlesng35/workpass/internal/middleware")

// Telemetry opens a server span for each request and records its latency.
// Service spans started further down attach to it through the request
// context. An inbound traceparent header is honoured.
func Telemetry() gin.HandlerFunc {
	propagator := propagation.TraceContext{}

	return func(c *gin.Context) {
		start := time.Now()
		metrics.InFlightRequests.Inc()
		defer metrics.InFlightRequests.Dec()

		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		ctx, span := httpTracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if id := c.GetString(CtxRequestIDKey); id != "" {
			span.SetAttributes(attribute.String("request.id", id))
		}

		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	}
}
