package middleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ArtifactVersionHeader carries the artifact set version that served a
// prediction.
const ArtifactVersionHeader = "X-Artifact-Version"

var (
	httpTracer = otel.Tracer("fraudserve/http")
	httpMeter  = otel.Meter("fraudserve/http")

	httpRequestDuration, _ = httpMeter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Time to serve a request"),
		metric.WithUnit("s"),
	)
	httpRequestTotal, _ = httpMeter.Int64Counter("http.server.request.total",
		metric.WithDescription("Requests served, by route and status"),
	)
	httpRequestBytes, _ = httpMeter.Int64Histogram("http.server.request.body.size",
		metric.WithDescription("Declared request body size"),
		metric.WithUnit("By"),
	)
)

// Tracing wraps each request in a server span tagged with the request ID and,
// for predictions, the artifact version that answered. Request count, latency
// and body size are recorded per route.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := attribute.String("http.route", r.URL.Path)
		method := attribute.String("http.method", r.Method)

		ctx, span := httpTracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(method, route,
				attribute.String("http.request_id", RequestIDFromContext(r.Context())),
			),
		)
		defer span.End()

		rw := wrapResponseWriter(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		status := rw.statusOrOK()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int("http.response_size", rw.bytes),
		)
		if v := rw.Header().Get(ArtifactVersionHeader); v != "" {
			span.SetAttributes(attribute.String("artifacts.version", v))
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		attrs := metric.WithAttributes(method, route, attribute.Int("http.status_code", status))
		httpRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		httpRequestTotal.Add(ctx, 1, attrs)
		if r.ContentLength > 0 {
			httpRequestBytes.Record(ctx, r.ContentLength, attrs)
		}
	})
}
