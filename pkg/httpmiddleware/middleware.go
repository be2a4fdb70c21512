// Package httpmiddleware contains net/http middlewares shared by the gateway.
package httpmiddleware

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Middleware wraps an http.Handler.
type Middleware func(h http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RouteFinder returns the route pattern that served r, or "" if unknown.
// It is called after the wrapped handler returns.
type RouteFinder func(r *http.Request) string

// Telemetry provides tracing and metrics providers.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// InjectLogger stores lg in the request context for zctx.From.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqCtx := r.Context()
			l := lg
			if id := RequestIDFromContext(reqCtx); id != "" {
				l = l.With(zap.String("request_id", id))
			}
			next.ServeHTTP(w, r.WithContext(zctx.Base(reqCtx, l)))
		})
	}
}

// Instrument traces and measures requests with otelhttp. Spans are renamed
// and labeled with the matched route once the handler returns.
func Instrument(serviceName string, find RouteFinder, t Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		named := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			route := find(r)
			if route == "" {
				return
			}
			trace.SpanFromContext(r.Context()).SetName(r.Method + " " + route)
			if labeler, ok := otelhttp.LabelerFromContext(r.Context()); ok {
				labeler.Add(attribute.String("http.route", route))
			}
		})
		return otelhttp.NewHandler(named, serviceName,
			otelhttp.WithTracerProvider(t.TracerProvider()),
			otelhttp.WithMeterProvider(t.MeterProvider()),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method
			}),
		)
	}
}

// LogRequests logs every served request at info level.
func LogRequests(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var route string
			m := httpsnoop.CaptureMetricsFn(w, func(w http.ResponseWriter) {
				next.ServeHTTP(w, r)
				route = find(r)
			})
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", m.Code),
				zap.Int64("bytes", m.Written),
				zap.Duration("duration", m.Duration),
			}
			if route != "" {
				fields = append(fields, zap.String("route", route))
			}
			zctx.From(r.Context()).Info("Request", fields...)
		})
	}
}
