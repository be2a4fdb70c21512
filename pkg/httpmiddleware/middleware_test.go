package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestInjectLogger_WithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("inside")
		w.WriteHeader(http.StatusOK)
	}), RequestID(), InjectLogger(zap.New(core)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-42", logs.All()[0].ContextMap()["request_id"])
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	find := func(*http.Request) string { return "/api/cart/{id}" }
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hello"))
	}), InjectLogger(zap.New(core)), LogRequests(find))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/cart/l-1", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, int64(5), fields["bytes"])
	assert.Equal(t, "/api/cart/{id}", fields["route"])
	assert.Equal(t, "/api/cart/l-1", fields["path"])
}

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func TestInstrument_PassesThrough(t *testing.T) {
	called := false
	find := func(*http.Request) string {
		called = true
		return "/api/listings"
	}
	h := Instrument("storefront", find, noopTelemetry{})(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/listings", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestCORS(t *testing.T) {
	for _, tt := range []struct {
		name        string
		cfg         CORSConfig
		origin      string
		preflight   bool
		wantOrigin  string
		wantCreds   string
		wantMethods string
	}{
		{
			name:       "wildcard",
			cfg:        CORSConfig{},
			origin:     "https://shop.example",
			wantOrigin: "*",
		},
		{
			name:       "credentials echo origin",
			cfg:        CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true},
			origin:     "https://shop.example",
			wantOrigin: "https://shop.example",
			wantCreds:  "true",
		},
		{
			name:       "listed origin case insensitive",
			cfg:        CORSConfig{AllowOrigins: []string{"https://Shop.Example"}},
			origin:     "https://shop.example",
			wantOrigin: "https://Shop.Example",
		},
		{
			name:   "unlisted origin",
			cfg:    CORSConfig{AllowOrigins: []string{"https://shop.example"}},
			origin: "https://evil.example",
		},
		{
			name:        "preflight",
			cfg:         CORSConfig{AllowOrigins: []string{"https://shop.example"}, AllowMethods: []string{"GET", "POST"}},
			origin:      "https://shop.example",
			preflight:   true,
			wantOrigin:  "https://shop.example",
			wantMethods: "GET, POST",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/api/cart", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			CORS(tt.cfg)(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantMethods, w.Header().Get("Access-Control-Allow-Methods"))
			if tt.preflight {
				assert.Equal(t, http.StatusNoContent, w.Code)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
	assert.JSONEq(t, `{"code":500,"message":"internal error"}`, w.Body.String())
}

func TestRecovery_AbortHandler(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestID(t *testing.T) {
	for _, tt := range []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated", incoming: "", keep: false},
		{name: "reused", incoming: "abc-123", keep: true},
		{name: "control chars rejected", incoming: "bad\x01id", keep: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.NotEmpty(t, seen)
			assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
			if tt.keep {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
			}
		})
	}
}
