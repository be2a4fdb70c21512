package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

// drive runs c until it crosses the failure threshold.
func drive(c *check) {
	for range c.failureThreshold {
		c.run(context.Background())
	}
}

func serve(t *testing.T, fn http.HandlerFunc) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestLiveEndpoint(t *testing.T) {
	for _, tt := range []struct {
		name     string
		runs     int
		check    CheckFunc
		wantCode int
		wantBody statusResponse
	}{
		{
			name:     "passing",
			runs:     3,
			check:    pass,
			wantCode: http.StatusOK,
			wantBody: statusResponse{Status: StatusOK},
		},
		{
			name:     "below threshold",
			runs:     2,
			check:    fail("temporary"),
			wantCode: http.StatusOK,
			wantBody: statusResponse{Status: StatusOK},
		},
		{
			name:     "failing",
			runs:     3,
			check:    fail("stuck"),
			wantCode: http.StatusServiceUnavailable,
			wantBody: statusResponse{Status: StatusUnhealthy, Checks: map[string]string{"loop": "stuck"}},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("loop", time.Second, tt.check)
			for range tt.runs {
				h.liveness[0].run(context.Background())
			}

			code, body := serve(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	for _, tt := range []struct {
		name       string
		ready      bool
		localDown  bool
		remoteDown bool
		wantCode   int
		wantStatus string
		wantChecks []string
	}{
		{name: "all up", ready: true, wantCode: http.StatusOK, wantStatus: StatusOK},
		{name: "not ready", wantCode: http.StatusServiceUnavailable, wantStatus: StatusUnhealthy, wantChecks: []string{"_readiness"}},
		{
			name: "backend down degrades", ready: true, remoteDown: true,
			wantCode: http.StatusOK, wantStatus: StatusDegraded, wantChecks: []string{"backend"},
		},
		{
			name: "local store down", ready: true, localDown: true, remoteDown: true,
			wantCode: http.StatusServiceUnavailable, wantStatus: StatusUnhealthy, wantChecks: []string{"backend", "local"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			local, remote := CheckFunc(pass), CheckFunc(pass)
			if tt.localDown {
				local = fail("disk I/O error")
			}
			if tt.remoteDown {
				remote = fail("connection refused")
			}
			h.AddReadinessCheck("local", time.Second, local)
			h.AddOptionalCheck("backend", time.Second, remote)
			for _, c := range h.readiness {
				drive(c)
			}
			h.SetReady(tt.ready)

			code, body := serve(t, h.ReadyEndpoint)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body.Status)
			var names []string
			for name := range body.Checks {
				names = append(names, name)
			}
			assert.ElementsMatch(t, tt.wantChecks, names)
			assert.Equal(t, tt.wantCode == http.StatusOK, h.IsReady())
		})
	}
}

func TestCheckRecovery(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	c := h.liveness[0]
	assert.Nil(t, c.lastError())

	drive(c)
	assert.False(t, c.isHealthy())
	assert.EqualError(t, c.lastError(), "down")

	failing = false
	c.run(context.Background())
	assert.True(t, c.isHealthy())
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, fail("err"))
	h.AddReadinessCheck("ready", time.Second, pass)
	h.AddOptionalCheck("optional", time.Second, fail("err"))
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(pingerFunc(pass))(context.Background()))
	assert.ErrorContains(t, PingCheck(pingerFunc(fail("closed")))(context.Background()), "ping: closed")
}

func TestHTTPCheck(t *testing.T) {
	for _, tt := range []struct {
		status  int
		wantErr bool
	}{
		{status: http.StatusOK},
		{status: http.StatusUnauthorized},
		{status: http.StatusNotFound},
		{status: http.StatusBadGateway, wantErr: true},
	} {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := HTTPCheck(srv.Client(), srv.URL)(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		assert.Error(t, HTTPCheck(http.DefaultClient, url)(context.Background()))
	})
}
