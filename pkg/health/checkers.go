package health

import (
	"context"
	"net/http"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// Pinger is a store that can verify its connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck checks a local or remote store.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// HTTPCheck requests url and fails on transport errors and 5xx responses.
// Any other status means the upstream is reachable.
func HTTPCheck(client *http.Client, url string) CheckFunc {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return errors.Wrap(err, "create request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return errors.Wrap(err, "request upstream")
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return errors.Errorf("upstream returned %d", resp.StatusCode)
		}
		return nil
	}
}
