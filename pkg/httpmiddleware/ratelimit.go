package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// KeyFunc names the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// Quota is the outcome of a single Take.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
	Allowed   bool
}

type counter struct {
	slot int64 // index of the window holding cur
	cur  int
	prev int
}

// Limiter approximates a sliding window by blending the request count of the
// previous fixed window into the current one.
type Limiter struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	counters map[string]*counter
}

// NewLimiter allows max requests per key within window.
func NewLimiter(max int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		max:      max,
		window:   window,
		counters: make(map[string]*counter),
	}
}

// Take counts a request for key at now unless the key is over its quota.
func (l *Limiter) Take(key string, now time.Time) Quota {
	slot := now.UnixNano() / int64(l.window)
	start := time.Unix(0, slot*int64(l.window))

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok {
		c = &counter{slot: slot}
		l.counters[key] = c
	}
	switch c.slot {
	case slot:
	case slot - 1:
		c.prev, c.cur = c.cur, 0
	default:
		c.prev, c.cur = 0, 0
	}
	c.slot = slot

	carry := float64(l.window-now.Sub(start)) / float64(l.window)
	used := int(float64(c.prev)*carry) + c.cur

	q := Quota{Limit: l.max, Reset: start.Add(l.window)}
	if used >= l.max {
		return q
	}
	c.cur++
	q.Allowed = true
	q.Remaining = max(l.max-used-1, 0)
	return q
}

// Evict drops keys idle for a full window.
func (l *Limiter) Evict(now time.Time) int {
	slot := now.UnixNano() / int64(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for key, c := range l.counters {
		if c.slot < slot-1 {
			delete(l.counters, key)
			n++
		}
	}
	return n
}

// Run evicts idle keys every other window until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	t := time.NewTicker(2 * l.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := l.Evict(now); n > 0 {
				zctx.From(ctx).Debug("Rate limit keys evicted", zap.Int("count", n))
			}
		}
	}
}

// RateLimit rejects requests over the limiter's quota with 429. Every
// response carries the X-RateLimit-* headers.
func RateLimit(l *Limiter, key KeyFunc) Middleware {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			k := key(r)
			q := l.Take(k, now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(q.Reset.Unix(), 10))
			if q.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			wait := max(q.Reset.Sub(now), 0)
			h.Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
			zctx.From(r.Context()).Debug("Rate limited",
				zap.String("key", k),
				zap.Duration("retry_after", wait),
			)
			writeProblem(w, http.StatusTooManyRequests, "too many requests, slow down")
		})
	}
}

// PartitionKey buckets requests by the browser partition cookie so shoppers
// behind one NAT do not share a quota. Requests without it use ClientIP.
func PartitionKey(cookie string) KeyFunc {
	return func(r *http.Request) string {
		if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
			return "partition:" + c.Value
		}
		return ClientIP(r)
	}
}

// ClientIP is the first X-Forwarded-For hop, X-Real-IP, or the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
