package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/domain/session"
)

// DefaultCookieName is the browser partition cookie.
const DefaultCookieName = "agrilink_partition"

type partitionKey struct{}

// partition ensures every request carries a browser partition id, issuing a
// new cookie to browsers that have none.
func (h *Handler) partition(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(h.cfg.CookieName); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     h.cfg.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(h.cfg.CookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   h.cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), partitionKey{}, id)
		ctx = zctx.With(ctx, zap.String("partition", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func partitionFrom(ctx context.Context) string {
	id, _ := ctx.Value(partitionKey{}).(string)
	return id
}

// session loads the session of the request partition.
func (h *Handler) session(r *http.Request) (session.Session, error) {
	return h.Sessions.Current(r.Context(), partitionFrom(r.Context()))
}

// authenticated loads the session and requires a signed-in user.
func (h *Handler) authenticated(r *http.Request) (session.Session, error) {
	s, err := h.session(r)
	if err != nil {
		return s, err
	}
	if !s.IsAuthenticated() {
		return s, session.ErrNotAuthenticated
	}
	return s, nil
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(o)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
