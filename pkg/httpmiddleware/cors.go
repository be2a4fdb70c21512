package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig describes which browser origins may call the gateway.
type CORSConfig struct {
	// AllowOrigins is matched case-insensitively. Empty or "*" allows any.
	AllowOrigins []string
	// AllowMethods defaults to the methods the API routes use.
	AllowMethods []string
	// AllowHeaders, when empty, echoes Access-Control-Request-Headers.
	AllowHeaders  []string
	ExposeHeaders []string
	// AllowCredentials lets the SPA send the partition cookie. Any-origin
	// policies then echo the request origin instead of "*".
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]string // lowercase to configured spelling
	credentials bool
	methods     string
	headers     string
	expose      string
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	p := corsPolicy{
		anyOrigin:   len(cfg.AllowOrigins) == 0,
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		credentials: cfg.AllowCredentials,
		methods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			p.anyOrigin = true
			continue
		}
		p.origins[strings.ToLower(o)] = o
	}
	if len(cfg.AllowMethods) > 0 {
		p.methods = strings.Join(cfg.AllowMethods, ", ")
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value, or "" to deny.
func (p corsPolicy) allowOrigin(origin string) string {
	switch {
	case p.anyOrigin && p.credentials:
		return origin
	case p.anyOrigin:
		return "*"
	default:
		return p.origins[strings.ToLower(origin)]
	}
}

// varies reports whether responses differ per Origin.
func (p corsPolicy) varies() bool {
	return !p.anyOrigin || p.credentials
}

func (p corsPolicy) preflight(w http.ResponseWriter, r *http.Request, allow string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")
	if allow != "" {
		h.Set("Access-Control-Allow-Origin", allow)
		h.Set("Access-Control-Allow-Methods", p.methods)
		if hdr := p.headers; hdr != "" {
			h.Set("Access-Control-Allow-Headers", hdr)
		} else if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			h.Set("Access-Control-Allow-Headers", hdr)
		}
		if p.credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if p.maxAge != "" {
			h.Set("Access-Control-Max-Age", p.maxAge)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// CORS answers preflight requests and decorates cross-origin responses.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if p.varies() {
				w.Header().Add("Vary", "Origin")
			}
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allow := p.allowOrigin(origin)
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Del("Vary")
				p.preflight(w, r, allow)
				return
			}
			if allow != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allow)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if p.expose != "" {
					h.Set("Access-Control-Expose-Headers", p.expose)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
