package guard

import (
	"context"
	"sort"
	"strings"
)

// Routes maps SPA path prefixes to guards. Paths without a matching prefix
// are public.
type Routes struct {
	entries []routeEntry
}

type routeEntry struct {
	prefix string
	guard  Guard
}

// NewRoutes creates an empty table.
func NewRoutes() *Routes {
	return &Routes{}
}

// DefaultRoutes returns the storefront route table.
func DefaultRoutes(farmer, manager Guard) *Routes {
	auth := AuthGuard{}
	return NewRoutes().
		Handle("/farmer", farmer).
		Handle("/manager", manager).
		Handle("/cart/checkout", auth).
		Handle("/checkout", auth).
		Handle("/orders", auth).
		Handle("/profile", auth).
		Handle("/notifications", auth)
}

// Handle guards every path equal to prefix or below it.
func (r *Routes) Handle(prefix string, g Guard) *Routes {
	r.entries = append(r.entries, routeEntry{prefix: strings.TrimRight(prefix, "/"), guard: g})
	// Longest prefix first.
	sort.SliceStable(r.entries, func(i, j int) bool {
		return len(r.entries[i].prefix) > len(r.entries[j].prefix)
	})
	return r
}

// Match returns the guard for path, or nil for public paths. Prefixes match
// on segment boundaries, so "/farmer" guards "/farmer/listings" but not
// "/farmers/42".
func (r *Routes) Match(path string) Guard {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, e := range r.entries {
		if path == e.prefix || strings.HasPrefix(path, e.prefix+"/") {
			return e.guard
		}
	}
	return nil
}

// Check runs the guard of req.Path.
func (r *Routes) Check(ctx context.Context, req Request) Decision {
	g := r.Match(req.Path)
	if g == nil {
		return Allow
	}
	return g.Check(ctx, req)
}
