// Package origin decides which browser origins may use the API.
//
// Requests without an Origin header come from non-browser clients (the CLI,
// curl, gRPC gateways) and are allowed. Browser requests are allowed from the
// API's own origin and from the configured list only, so a page the user
// happens to visit cannot start processes through the local API.
package origin

import (
	"net/http"
	"net/url"
	"strings"
)

// Policy is a fixed set of allowed origins
type Policy struct {
	allowed map[string]struct{}
}

// NewPolicy creates a policy allowing the given origins, such as
// "http://localhost:3000"
func NewPolicy(origins []string) *Policy {
	p := &Policy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o = normalize(o); o != "" {
			p.allowed[o] = struct{}{}
		}
	}
	return p
}

// Allowed reports whether r may be served
func (p *Policy) Allowed(r *http.Request) bool {
	o := r.Header.Get("Origin")
	if o == "" {
		return true
	}
	if p.Listed(o) {
		return true
	}
	u, err := url.Parse(o)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Listed reports whether origin is in the configured list
func (p *Policy) Listed(origin string) bool {
	if p == nil {
		return false
	}
	_, ok := p.allowed[normalize(origin)]
	return ok
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
