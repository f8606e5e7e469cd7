package gateway

import (
	"net/http"

	"github.com/rs/cors"
)

// OriginPolicy decides which browser origins may connect.
type OriginPolicy struct {
	allowAll bool
	origins  map[string]bool
}

// NewOriginPolicy allows exactly the listed origins; "*" allows any.
func NewOriginPolicy(allowed []string) OriginPolicy {
	p := OriginPolicy{origins: make(map[string]bool, len(allowed))}
	for _, origin := range allowed {
		if origin == "*" {
			p.allowAll = true
		}
		p.origins[origin] = true
	}
	return p
}

// Allowed reports whether origin may connect.
func (p OriginPolicy) Allowed(origin string) bool {
	return p.allowAll || p.origins[origin]
}

// CheckOrigin is the WebSocket upgrader hook. Requests without an Origin
// header come from non-browser clients and are let through.
func (p OriginPolicy) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return p.Allowed(origin)
}

// NewCORS builds the CORS middleware for the HTTP routes.
func NewCORS(allowed []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
}
