package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
)

// CORSConfig lists the origins allowed to call the API from a browser. Origins are
// compared exactly, scheme and port included; "*" allows any origin but is never
// combined with credentials.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig returns the methods and headers the auth endpoints need. Origins
// must still be supplied.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           10 * time.Minute,
	}
}

// CORS answers preflight requests and adds CORS headers for allowed origins. A
// preflight from an origin that is not allowed gets a 403 error envelope; other
// requests from such origins pass through without CORS headers, so the browser blocks
// the response. Requests without an Origin header are not touched.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	anyOrigin := false
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			anyOrigin = true
			continue
		}
		if o != "" {
			origins[o] = struct{}{}
		}
	}
	allowed := func(origin string) bool {
		if anyOrigin {
			return true
		}
		_, ok := origins[origin]
		return ok
	}

	opts := cors.Options{
		AllowedMethods:       cfg.AllowedMethods,
		AllowedHeaders:       cfg.AllowedHeaders,
		ExposedHeaders:       cfg.ExposedHeaders,
		AllowCredentials:     cfg.AllowCredentials && !anyOrigin,
		MaxAge:               int(cfg.MaxAge / time.Second),
		OptionsSuccessStatus: http.StatusNoContent,
	}
	if anyOrigin {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowOriginFunc = allowed
	}
	c := cors.New(opts)

	return func(next http.Handler) http.Handler {
		withCORS := c.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if preflight && !allowed(origin) {
				w.Header().Add("Vary", "Origin")
				WriteError(w, http.StatusForbidden, CodeForbidden, "Origin not allowed")
				return
			}
			withCORS.ServeHTTP(w, r)
		})
	}
}
