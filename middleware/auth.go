package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/edgeauth"
	"github.com/MrEthical07/edgeauth/permission"
)

// ResourceLoader supplies the owner and condition flags of the resource a request
// targets. id is nil for anonymous callers. Returning an [*Error] controls the
// response; any other error becomes a 500.
type ResourceLoader func(r *http.Request, id *edgeauth.Identity) (ownerID string, metadata map[string]any, err error)

// Authenticate resolves the caller and rejects the request with 401 when nothing
// authenticates, or 503 when the identity backend is down.
func Authenticate(engine *edgeauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identity(engine, r)
			if err != nil {
				writeErr(w, ErrorFor(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Optional attaches the caller's identity when one authenticates and lets anonymous
// requests through. Backend outages still fail with 503.
func Optional(engine *edgeauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identity(engine, r)
			switch {
			case err == nil:
				r = r.WithContext(WithIdentity(r.Context(), id))
			case errors.Is(err, edgeauth.ErrBackendUnavailable):
				writeErr(w, errUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole authenticates the caller and allows only the listed roles (403
// otherwise). Admin is not implied.
func RequireRole(engine *edgeauth.Engine, roles ...permission.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identity(engine, r)
			if err != nil {
				writeErr(w, ErrorFor(err))
				return
			}
			if !edgeauth.HasRole(id, roles...) {
				writeErr(w, errForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Authorize enforces the engine's route table on every request. Public routes pass
// without credentials; other routes need an identity and a permitting decision.
// loader may be nil when no route needs ownership or condition data.
func Authorize(engine *edgeauth.Engine, loader ResourceLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeErr(w, errUnauthorized)
				return
			}

			id, err := identity(engine, r)
			if err != nil && errors.Is(err, edgeauth.ErrBackendUnavailable) {
				writeErr(w, errUnavailable)
				return
			}

			var (
				ownerID  string
				metadata map[string]any
			)
			if loader != nil {
				ownerID, metadata, err = loader(r, id)
				if err != nil {
					var httpErr *Error
					if errors.As(err, &httpErr) {
						writeErr(w, httpErr)
					} else {
						writeErr(w, errInternal)
					}
					return
				}
			}

			subject := engine.AccessContext(id, ownerID, metadata)
			d := engine.Authorize(r.Context(), subject, r.Method, r.URL.Path)
			if !d.Allowed {
				writeDecision(w, d)
				return
			}

			ctx := context.WithValue(r.Context(), decisionContextKey{}, d)
			if id != nil {
				ctx = WithIdentity(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identity reuses an identity attached earlier in the chain before resolving.
func identity(engine *edgeauth.Engine, r *http.Request) (*edgeauth.Identity, error) {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return id, nil
	}
	if engine == nil {
		return nil, edgeauth.ErrUnauthenticated
	}
	return engine.Resolve(r.Context(), r)
}
