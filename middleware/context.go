package middleware

import (
	"context"

	"github.com/MrEthical07/edgeauth"
	"github.com/MrEthical07/edgeauth/access"
)

type identityContextKey struct{}

type decisionContextKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *edgeauth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity attached by [Authenticate], [Optional] or
// [Authorize].
func IdentityFromContext(ctx context.Context) (*edgeauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*edgeauth.Identity)
	return id, ok && id != nil
}

// DecisionFromContext returns the access decision attached by [Authorize].
func DecisionFromContext(ctx context.Context) (access.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(access.Decision)
	return d, ok
}
