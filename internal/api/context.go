package api

import (
	"context"

	"github.com/marqetfi/tradegate/provider"
)

type identityContextKey struct{}

// ContextWithIdentity attaches the verified caller identity for downstream
// handlers.
func ContextWithIdentity(ctx context.Context, id *provider.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the verified caller identity, if any.
func IdentityFromContext(ctx context.Context) (*provider.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*provider.Identity)
	return id, ok
}
