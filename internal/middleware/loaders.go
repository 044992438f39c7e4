package middleware

import (
	"context"
	"net/http"
)

// LoaderProvider attaches a fresh set of batched loaders to a context.
// *resolver.Resolver implements it.
type LoaderProvider interface {
	WithLoaders(ctx context.Context) context.Context
}

// LoadersMiddleware gives every request its own loaders so memoized rows
// never leak between requests.
func LoadersMiddleware(provider LoaderProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(provider.WithLoaders(r.Context())))
		})
	}
}
