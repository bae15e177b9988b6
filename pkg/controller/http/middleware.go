package http

import (
	"context"
	"net/http"
	"strings"
)

// OwnerHeader carries the user ID. Authentication is handled in front of this server.
const OwnerHeader = "X-Veille-User"

type ownerCtxKey struct{}

// ownerMiddleware stores the requesting user in the context
func ownerMiddleware(defaultOwner string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
			if owner == "" {
				owner = defaultOwner
			}
			if owner == "" {
				http.Error(w, "User required", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ownerCtxKey{}, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerCtxKey{}).(string)
	return owner
}
