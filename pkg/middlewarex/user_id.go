package middlewarex

import (
	"net/http"

	"trustpay/pkg/contextx"
)

const headerNameUserID = "X-User"

// UserID puts the caller identity from the request header into the context.
// Handlers that require an identity reject requests without it themselves.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerNameUserID)

		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := contextx.WithUserID(r.Context(), contextx.UserID(userID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
