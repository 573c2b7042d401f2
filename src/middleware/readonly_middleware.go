package middleware

import (
	"net/http"
)

// ReadOnlyMiddleware rejects every request that could write when readOnly
// is set. Reporting deployments run this way.
func ReadOnlyMiddleware(readOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !readOnly {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				WriteError(w, http.StatusForbidden, "read-only mode: only GET requests are allowed")
			}
		})
	}
}
