package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures every request carries a request ID. An incoming
// X-Request-ID header is honored; otherwise a new UUID is generated. The ID
// is stored on the request context and echoed in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID attached to r, or "".
func GetRequestID(r *http.Request) string {
	return logger.RequestID(r.Context())
}
