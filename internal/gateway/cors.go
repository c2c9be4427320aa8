package gateway

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// originAllowed reports whether a browser origin may open a stream.
// Requests without an Origin header are not cross-origin and always pass.
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// cors applies the configured origins to the HTTP API.
func (s *Server) cors(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.OptionStatusCode(http.StatusNoContent),
	)(next)
}
