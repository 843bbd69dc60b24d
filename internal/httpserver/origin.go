package httpserver

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/origin"
)

// withOriginPolicy answers 403 to browser requests from origins the policy
// does not admit. Requests without an Origin header pass through.
func (s *Server) withOriginPolicy(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.origins.CheckRequest(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// corsMiddleware adds CORS headers and answers preflights for admitted
// origins, so the frontend can run on its own origin.
func corsMiddleware(policy *origin.Policy) Middleware {
	c := cors.New(cors.Options{
		AllowOriginRequestFunc: func(r *http.Request, _ string) bool {
			return policy.CheckRequest(r)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	return c.Handler
}
