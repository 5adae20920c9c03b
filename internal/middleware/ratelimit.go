package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"image-transform-backend/internal/models"
)

// RateLimit caps requests per authenticated user and endpoint. Anonymous callers
// are keyed by IP. Must run after AuthMiddleware to see the user.
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limit := httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(keyByUser, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(models.ErrorResponse{
				Error:   "rate_limited",
				Message: "too many requests, try again later",
			})
		}),
	)

	return func(c *gin.Context) {
		passed := false
		limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
		})).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}

func keyByUser(r *http.Request) (string, error) {
	if identity, ok := identityFromContext(r.Context()); ok {
		return "user:" + identity.UserID.String(), nil
	}
	return httprate.KeyByIP(r)
}
