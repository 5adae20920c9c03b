package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"image-transform-backend/internal/middleware"
)

func TestRateLimit_PerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.AuthMiddleware(middleware.NewJWTVerifier(testSecret, "authenticated")))
	router.Use(middleware.RateLimit(2, time.Minute))
	router.POST("/generations", okHandler)

	alice := signToken(t, testSecret, validClaims(uuid.NewString()))
	bob := signToken(t, testSecret, validClaims(uuid.NewString()))

	send := func(token string) *httptest.ResponseRecorder {
		req, _ := http.NewRequest("POST", "/generations", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send(alice).Code)
	assert.Equal(t, http.StatusOK, send(alice).Code)

	limited := send(alice)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), "rate_limited")

	assert.Equal(t, http.StatusOK, send(bob).Code)
}
