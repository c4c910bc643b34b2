package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwtutil "github.com/lingoarena/lingoarena-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func whoAmI(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"userId": UserID(c)})
}

func perform(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	m := jwtutil.NewJWTManager("secret", time.Hour)
	token, err := m.Generate("player-1", "ana")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/private", Auth(m), whoAmI)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := perform(r, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), "player-1")
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	m := jwtutil.NewJWTManager("secret", time.Hour)
	token, err := m.Generate("player-1", "ana")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws", OptionalAuth(m), whoAmI)

	t.Run("guest", func(t *testing.T) {
		w := perform(r, httptest.NewRequest(http.MethodGet, "/ws", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"userId":""}`, w.Body.String())
	})

	t.Run("token query", func(t *testing.T) {
		w := perform(r, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"userId":"player-1"}`, w.Body.String())
	})

	t.Run("invalid token is rejected, not downgraded", func(t *testing.T) {
		w := perform(r, httptest.NewRequest(http.MethodGet, "/ws?token=garbage", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/limited", RateLimitMiddleware(RateLimitConfig{Capacity: 2, RefillRate: 1, KeyFunc: IPKeyFunc}), whoAmI)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		assert.Equal(t, http.StatusOK, perform(r, req).Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := perform(r, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodGet, "/limited", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	assert.Equal(t, http.StatusOK, perform(r, other).Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/health", whoAmI)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := perform(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := perform(r, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no origins configured does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() { CORS(nil) })
	})
}
