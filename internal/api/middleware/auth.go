package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwtutil "github.com/lingoarena/lingoarena-backend/pkg/jwt"
)

// gin context keys set by the auth middlewares
const (
	ContextUserID   = "userId"
	ContextUsername = "username"
)

// Auth JWT 인증 미들웨어 (필수)
func Auth(jwtManager *jwtutil.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		if !authenticate(c, jwtManager, token) {
			return
		}
		c.Next()
	}
}

// OptionalAuth 토큰이 있으면 검증하고, 없으면 게스트로 통과
// 브라우저 WebSocket은 헤더를 붙일 수 없으므로 token 쿼리도 허용
func OptionalAuth(jwtManager *jwtutil.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			token = c.Query("token")
		}
		if token == "" {
			c.Next()
			return
		}

		if !authenticate(c, jwtManager, token) {
			return
		}
		c.Next()
	}
}

// bearerToken "Bearer <token>" 형식 파싱
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func authenticate(c *gin.Context, jwtManager *jwtutil.JWTManager, token string) bool {
	claims, err := jwtManager.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid or expired token",
		})
		c.Abort()
		return false
	}

	// 검증 성공 - 사용자 정보를 context에 저장
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUsername, claims.Username)
	return true
}

// UserID 인증된 사용자 ID (게스트는 빈 문자열)
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
