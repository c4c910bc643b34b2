package api

import (
	"github.com/gin-gonic/gin"
	"github.com/lingoarena/lingoarena-backend/internal/api/handlers"
	"github.com/lingoarena/lingoarena-backend/internal/api/middleware"
	"github.com/lingoarena/lingoarena-backend/internal/config"
	"github.com/lingoarena/lingoarena-backend/internal/service"
	"github.com/lingoarena/lingoarena-backend/internal/websocket"
	jwtutil "github.com/lingoarena/lingoarena-backend/pkg/jwt"
	"github.com/lingoarena/lingoarena-backend/pkg/ratelimit"
)

// Dependencies 라우터가 사용하는 서비스 모음 (cmd/server에서 구성)
type Dependencies struct {
	JWT                *jwtutil.JWTManager
	Hub                *websocket.Hub
	MatchmakingService *service.MatchmakingService
	RatingService      *service.RatingService

	// 선택: 설정되면 업그레이드 제한을 인스턴스 간에 공유
	RedisLimiter *ratelimit.RedisRateLimiter
	HealthChecks map[string]handlers.HealthCheckFunc
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Handler 초기화
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub)
	matchmakingHandler := handlers.NewMatchmakingHandler(deps.MatchmakingService, deps.Hub)
	ratingHandler := handlers.NewRatingHandler(deps.RatingService)

	// Health check
	router.GET("/health", healthHandler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoint (게스트 허용)
		v1.GET("/ws",
			middleware.UpgradeRateLimit(deps.RedisLimiter),
			middleware.OptionalAuth(deps.JWT),
			wsHandler.HandleWebSocket,
		)

		v1.GET("/matchmaking/stats", matchmakingHandler.GetStats)
		v1.GET("/tiers", handlers.ListTiers)

		ratings := v1.Group("/ratings")
		{
			ratings.GET("/:participantId", ratingHandler.GetRating)
			ratings.POST("/outcomes",
				middleware.Auth(deps.JWT),
				middleware.OutcomeRateLimit(),
				ratingHandler.ReportOutcome,
			)
		}
	}

	return router
}
