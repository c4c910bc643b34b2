package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lingoarena/lingoarena-backend/internal/api"
	"github.com/lingoarena/lingoarena-backend/internal/api/handlers"
	"github.com/lingoarena/lingoarena-backend/internal/config"
	"github.com/lingoarena/lingoarena-backend/internal/matchmaking"
	"github.com/lingoarena/lingoarena-backend/internal/repository"
	"github.com/lingoarena/lingoarena-backend/internal/service"
	"github.com/lingoarena/lingoarena-backend/internal/websocket"
	"github.com/lingoarena/lingoarena-backend/pkg/database"
	"github.com/lingoarena/lingoarena-backend/pkg/distributed"
	jwtutil "github.com/lingoarena/lingoarena-backend/pkg/jwt"
	"github.com/lingoarena/lingoarena-backend/pkg/logger"
	"github.com/lingoarena/lingoarena-backend/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	if err := logger.Init(cfg.LogLevel, cfg.Env); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	instanceID := uuid.NewString()
	logger.Info("Starting LingoArena Backend",
		"port", cfg.Port,
		"env", cfg.Env,
		"ratingStore", cfg.RatingStore,
		"instanceId", instanceID,
	)

	healthChecks := map[string]handlers.HealthCheckFunc{}

	// Redis 연결 (선택)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		defer redisClient.Close()
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		logger.Info("Redis connection established")
	}

	// 데이터베이스 연결 (선택)
	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.EnsureSchema(ctx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to apply database schema", "error", err)
		}
		healthChecks["postgres"] = db.PingContext
	}

	// 레이팅 저장소 / 결과 중복 방지
	var store service.RatingStore
	switch cfg.RatingStore {
	case config.RatingStorePostgres:
		store = repository.NewPostgresRatingStore(db)
	case config.RatingStoreRedis:
		store = repository.NewRedisRatingStore(redisClient)
	default:
		store = repository.NewMemoryRatingStore()
	}

	var claims service.OutcomeClaimer
	switch {
	case redisClient != nil:
		claims = distributed.NewOutcomeClaims(redisClient, instanceID, 0)
	case db != nil:
		claims = repository.NewPostgresOutcomeClaims(db)
	default:
		claims = repository.NewMemoryOutcomeClaims()
	}

	// 결과 보고는 큐가 만든 매치에 대해서만 받는다
	var matchRegistry interface {
		service.MatchRecorder
		service.MatchLookup
	}
	if db != nil {
		matchRegistry = repository.NewMatchRepository(db)
	} else {
		matchRegistry = repository.NewMemoryMatchRepository(repository.DefaultMatchHistorySize)
	}

	ratingService := service.NewRatingService(store, claims, matchRegistry, service.DefaultStartElo, logger.Named("rating"))

	// Matchmaking Service 초기화 및 시작
	queue := matchmaking.NewQueue(matchmaking.WithAIFallback(cfg.AIFallbackTimeout, cfg.AIOpponentName))
	mmOpts := []service.MatchmakingOption{
		service.WithPairingInterval(cfg.PairingInterval),
		service.WithMatchRecorder(matchRegistry),
	}
	if redisClient != nil {
		bus := distributed.NewEventBus(redisClient, cfg.MatchEventsChannel, logger.Named("events"))
		mmOpts = append(mmOpts, service.WithMatchEventPublisher(bus))
	}
	matchmakingService := service.NewMatchmakingService(queue, logger.Named("matchmaking"), mmOpts...)
	matchmakingService.Start()

	// WebSocket Hub 초기화 및 시작
	hub := websocket.NewHub(matchmakingService, websocket.HubConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MessageRate:    cfg.WSMessageRate,
		MessageBurst:   cfg.WSMessageBurst,
	}, logger.Named("websocket"))
	go hub.Run()

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("JWT_SECRET not set, using an ephemeral secret; tokens will not survive restarts")
	}

	deps := api.Dependencies{
		JWT:                jwtutil.NewJWTManager(secret, cfg.JWTExpiration),
		Hub:                hub,
		MatchmakingService: matchmakingService,
		RatingService:      ratingService,
		HealthChecks:       healthChecks,
	}
	if redisClient != nil {
		deps.RedisLimiter = ratelimit.NewRedisRateLimiter(redisClient, "ratelimit:ws:")
	}

	router := api.SetupRouter(cfg, deps)

	// 서버 설정. WebSocket 연결은 자체 데드라인을 사용한다
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// 서버 시작 (고루틴)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 10초 타임아웃으로 종료
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown은 하이재킹된 WebSocket 연결을 닫지 않는다
	hub.Stop()
	matchmakingService.Stop()
	matchmakingService.CloseAll()

	logger.Info("Server exited")
}

func connectRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
