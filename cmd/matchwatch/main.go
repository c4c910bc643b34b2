// Command matchwatch prints match_created events from the matchmaking channel as
// JSON lines, for wiring up and debugging the game component.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lingoarena/lingoarena-backend/pkg/distributed"
	"github.com/lingoarena/lingoarena-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	redisURL := flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL")
	channel := flag.String("channel", os.Getenv("MATCH_EVENTS_CHANNEL"), "event channel (default matchmaking:events)")
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(*redisURL)
	if err != nil {
		log.Fatalf("invalid redis url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	if err := logger.Init("warn", "development"); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := distributed.NewEventBus(client, *channel, logger.Named("matchwatch"))
	enc := json.NewEncoder(os.Stdout)

	err = bus.Subscribe(ctx, nil, func(e distributed.MatchEvent) error {
		return enc.Encode(e)
	})
	if err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
