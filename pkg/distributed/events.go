package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultEventChannel   = "matchmaking:events"
	EventTypeMatchCreated = "match_created"
)

// MatchEvent 매칭 이벤트
type MatchEvent struct {
	Type         string    `json:"type"`
	MatchID      string    `json:"matchId"`
	Language     string    `json:"language"`
	Difficulty   string    `json:"difficulty"`
	Topic        string    `json:"topic,omitempty"`
	IsAI         bool      `json:"isAI"`
	Participants []string  `json:"participants"`
	StartsFirst  string    `json:"startsFirst"`
	CreatedAt    time.Time `json:"createdAt"`
	InstanceID   string    `json:"instanceId,omitempty"`
}

func NewMatchCreatedEvent(matchID, language, difficulty, topic string, isAI bool, participants []string, startsFirst string, createdAt time.Time) MatchEvent {
	return MatchEvent{
		Type:         EventTypeMatchCreated,
		MatchID:      matchID,
		Language:     language,
		Difficulty:   difficulty,
		Topic:        topic,
		IsAI:         isAI,
		Participants: participants,
		StartsFirst:  startsFirst,
		CreatedAt:    createdAt,
	}
}

// EventBus Redis Pub/Sub 기반 매치 이벤트 발행/구독
type EventBus struct {
	client     *redis.Client
	channel    string
	instanceID string // 인스턴스 고유 ID
	logger     *zap.Logger
}

func NewEventBus(client *redis.Client, channel string, logger *zap.Logger) *EventBus {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &EventBus{
		client:     client,
		channel:    channel,
		instanceID: uuid.New().String(),
		logger:     logger,
	}
}

func (b *EventBus) InstanceID() string { return b.instanceID }

// PublishMatchEvent 매치 이벤트 발행
func (b *EventBus) PublishMatchEvent(ctx context.Context, event MatchEvent) error {
	event.InstanceID = b.instanceID

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Published match event",
		zap.String("type", event.Type),
		zap.String("matchId", event.MatchID))
	return nil
}

// Subscribe ctx가 취소될 때까지 이벤트를 handler로 전달
// ready는 구독이 확인된 뒤 한 번 닫힌다 (nil 가능)
func (b *EventBus) Subscribe(ctx context.Context, ready chan<- struct{}, handler func(MatchEvent) error) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	b.logger.Info("Match event subscriber started",
		zap.String("instanceId", b.instanceID),
		zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event MatchEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("Failed to unmarshal event", zap.Error(err))
				continue
			}
			if err := handler(event); err != nil {
				b.logger.Error("Failed to handle event",
					zap.String("matchId", event.MatchID),
					zap.Error(err))
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
