package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/lingoarena/lingoarena-backend/pkg/database"
	"github.com/redis/go-redis/v9"
)

// UpdateFunc 현재 레이팅을 받아 새 레이팅을 반환
type UpdateFunc = func(current int) (int, error)

// ErrTooManyConflicts Redis 낙관적 트랜잭션이 재시도 한도를 넘김
var ErrTooManyConflicts = errors.New("rating update conflicted too many times")

// MemoryRatingStore 단일 프로세스용 레이팅 저장소
type MemoryRatingStore struct {
	mu      sync.Mutex
	ratings map[string]int
}

func NewMemoryRatingStore() *MemoryRatingStore {
	return &MemoryRatingStore{ratings: make(map[string]int)}
}

func (s *MemoryRatingStore) Get(ctx context.Context, participantID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.ratings[participantID]
	return r, ok, nil
}

// Update fn을 락 안에서 실행해 읽기-수정-쓰기를 원자적으로 처리
func (s *MemoryRatingStore) Update(ctx context.Context, participantID string, initial int, fn UpdateFunc) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.ratings[participantID]
	if !ok {
		current = initial
	}
	next, err := fn(current)
	if err != nil {
		return 0, 0, err
	}
	s.ratings[participantID] = next
	return current, next, nil
}

// PostgresRatingStore ratings 테이블 기반 저장소
type PostgresRatingStore struct {
	db *database.DB
}

func NewPostgresRatingStore(db *database.DB) *PostgresRatingStore {
	return &PostgresRatingStore{db: db}
}

func (s *PostgresRatingStore) Get(ctx context.Context, participantID string) (int, bool, error) {
	var rating int
	err := s.db.QueryRowContext(ctx,
		`SELECT rating FROM ratings WHERE participant_id = $1`, participantID,
	).Scan(&rating)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get rating: %w", err)
	}
	return rating, true, nil
}

// Update 행을 FOR UPDATE로 잠근 뒤 갱신. 행이 없으면 initial로 먼저 생성
func (s *PostgresRatingStore) Update(ctx context.Context, participantID string, initial int, fn UpdateFunc) (int, int, error) {
	var current, next int

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ratings (participant_id, rating)
			VALUES ($1, $2)
			ON CONFLICT (participant_id) DO NOTHING
		`, participantID, initial); err != nil {
			return fmt.Errorf("failed to initialize rating: %w", err)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT rating FROM ratings WHERE participant_id = $1 FOR UPDATE`, participantID,
		).Scan(&current); err != nil {
			return fmt.Errorf("failed to lock rating: %w", err)
		}

		var err error
		if next, err = fn(current); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE ratings SET rating = $2, updated_at = NOW()
			WHERE participant_id = $1
		`, participantID, next); err != nil {
			return fmt.Errorf("failed to update rating: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return current, next, nil
}

// RedisRatingStore rating:<id> 문자열 키 기반 저장소
type RedisRatingStore struct {
	client     *redis.Client
	keyPrefix  string
	maxRetries int
}

func NewRedisRatingStore(client *redis.Client) *RedisRatingStore {
	return &RedisRatingStore{
		client:     client,
		keyPrefix:  "rating:",
		maxRetries: 10,
	}
}

func (s *RedisRatingStore) key(participantID string) string {
	return s.keyPrefix + participantID
}

func (s *RedisRatingStore) Get(ctx context.Context, participantID string) (int, bool, error) {
	rating, err := s.client.Get(ctx, s.key(participantID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get rating: %w", err)
	}
	return rating, true, nil
}

// Update WATCH/MULTI 낙관적 트랜잭션. 동시 수정으로 실패하면 재시도
func (s *RedisRatingStore) Update(ctx context.Context, participantID string, initial int, fn UpdateFunc) (int, int, error) {
	key := s.key(participantID)
	var current, next int

	txf := func(tx *redis.Tx) error {
		r, err := tx.Get(ctx, key).Int()
		switch {
		case err == redis.Nil:
			r = initial
		case err != nil:
			return fmt.Errorf("failed to get rating: %w", err)
		}

		n, err := fn(r)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, n, 0)
			return nil
		})
		if err != nil {
			return err
		}
		current, next = r, n
		return nil
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return current, next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return 0, 0, err
	}
	return 0, 0, ErrTooManyConflicts
}
