package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"github.com/lingoarena/lingoarena-backend/internal/models"
	"github.com/lingoarena/lingoarena-backend/pkg/database"
)

type MatchRepository struct {
	db *database.DB
}

func NewMatchRepository(db *database.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// RecordMatch 생성된 매치 기록. 같은 ID로 다시 기록해도 무시된다
func (r *MatchRepository) RecordMatch(ctx context.Context, match *models.Match) error {
	ids := make([]string, 0, len(match.Players))
	for _, p := range match.Players {
		ids = append(ids, p.ID)
	}

	query := `
		INSERT INTO matches (id, language, difficulty, topic, is_ai, participant_ids, starts_first, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		match.ID,
		match.Language,
		string(match.Difficulty),
		match.Topic,
		match.IsAI,
		pq.Array(ids),
		match.StartsFirst,
		match.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record match: %w", err)
	}
	return nil
}

// FindByID 매치 조회. 없으면 nil
// 참가자는 ID만 복원된다
func (r *MatchRepository) FindByID(ctx context.Context, id string) (*models.Match, error) {
	query := `
		SELECT id, language, difficulty, topic, is_ai, participant_ids, starts_first, created_at
		FROM matches
		WHERE id = $1
	`

	var (
		match      models.Match
		difficulty string
		ids        []string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.Language,
		&difficulty,
		&match.Topic,
		&match.IsAI,
		pq.Array(&ids),
		&match.StartsFirst,
		&match.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}

	match.Difficulty = models.Difficulty(difficulty)
	for i := 0; i < len(ids) && i < len(match.Players); i++ {
		match.Players[i].ID = ids[i]
	}
	return &match, nil
}

const DefaultMatchHistorySize = 10000

// MemoryMatchRepository 최근 매치만 보관하는 단일 인스턴스용 저장소
// 가득 차면 가장 오래된 매치부터 버린다
type MemoryMatchRepository struct {
	mu      sync.RWMutex
	matches map[string]models.Match
	order   []string
	limit   int
}

func NewMemoryMatchRepository(limit int) *MemoryMatchRepository {
	if limit <= 0 {
		limit = DefaultMatchHistorySize
	}
	return &MemoryMatchRepository{
		matches: make(map[string]models.Match),
		limit:   limit,
	}
}

func (r *MemoryMatchRepository) RecordMatch(ctx context.Context, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.matches[match.ID]; exists {
		return nil
	}
	if len(r.order) >= r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.matches, oldest)
	}
	r.matches[match.ID] = *match
	r.order = append(r.order, match.ID)
	return nil
}

func (r *MemoryMatchRepository) FindByID(ctx context.Context, id string) (*models.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match, ok := r.matches[id]
	if !ok {
		return nil, nil
	}
	return &match, nil
}
