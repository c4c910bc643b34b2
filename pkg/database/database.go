package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/lingoarena/lingoarena-backend/pkg/logger"
)

type DB struct {
	*sql.DB
}

// schema 서버 시작 시 적용되는 테이블 정의 (멱등)
const schema = `
CREATE TABLE IF NOT EXISTS ratings (
	participant_id TEXT PRIMARY KEY,
	rating         INTEGER NOT NULL CHECK (rating >= 0),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS matches (
	id              TEXT PRIMARY KEY,
	language        TEXT NOT NULL,
	difficulty      TEXT NOT NULL,
	topic           TEXT NOT NULL DEFAULT '',
	is_ai           BOOLEAN NOT NULL DEFAULT FALSE,
	participant_ids TEXT[] NOT NULL,
	starts_first    TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_matches_created_at ON matches (created_at DESC);

CREATE TABLE IF NOT EXISTS rating_outcomes (
	match_id       TEXT NOT NULL,
	participant_id TEXT NOT NULL,
	applied_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (match_id, participant_id)
);
`

// Connect 데이터베이스 연결
func Connect(databaseURL string) (*DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 연결 풀 설정
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 연결 테스트
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connected successfully")

	return &DB{db}, nil
}

// EnsureSchema 필요한 테이블 생성
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// WithTx fn을 트랜잭션 안에서 실행. fn이 에러를 반환하면 롤백
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close 데이터베이스 연결 종료
func (db *DB) Close() error {
	return db.DB.Close()
}
