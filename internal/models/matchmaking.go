package models

import (
	"fmt"
	"strings"
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty 대소문자 구분 없이 난이도 파싱
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyEasy:
		return DifficultyEasy, nil
	case DifficultyMedium:
		return DifficultyMedium, nil
	case DifficultyHard:
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

type QueueState string

const (
	QueueStateIdle    QueueState = "idle"
	QueueStateWaiting QueueState = "waiting"
	QueueStateMatched QueueState = "matched"
	QueueStateClosed  QueueState = "closed"
)

// Criteria 매칭 조건 (언어, 난이도, 선택적 토픽)
type Criteria struct {
	Language   string     `json:"language"`
	Difficulty Difficulty `json:"difficulty"`
	Topic      string     `json:"topic,omitempty"`
}

// BucketKey 언어+난이도 버킷 키 (언어는 소문자로 정규화)
func (c Criteria) BucketKey() string {
	return strings.ToLower(strings.TrimSpace(c.Language)) + "|" + string(c.Difficulty)
}

// Participant identity and skill snapshot taken when a join request is accepted.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
}

// AIParticipantID marks the synthetic opponent in a Match.
const AIParticipantID = "ai-opponent"

type Match struct {
	ID         string         `json:"matchId"`
	Players    [2]Participant `json:"participants"`
	Language   string         `json:"language"`
	Difficulty Difficulty     `json:"difficulty"`
	Topic      string         `json:"topic,omitempty"`
	IsAI       bool           `json:"isAI"`
	// StartsFirst holds the participant id of the side that opens the conversation.
	StartsFirst string    `json:"startsFirst"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Opponent 주어진 참가자의 상대 반환
func (m *Match) Opponent(participantID string) (Participant, bool) {
	switch participantID {
	case m.Players[0].ID:
		return m.Players[1], true
	case m.Players[1].ID:
		return m.Players[0], true
	}
	return Participant{}, false
}
