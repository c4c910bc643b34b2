package models

type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// RatingRecord 참가자별 저장된 레이팅
type RatingRecord struct {
	ParticipantID string `json:"participantId" db:"participant_id"`
	Rating        int    `json:"rating" db:"rating"`
	Tier          string `json:"tier" db:"tier"`
}

// OutcomeReport 외부 게임 컴포넌트가 매치 종료 후 보내는 결과
type OutcomeReport struct {
	MatchID       string  `json:"matchId" binding:"required"`
	ParticipantID string  `json:"playerId" binding:"required"`
	Outcome       Outcome `json:"outcome" binding:"required"`
	// Difficulty는 선택. 주어지면 기록된 매치와 같아야 한다
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

type PromotionInfo struct {
	Promoted bool   `json:"promoted"`
	OldTier  string `json:"oldTier,omitempty"`
	NewTier  string `json:"newTier,omitempty"`
}

// RatingUpdate 결과 적용 후 표시/저장용 정보
type RatingUpdate struct {
	ParticipantID string        `json:"playerId"`
	MatchID       string        `json:"matchId"`
	OldRating     int           `json:"oldRating"`
	NewRating     int           `json:"newRating"`
	Delta         int           `json:"delta"`
	Tier          string        `json:"tier"`
	Promotion     PromotionInfo `json:"promotion"`
}
