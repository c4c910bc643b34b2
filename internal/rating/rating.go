package rating

import (
	"errors"
	"fmt"

	"github.com/lingoarena/lingoarena-backend/internal/models"
)

// ErrInvalidArgument is returned for difficulties or outcomes outside the closed
// sets validated at the protocol boundary.
var ErrInvalidArgument = errors.New("invalid argument")

type Tier string

const (
	TierA1 Tier = "A1"
	TierA2 Tier = "A2"
	TierB1 Tier = "B1"
	TierB2 Tier = "B2"
	TierC1 Tier = "C1"
	TierC2 Tier = "C2"
)

// Band 티어 구간 [Min, Max). Max == 0 이면 상한 없음
type Band struct {
	Tier Tier `json:"tier"`
	Min  int  `json:"min"`
	Max  int  `json:"max,omitempty"`
}

// Bands must stay sorted, start at 0 and chain Max to the next Min.
var Bands = []Band{
	{Tier: TierA1, Min: 0, Max: 900},
	{Tier: TierA2, Min: 900, Max: 1100},
	{Tier: TierB1, Min: 1100, Max: 1300},
	{Tier: TierB2, Min: 1300, Max: 1500},
	{Tier: TierC1, Min: 1500, Max: 1700},
	{Tier: TierC2, Min: 1700},
}

// baseDelta 난이도별 기본 변동 폭
var baseDelta = map[models.Difficulty]int{
	models.DifficultyEasy:   8,
	models.DifficultyMedium: 12,
	models.DifficultyHard:   16,
}

// Result 레이팅 계산 결과. NewRating == current + Delta 항상 성립
type Result struct {
	NewRating int
	Delta     int
}

// BaseDelta returns the unsigned rating change for a difficulty.
func BaseDelta(difficulty models.Difficulty) (int, error) {
	base, ok := baseDelta[difficulty]
	if !ok {
		return 0, fmt.Errorf("%w: difficulty %q", ErrInvalidArgument, difficulty)
	}
	return base, nil
}

// ComputeDelta 매치 결과와 난이도에 따른 새 레이팅 계산
// 0 아래로 내려가지 않으며, 클램프된 경우 Delta는 실제 적용된 변화량
func ComputeDelta(current int, outcome models.Outcome, difficulty models.Difficulty) (Result, error) {
	base, err := BaseDelta(difficulty)
	if err != nil {
		return Result{}, err
	}

	var signed int
	switch outcome {
	case models.OutcomeWin:
		signed = base
	case models.OutcomeLoss:
		signed = -base
	default:
		return Result{}, fmt.Errorf("%w: outcome %q", ErrInvalidArgument, outcome)
	}

	if current < 0 {
		current = 0
	}
	newRating := current + signed
	if newRating < 0 {
		newRating = 0
	}

	return Result{
		NewRating: newRating,
		Delta:     newRating - current,
	}, nil
}

// TierFor maps a rating to its band. Negative ratings are treated as 0.
func TierFor(r int) Tier {
	for i := len(Bands) - 1; i >= 0; i-- {
		if r >= Bands[i].Min {
			return Bands[i].Tier
		}
	}
	return Bands[0].Tier
}

// Promotion 티어 변경 정보. 승급/강등 모두 Promoted=true로 보고
type Promotion struct {
	Promoted bool
	OldTier  Tier
	NewTier  Tier
}

// Demotion reports whether the tier change went down the table.
func (p Promotion) Demotion() bool {
	return p.Promoted && tierIndex(p.NewTier) < tierIndex(p.OldTier)
}

// CheckPromotion 이전/이후 레이팅의 티어 비교
func CheckPromotion(oldRating, newRating int) Promotion {
	oldTier := TierFor(oldRating)
	newTier := TierFor(newRating)
	if oldTier == newTier {
		return Promotion{}
	}
	return Promotion{
		Promoted: true,
		OldTier:  oldTier,
		NewTier:  newTier,
	}
}

func tierIndex(t Tier) int {
	for i, b := range Bands {
		if b.Tier == t {
			return i
		}
	}
	return -1
}
