package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lingoarena/lingoarena-backend/internal/models"
	"github.com/lingoarena/lingoarena-backend/internal/rating"
	"go.uber.org/zap"
)

// RatingStore 참가자 레이팅 저장소
// Update는 fn을 한 번의 원자적 읽기-수정-쓰기로 실행하고 (이전, 이후) 값을 반환한다
type RatingStore interface {
	Get(ctx context.Context, participantID string) (int, bool, error)
	Update(ctx context.Context, participantID string, initial int, fn func(current int) (int, error)) (int, int, error)
}

// OutcomeClaimer (매치, 참가자)당 결과 적용을 한 번으로 제한
type OutcomeClaimer interface {
	ClaimOutcome(ctx context.Context, matchID, participantID string) (bool, func(context.Context) error, error)
}

// MatchLookup 큐가 만든 매치 조회. 없으면 (nil, nil)
type MatchLookup interface {
	FindByID(ctx context.Context, matchID string) (*models.Match, error)
}

type RatingService struct {
	store       RatingStore
	claims      OutcomeClaimer
	matches     MatchLookup
	startRating int
	logger      *zap.Logger
}

func NewRatingService(store RatingStore, claims OutcomeClaimer, matches MatchLookup, startRating int, logger *zap.Logger) *RatingService {
	if startRating < 0 {
		startRating = DefaultStartElo
	}
	return &RatingService{
		store:       store,
		claims:      claims,
		matches:     matches,
		startRating: startRating,
		logger:      logger,
	}
}

// GetRating 저장된 레이팅 조회. 기록이 없으면 시작 레이팅
func (s *RatingService) GetRating(ctx context.Context, participantID string) (*models.RatingRecord, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return nil, fmt.Errorf("%w: participant id is required", ErrInvalidInput)
	}

	r, ok, err := s.store.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		r = s.startRating
	}

	return &models.RatingRecord{
		ParticipantID: participantID,
		Rating:        r,
		Tier:          string(rating.TierFor(r)),
	}, nil
}

// ApplyOutcome 매치 결과를 레이팅에 반영
// 매치는 큐가 만든 것이어야 하고 보고자는 그 매치의 참가자여야 한다.
// 난이도는 기록된 매치의 난이도를 따른다
func (s *RatingService) ApplyOutcome(ctx context.Context, report models.OutcomeReport) (*models.RatingUpdate, error) {
	report, err := normalizeReport(report)
	if err != nil {
		return nil, err
	}

	match, err := s.matches.FindByID(ctx, report.MatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, report.MatchID)
	}
	if _, ok := match.Opponent(report.ParticipantID); !ok {
		return nil, ErrNotParticipant
	}
	if report.Difficulty != "" && report.Difficulty != match.Difficulty {
		return nil, fmt.Errorf("%w: difficulty does not match the recorded match", ErrInvalidInput)
	}
	report.Difficulty = match.Difficulty

	claimed, release, err := s.claims.ClaimOutcome(ctx, report.MatchID, report.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outcome: %w", err)
	}
	if !claimed {
		return nil, ErrDuplicateOutcome
	}

	oldRating, newRating, err := s.store.Update(ctx, report.ParticipantID, s.startRating, func(current int) (int, error) {
		res, err := rating.ComputeDelta(current, report.Outcome, report.Difficulty)
		if err != nil {
			return 0, err
		}
		return res.NewRating, nil
	})
	if err != nil {
		if relErr := release(ctx); relErr != nil {
			s.logger.Error("Failed to release outcome claim",
				zap.String("matchId", report.MatchID),
				zap.String("participantId", report.ParticipantID),
				zap.Error(relErr))
		}
		if errors.Is(err, rating.ErrInvalidArgument) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("failed to update rating: %w", err)
	}

	promo := rating.CheckPromotion(oldRating, newRating)
	update := &models.RatingUpdate{
		ParticipantID: report.ParticipantID,
		MatchID:       report.MatchID,
		OldRating:     oldRating,
		NewRating:     newRating,
		Delta:         newRating - oldRating,
		Tier:          string(rating.TierFor(newRating)),
		Promotion: models.PromotionInfo{
			Promoted: promo.Promoted,
			OldTier:  string(promo.OldTier),
			NewTier:  string(promo.NewTier),
		},
	}

	s.logger.Info("Rating updated",
		zap.String("participantId", update.ParticipantID),
		zap.String("matchId", update.MatchID),
		zap.Int("oldRating", update.OldRating),
		zap.Int("newRating", update.NewRating),
		zap.Int("delta", update.Delta),
		zap.Bool("tierChanged", promo.Promoted))

	return update, nil
}

func normalizeReport(r models.OutcomeReport) (models.OutcomeReport, error) {
	r.MatchID = strings.TrimSpace(r.MatchID)
	r.ParticipantID = strings.TrimSpace(r.ParticipantID)

	if r.MatchID == "" {
		return r, fmt.Errorf("%w: matchId is required", ErrInvalidInput)
	}
	if r.ParticipantID == "" {
		return r, fmt.Errorf("%w: playerId is required", ErrInvalidInput)
	}
	if r.ParticipantID == models.AIParticipantID {
		return r, fmt.Errorf("%w: the AI opponent has no rating", ErrInvalidInput)
	}

	r.Outcome = models.Outcome(strings.ToLower(strings.TrimSpace(string(r.Outcome))))
	if r.Outcome != models.OutcomeWin && r.Outcome != models.OutcomeLoss {
		return r, fmt.Errorf("%w: outcome must be win or loss", ErrInvalidInput)
	}

	// 생략하면 기록된 매치의 난이도 사용
	if r.Difficulty == "" {
		return r, nil
	}
	d, err := models.ParseDifficulty(string(r.Difficulty))
	if err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	r.Difficulty = d
	return r, nil
}
