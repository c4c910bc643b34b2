package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lingoarena/lingoarena-backend/internal/api/middleware"
	"github.com/lingoarena/lingoarena-backend/internal/models"
	"github.com/lingoarena/lingoarena-backend/internal/rating"
	"github.com/lingoarena/lingoarena-backend/internal/service"
	"github.com/lingoarena/lingoarena-backend/pkg/logger"
)

type RatingHandler struct {
	ratingService *service.RatingService
}

func NewRatingHandler(ratingService *service.RatingService) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
	}
}

// GetRating godoc
// @Summary Get a participant's rating
// @Tags ratings
// @Produce json
// @Param participantId path string true "Participant ID"
// @Success 200 {object} models.RatingRecord
// @Failure 400 {object} map[string]string
// @Router /ratings/{participantId} [get]
func (h *RatingHandler) GetRating(c *gin.Context) {
	record, err := h.ratingService.GetRating(c.Request.Context(), c.Param("participantId"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to get rating", "participantId", c.Param("participantId"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get rating"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// ReportOutcome godoc
// @Summary Apply a match outcome to the caller's rating
// @Description Each (matchId, playerId) pair is applied at most once. The match must
// @Description have been created by the queue and the caller must have played in it.
// @Tags ratings
// @Accept json
// @Produce json
// @Param request body models.OutcomeReport true "Outcome"
// @Success 200 {object} models.RatingUpdate
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /ratings/outcomes [post]
func (h *RatingHandler) ReportOutcome(c *gin.Context) {
	var report models.OutcomeReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 본인 결과만 보고할 수 있다
	if report.ParticipantID != middleware.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": service.ErrIdentityMismatch.Error()})
		return
	}

	update, err := h.ratingService.ApplyOutcome(c.Request.Context(), report)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrMatchNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrDuplicateOutcome):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.Error("Failed to apply outcome", "matchId", report.MatchID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply outcome"})
		}
		return
	}

	c.JSON(http.StatusOK, update)
}

// ListTiers 티어 구간표
func ListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tiers": rating.Bands,
	})
}
