package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lingoarena/lingoarena-backend/internal/service"
	"github.com/lingoarena/lingoarena-backend/internal/websocket"
)

type MatchmakingHandler struct {
	matchmakingService *service.MatchmakingService
	hub                *websocket.Hub
}

func NewMatchmakingHandler(matchmakingService *service.MatchmakingService, hub *websocket.Hub) *MatchmakingHandler {
	return &MatchmakingHandler{
		matchmakingService: matchmakingService,
		hub:                hub,
	}
}

// GetStats godoc
// @Summary Matchmaking statistics
// @Description Waiting participants per (language, difficulty) bucket and totals
// @Tags matchmaking
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /matchmaking/stats [get]
func (h *MatchmakingHandler) GetStats(c *gin.Context) {
	stats, sessions := h.matchmakingService.Stats()

	c.JSON(http.StatusOK, gin.H{
		"waiting":     stats.Waiting,
		"buckets":     stats.Buckets,
		"sessions":    sessions,
		"connections": h.hub.Count(),
		"matchesMade": stats.MatchesMade,
		"aiMatches":   stats.AIMatches,
	})
}
