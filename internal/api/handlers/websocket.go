package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/lingoarena/lingoarena-backend/internal/api/middleware"
	"github.com/lingoarena/lingoarena-backend/internal/websocket"
)

// WebSocketHandler WebSocket 연결 처리
type WebSocketHandler struct {
	hub *websocket.Hub
}

// NewWebSocketHandler WebSocketHandler 생성
func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// HandleWebSocket 매칭 프로토콜 WebSocket 엔드포인트
// 토큰이 있으면 인증된 ID가 세션에 고정되고, 없으면 게스트로 연결된다
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	websocket.ServeWs(h.hub, c.Writer, c.Request, middleware.UserID(c))
}
