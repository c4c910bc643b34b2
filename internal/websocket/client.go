package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lingoarena/lingoarena-backend/internal/matchmaking"
	"github.com/lingoarena/lingoarena-backend/internal/models"
	"github.com/lingoarena/lingoarena-backend/pkg/ratelimit"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024

	sendBufferSize = 32
)

var (
	ErrClientClosed   = errors.New("websocket client closed")
	ErrSendBufferFull = errors.New("websocket send buffer full")
)

// Client WebSocket 클라이언트. matchmaking.Transport 구현
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	session *matchmaking.Session
	limiter *ratelimit.TokenBucket
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		limiter: ratelimit.NewTokenBucket(hub.messageBurst, hub.messageRate),
		logger:  hub.logger,
	}
}

// Send JSON으로 인코딩해 송신 버퍼에 넣는다. 버퍼가 가득 차면 실패로 본다
func (c *Client) Send(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump; the read pump exits once the connection drops.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

// readPump 클라이언트 메시지를 읽어 디스패처로 전달
// 종료 경로가 어떤 것이든 Disconnect가 반드시 호출된다
func (c *Client) readPump() {
	defer func() {
		c.hub.dispatcher.Disconnect(c.session)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.String("sessionId", c.session.ID()),
					zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.hub.dispatcher.Reject(c.session, models.ErrorCodeRateLimited, "too many messages")
			continue
		}
		c.hub.dispatcher.HandleMessage(c.session, data)
	}
}

// writePump 송신 버퍼의 메시지를 소켓에 기록하고 주기적으로 ping 전송
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("Failed to write message",
					zap.String("sessionId", c.session.ID()),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs WebSocket 연결 업그레이드 후 세션을 열고 펌프 시작
// authID는 인증된 경우의 참가자 ID (게스트는 빈 문자열)
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, authID string) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := newClient(hub, conn)
	client.session = hub.dispatcher.Open(client, authID)
	select {
	case hub.register <- client:
	case <-hub.done:
		hub.dispatcher.Disconnect(client.session)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
