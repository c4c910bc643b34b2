package websocket

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lingoarena/lingoarena-backend/internal/matchmaking"
	"go.uber.org/zap"
)

// Dispatcher receives the lifecycle and inbound messages of every connection.
type Dispatcher interface {
	Open(t matchmaking.Transport, authID string) *matchmaking.Session
	HandleMessage(s *matchmaking.Session, data []byte)
	Reject(s *matchmaking.Session, code, message string)
	Disconnect(s *matchmaking.Session)
}

type HubConfig struct {
	AllowedOrigins []string
	// MessageRate 초당 허용 메시지 수, MessageBurst 버킷 크기
	MessageRate  int64
	MessageBurst int64
}

// Hub WebSocket 연결 관리
type Hub struct {
	// 세션별 연결 저장 (sessionID -> *Client)
	clients map[string]*Client
	stopped bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	dispatcher   Dispatcher
	upgrader     websocket.Upgrader
	messageRate  int64
	messageBurst int64
	logger       *zap.Logger
}

// NewHub Hub 생성
func NewHub(dispatcher Dispatcher, cfg HubConfig, logger *zap.Logger) *Hub {
	if cfg.MessageRate <= 0 {
		cfg.MessageRate = 5
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = 10
	}

	h := &Hub{
		clients:      make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		done:         make(chan struct{}),
		dispatcher:   dispatcher,
		messageRate:  cfg.MessageRate,
		messageBurst: cfg.MessageBurst,
		logger:       logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Run Hub 실행. Stop이 호출될 때까지 등록/해제 처리
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.done:
			return
		}
	}
}

// Stop 모든 연결을 닫고 Run 종료
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.session.Close()
	}
	close(h.done)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Stop 이후 도착한 등록은 바로 닫는다
	if h.stopped {
		client.session.Close()
		return
	}
	h.clients[client.session.ID()] = client
	h.logger.Debug("WebSocket client registered",
		zap.String("sessionId", client.session.ID()),
		zap.Int("totalClients", len(h.clients)))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client.session.ID()]; exists {
		delete(h.clients, client.session.ID())
		h.logger.Debug("WebSocket client unregistered",
			zap.String("sessionId", client.session.ID()),
			zap.Int("totalClients", len(h.clients)))
	}
}

// Count 현재 연결 수
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
