// Package client is a Go client for the matchmaking websocket protocol. It keeps
// an explicit state machine so callers cannot send messages the server would
// reject for being out of order.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lingoarena/lingoarena-backend/internal/models"
	"go.uber.org/zap"
)

type State int

const (
	StateDisconnected State = iota
	StateIdle
	StateSearching
	StateMatched
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateMatched:
		return "matched"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrNotConnected = errors.New("client: not connected")
	ErrInvalidState = errors.New("client: invalid state for operation")
)

const (
	writeWait      = 5 * time.Second
	eventBuffer    = 8
	defaultTimeout = 5 * time.Second
)

// Options for Connect. Token is optional; without it the server treats the
// connection as a guest.
type Options struct {
	Token            string
	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

// JoinRequest is the client-side view of a join_queue message.
type JoinRequest struct {
	PlayerID   string
	Username   string
	Elo        *int
	Language   string
	Difficulty Difficulty
	Topic      string
}

type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger

	mu          sync.Mutex
	state       State
	pendingJoin bool

	writeMu sync.Mutex

	matches chan MatchFound
	errs    chan ServerError
	done    chan struct{}
}

// Connect 서버에 연결하고 Idle 상태의 클라이언트 반환
func Connect(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	hdr := http.Header{}
	if opts.Token != "" {
		hdr.Set("Authorization", "Bearer "+opts.Token)
		u, err := neturl.Parse(url)
		if err != nil {
			return nil, fmt.Errorf("invalid url: %w", err)
		}
		q := u.Query()
		q.Set("token", opts.Token)
		u.RawQuery = q.Encode()
		url = u.String()
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, hdr)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed with %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{
		conn:    conn,
		logger:  opts.Logger,
		state:   StateIdle,
		matches: make(chan MatchFound, eventBuffer),
		errs:    make(chan ServerError, eventBuffer),
		done:    make(chan struct{}),
	}
	go c.reader()
	return c, nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MatchFound delivers match_found messages. Closed when the connection ends.
func (c *Client) MatchFound() <-chan MatchFound { return c.matches }

// Errors delivers server-side rejections. Closed when the connection ends.
func (c *Client) Errors() <-chan ServerError { return c.errs }

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// JoinQueue Idle 또는 Matched 상태에서만 가능
func (c *Client) JoinQueue(req JoinRequest) error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected:
		c.mu.Unlock()
		return ErrNotConnected
	case StateSearching:
		c.mu.Unlock()
		return ErrInvalidState
	}
	prev := c.state
	c.state = StateSearching
	c.pendingJoin = true
	c.mu.Unlock()

	err := c.write(models.JoinQueueRequest{
		Type:       models.MessageJoinQueue,
		PlayerID:   req.PlayerID,
		Username:   req.Username,
		Elo:        req.Elo,
		Language:   req.Language,
		Difficulty: string(req.Difficulty),
		Topic:      req.Topic,
	})
	if err != nil {
		c.mu.Lock()
		if c.state == StateSearching {
			c.state = prev
			c.pendingJoin = false
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// LeaveQueue 검색 취소. 검색 중이 아니면 아무 것도 하지 않는다
func (c *Client) LeaveQueue() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.state != StateSearching {
		c.mu.Unlock()
		return nil
	}
	c.state = StateIdle
	c.pendingJoin = false
	c.mu.Unlock()

	return c.write(models.Envelope{Type: models.MessageLeaveQueue})
}

// Close 검색 중이면 leave_queue를 먼저 보낸다 (실패해도 무시, 서버는 연결 종료를 이탈로 처리)
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	searching := c.state == StateSearching
	c.state = StateDisconnected
	c.mu.Unlock()

	if searching {
		_ = c.write(models.Envelope{Type: models.MessageLeaveQueue})
	}

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) write(msg interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) reader() {
	defer func() {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.conn.Close()
		close(c.matches)
		close(c.errs)
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("matchmaking connection closed", zap.Error(err))
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("ignoring malformed server message", zap.Error(err))
			continue
		}

		switch env.Type {
		case models.MessageQueueJoined:
			c.mu.Lock()
			c.pendingJoin = false
			c.mu.Unlock()

		case models.MessageMatchFound:
			var msg MatchFound
			if err := json.Unmarshal(data, &msg); err != nil {
				c.logger.Warn("ignoring malformed match_found", zap.Error(err))
				continue
			}
			// 서버 판단이 우선: 이탈 요청과 엇갈려 도착한 매치도 유효하다
			c.mu.Lock()
			if c.state != StateDisconnected {
				c.state = StateMatched
			}
			c.pendingJoin = false
			c.mu.Unlock()
			c.deliverMatch(msg)

		case models.MessageError:
			var msg ServerError
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			c.mu.Lock()
			if c.pendingJoin && c.state == StateSearching && msg.Code != ErrorCodeInvalidState {
				c.state = StateIdle
				c.pendingJoin = false
			}
			c.mu.Unlock()
			c.deliverError(msg)
		}
	}
}

func (c *Client) deliverMatch(msg MatchFound) {
	select {
	case c.matches <- msg:
	default:
		c.logger.Warn("match_found dropped, consumer is not reading", zap.String("matchId", msg.MatchID))
	}
}

func (c *Client) deliverError(msg ServerError) {
	select {
	case c.errs <- msg:
	default:
	}
}
