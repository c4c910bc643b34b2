package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lingoarena/lingoarena-backend/internal/matchmaking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header (native client)", nil, "", true},
		{"listed origin", []string{"http://localhost:3000"}, "http://localhost:3000", true},
		{"unlisted origin", []string{"http://localhost:3000"}, "http://evil.example", false},
		{"wildcard", []string{"*"}, "http://anything.example", true},
		{"nothing allowed", nil, "http://localhost:3000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(req))
		})
	}
}

func TestNewHub_Defaults(t *testing.T) {
	h := NewHub(nil, HubConfig{}, nil)
	assert.Equal(t, int64(5), h.messageRate)
	assert.Equal(t, int64(10), h.messageBurst)
	assert.Equal(t, 0, h.Count())
}

func TestClient_SendBuffer(t *testing.T) {
	h := NewHub(nil, HubConfig{}, nil)
	c := newClient(h, nil)

	for i := 0; i < sendBufferSize; i++ {
		assert.NoError(t, c.Send(map[string]int{"n": i}))
	}
	assert.ErrorIs(t, c.Send(map[string]string{"type": "overflow"}), ErrSendBufferFull)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "close is idempotent")
	assert.ErrorIs(t, c.Send(map[string]string{"type": "late"}), ErrClientClosed)
}

func TestClient_SendRejectsUnencodable(t *testing.T) {
	h := NewHub(nil, HubConfig{}, nil)
	c := newClient(h, nil)

	assert.Error(t, c.Send(make(chan int)))
}

// recordingDispatcher 열린 세션과 Disconnect 호출을 기록
type recordingDispatcher struct {
	queue *matchmaking.Queue

	mu           sync.Mutex
	open         map[string]*matchmaking.Session
	disconnected []string
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{
		queue: matchmaking.NewQueue(),
		open:  make(map[string]*matchmaking.Session),
	}
}

func (d *recordingDispatcher) Open(t matchmaking.Transport, authID string) *matchmaking.Session {
	sess := d.queue.NewSession(t)
	d.mu.Lock()
	d.open[sess.ID()] = sess
	d.mu.Unlock()
	return sess
}

func (d *recordingDispatcher) HandleMessage(*matchmaking.Session, []byte) {}

func (d *recordingDispatcher) Reject(*matchmaking.Session, string, string) {}

func (d *recordingDispatcher) Disconnect(s *matchmaking.Session) {
	s.Close()
	d.mu.Lock()
	delete(d.open, s.ID())
	d.disconnected = append(d.disconnected, s.ID())
	d.mu.Unlock()
}

func (d *recordingDispatcher) counts() (open, disconnected int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.open), len(d.disconnected)
}

func TestServeWs_AfterStopDisconnectsSession(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	hub := NewHub(dispatcher, HubConfig{}, zap.NewNop())
	hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r, "")
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool {
		open, disconnected := dispatcher.counts()
		return open == 0 && disconnected == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "connection is closed by the stopped hub")
}
