package matchmaking

import (
	"errors"
	"sync"
	"time"

	"github.com/lingoarena/lingoarena-backend/internal/models"
)

var (
	ErrInvalidState  = errors.New("invalid state transition")
	ErrSessionClosed = errors.New("session closed")
)

// Transport is the outbound half of a live connection.
type Transport interface {
	Send(msg interface{}) error
	Close() error
}

// Session 한 참가자의 라이브 연결
//
// state, participant, criteria는 mu로 보호된다. 큐 멤버십이 바뀌는 전이는
// 항상 Queue.mu를 먼저 잡고 수행하므로 큐와 세션 상태가 어긋나는 구간이 없다.
type Session struct {
	id        string
	queue     *Queue
	transport Transport
	openedAt  time.Time

	mu          sync.Mutex
	state       models.QueueState
	participant models.Participant
	criteria    *models.Criteria
	matchID     string
	authID      string
}

func (s *Session) ID() string { return s.id }

func (s *Session) OpenedAt() time.Time { return s.openedAt }

func (s *Session) State() models.QueueState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Participant returns the identity snapshot taken at the last accepted join.
func (s *Session) Participant() models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participant
}

// Criteria returns the active criteria, or false when the session is not Waiting.
func (s *Session) Criteria() (models.Criteria, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.criteria == nil {
		return models.Criteria{}, false
	}
	return *s.criteria, true
}

// MatchID returns the id of the last match this session was placed in.
func (s *Session) MatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchID
}

// SetAuthenticatedID pins the participant id proven by the transport (e.g. a JWT).
func (s *Session) SetAuthenticatedID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authID = id
}

func (s *Session) AuthenticatedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authID
}

// Join 대기열 등록. Idle 또는 Matched(재대기) 상태에서만 가능
func (s *Session) Join(p models.Participant, c models.Criteria) error {
	return s.queue.Enqueue(s, p, c)
}

// Leave 대기 취소. Waiting이 아니면 아무 것도 하지 않는다
func (s *Session) Leave() bool {
	return s.queue.Dequeue(s)
}

// Close 어느 상태에서든 호출 가능. 대기 중이면 큐에서 제거하고 전송 계층을 해제한다.
// 이 호출이 세션을 닫았으면 true
func (s *Session) Close() bool {
	if !s.queue.close(s) {
		return false
	}
	if s.transport != nil {
		_ = s.transport.Close()
	}
	return true
}

// Send writes a message to the transport unless the session is closed.
func (s *Session) Send(msg interface{}) error {
	if s.State() == models.QueueStateClosed {
		return ErrSessionClosed
	}
	return s.transport.Send(msg)
}
