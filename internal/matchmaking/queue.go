package matchmaking

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lingoarena/lingoarena-backend/internal/models"
)

const (
	DefaultAIFallbackTimeout = 8 * time.Second
	DefaultAIOpponentName    = "Lingo Bot"
)

// entry 대기열의 한 항목. session은 항상 Waiting 상태
type entry struct {
	session     *Session
	participant models.Participant
	criteria    models.Criteria
	enqueuedAt  time.Time
}

// Pairing is one decision of a pairing pass. Sessions[i] is the live session of
// Match.Players[i]; AI matches carry a single session.
type Pairing struct {
	Match    models.Match
	Sessions []*Session
}

type Option func(*Queue)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func WithAIFallback(timeout time.Duration, opponentName string) Option {
	return func(q *Queue) {
		q.aiTimeout = timeout
		if opponentName != "" {
			q.aiName = opponentName
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(q *Queue) { q.newID = newID }
}

// Queue 매칭 스케줄러
//
// 버킷은 (언어, 난이도)로 나뉘며 각 버킷 슬라이스는 등록 순서(FIFO)를 유지한다.
// enqueue/dequeue/close/페어링 패스는 모두 mu 아래에서 실행되므로
// 한 세션이 두 개의 매치에 선택될 수 없다.
type Queue struct {
	mu      sync.Mutex
	buckets map[string][]*entry
	entries map[*Session]*entry

	aiTimeout time.Duration
	aiName    string
	now       func() time.Time
	newID     func() string

	matchesMade uint64
	aiMatches   uint64
}

func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		buckets:   make(map[string][]*entry),
		entries:   make(map[*Session]*entry),
		aiTimeout: DefaultAIFallbackTimeout,
		aiName:    DefaultAIOpponentName,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewSession 새 연결에 대한 Idle 세션 생성
func (q *Queue) NewSession(t Transport) *Session {
	return &Session{
		id:        q.newID(),
		queue:     q,
		transport: t,
		openedAt:  q.now(),
		state:     models.QueueStateIdle,
	}
}

// Enqueue 세션을 (언어, 난이도) 버킷 끝에 추가
func (q *Queue) Enqueue(s *Session, p models.Participant, c models.Criteria) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case models.QueueStateClosed:
		return ErrSessionClosed
	case models.QueueStateWaiting:
		return ErrInvalidState
	}

	e := &entry{
		session:     s,
		participant: p,
		criteria:    c,
		enqueuedAt:  q.now(),
	}
	key := c.BucketKey()
	q.buckets[key] = append(q.buckets[key], e)
	q.entries[s] = e

	s.state = models.QueueStateWaiting
	s.participant = p
	s.criteria = &c
	return nil
}

// Dequeue removes a Waiting session from its bucket and returns it to Idle.
// Returns false (and changes nothing) when the session is not waiting.
func (q *Queue) Dequeue(s *Session) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.QueueStateWaiting {
		return false
	}
	q.removeLocked(s)
	s.state = models.QueueStateIdle
	s.criteria = nil
	return true
}

func (q *Queue) close(s *Session) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == models.QueueStateClosed {
		return false
	}
	q.removeLocked(s)
	s.state = models.QueueStateClosed
	s.criteria = nil
	return true
}

func (q *Queue) removeLocked(s *Session) {
	e, ok := q.entries[s]
	if !ok {
		return
	}
	delete(q.entries, s)

	key := e.criteria.BucketKey()
	bucket := q.buckets[key]
	for i, x := range bucket {
		if x == e {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(q.buckets, key)
		return
	}
	q.buckets[key] = bucket
}

// Pair 페어링 패스 실행
//
// 버킷마다 가장 오래 기다린 세션부터 호환되는 가장 오래된 상대와 짝을 짓고,
// 남은 세션 중 AI 대기 시간을 넘긴 세션은 AI 상대와 매칭한다.
// 선택된 세션은 락 안에서 Matched로 전이되고 큐에서 제거된다.
func (q *Queue) Pair() []Pairing {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	keys := make([]string, 0, len(q.buckets))
	for key := range q.buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []Pairing
	for _, key := range keys {
		out = append(out, q.pairBucketLocked(key, now)...)
	}
	return out
}

func (q *Queue) pairBucketLocked(key string, now time.Time) []Pairing {
	bucket := q.buckets[key]
	consumed := make([]bool, len(bucket))
	var out []Pairing

	for i := range bucket {
		if consumed[i] {
			continue
		}
		if !bucket[i].waiting() {
			consumed[i] = true
			continue
		}
		for j := i + 1; j < len(bucket); j++ {
			if consumed[j] || !bucket[j].waiting() || !compatible(bucket[i], bucket[j]) {
				continue
			}
			consumed[i], consumed[j] = true, true
			out = append(out, q.humanPairingLocked(bucket[i], bucket[j], now))
			break
		}
	}

	if q.aiTimeout > 0 {
		for i, e := range bucket {
			if consumed[i] || now.Sub(e.enqueuedAt) < q.aiTimeout {
				continue
			}
			consumed[i] = true
			out = append(out, q.aiPairingLocked(e, now))
		}
	}

	kept := make([]*entry, 0, len(bucket))
	for i, e := range bucket {
		if consumed[i] {
			delete(q.entries, e.session)
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(q.buckets, key)
	} else {
		q.buckets[key] = kept
	}
	return out
}

// first는 먼저 등록된 세션이며 선공을 가진다
func (q *Queue) humanPairingLocked(first, second *entry, now time.Time) Pairing {
	topic := first.criteria.Topic
	if topic == "" {
		topic = second.criteria.Topic
	}
	match := models.Match{
		ID:          q.newID(),
		Players:     [2]models.Participant{first.participant, second.participant},
		Language:    first.criteria.Language,
		Difficulty:  first.criteria.Difficulty,
		Topic:       topic,
		StartsFirst: first.participant.ID,
		CreatedAt:   now,
	}
	first.markMatched(match.ID)
	second.markMatched(match.ID)
	q.matchesMade++

	return Pairing{Match: match, Sessions: []*Session{first.session, second.session}}
}

// AI 매치에서는 사람이 항상 선공
func (q *Queue) aiPairingLocked(e *entry, now time.Time) Pairing {
	bot := models.Participant{
		ID:          models.AIParticipantID,
		DisplayName: q.aiName,
		Rating:      e.participant.Rating,
	}
	match := models.Match{
		ID:          q.newID(),
		Players:     [2]models.Participant{e.participant, bot},
		Language:    e.criteria.Language,
		Difficulty:  e.criteria.Difficulty,
		Topic:       e.criteria.Topic,
		IsAI:        true,
		StartsFirst: e.participant.ID,
		CreatedAt:   now,
	}
	e.markMatched(match.ID)
	q.matchesMade++
	q.aiMatches++

	return Pairing{Match: match, Sessions: []*Session{e.session}}
}

func (e *entry) waiting() bool {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	return e.session.state == models.QueueStateWaiting
}

func (e *entry) markMatched(matchID string) {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	e.session.state = models.QueueStateMatched
	e.session.criteria = nil
	e.session.matchID = matchID
}

// compatible 같은 참가자끼리는 매칭하지 않고, 토픽은 같거나 한쪽이 비어 있어야 한다
func compatible(a, b *entry) bool {
	if a.participant.ID == b.participant.ID {
		return false
	}
	if a.criteria.Topic == "" || b.criteria.Topic == "" {
		return true
	}
	return strings.EqualFold(a.criteria.Topic, b.criteria.Topic)
}

// Contains reports whether the session currently has a queue entry.
func (q *Queue) Contains(s *Session) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[s]
	return ok
}

// Stats 큐 통계
type Stats struct {
	Waiting     int            `json:"waiting"`
	Buckets     map[string]int `json:"buckets"`
	MatchesMade uint64         `json:"matchesMade"`
	AIMatches   uint64         `json:"aiMatches"`
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	buckets := make(map[string]int, len(q.buckets))
	for key, b := range q.buckets {
		buckets[key] = len(b)
	}
	return Stats{
		Waiting:     len(q.entries),
		Buckets:     buckets,
		MatchesMade: q.matchesMade,
		AIMatches:   q.aiMatches,
	}
}
