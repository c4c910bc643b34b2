package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/lingoarena/lingoarena-backend/internal/matchmaking"
	"github.com/lingoarena/lingoarena-backend/internal/models"
	"github.com/lingoarena/lingoarena-backend/pkg/distributed"
	"go.uber.org/zap"
)

const (
	maxFieldLength    = 64
	defaultGuestName  = "Guest"
	persistTimeout    = 5 * time.Second
	DefaultStartElo   = 1000
	defaultPairPeriod = 250 * time.Millisecond
)

// MatchRecorder 생성된 매치 기록 저장소. match_found 전송 전에 동기적으로 호출된다
type MatchRecorder interface {
	RecordMatch(ctx context.Context, match *models.Match) error
}

// MatchEventPublisher 외부 게임 컴포넌트로 매치 생성 이벤트 발행
type MatchEventPublisher interface {
	PublishMatchEvent(ctx context.Context, event distributed.MatchEvent) error
}

type MatchmakingOption func(*MatchmakingService)

func WithMatchRecorder(r MatchRecorder) MatchmakingOption {
	return func(s *MatchmakingService) { s.recorder = r }
}

func WithMatchEventPublisher(p MatchEventPublisher) MatchmakingOption {
	return func(s *MatchmakingService) { s.publisher = p }
}

// WithPairingInterval sets how often the background pass runs; it bounds the
// extra latency of AI fallback beyond the queue's timeout.
func WithPairingInterval(d time.Duration) MatchmakingOption {
	return func(s *MatchmakingService) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithDefaultElo is used when a join_queue message carries no elo.
func WithDefaultElo(elo int) MatchmakingOption {
	return func(s *MatchmakingService) { s.defaultElo = elo }
}

// MatchmakingService 프로토콜 메시지를 세션/큐 연산으로 변환하고 match_found 전달
type MatchmakingService struct {
	queue      *matchmaking.Queue
	recorder   MatchRecorder
	publisher  MatchEventPublisher
	logger     *zap.Logger
	interval   time.Duration
	defaultElo int

	sessionsMu sync.RWMutex
	sessions   map[string]*matchmaking.Session

	// pairMu orders a join's queue_joined ack before any match_found for it
	pairMu sync.Mutex

	persistWg sync.WaitGroup
	stopChan  chan struct{}
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

func NewMatchmakingService(queue *matchmaking.Queue, logger *zap.Logger, opts ...MatchmakingOption) *MatchmakingService {
	s := &MatchmakingService{
		queue:      queue,
		logger:     logger,
		interval:   defaultPairPeriod,
		defaultElo: DefaultStartElo,
		sessions:   make(map[string]*matchmaking.Session),
		stopChan:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 주기적 페어링 패스 시작 (AI 대체 타이머 역할)
func (s *MatchmakingService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting MatchmakingService", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.pairingLoop()
}

// Stop 매칭 루프 중지. 진행 중인 매치 기록/발행이 끝날 때까지 대기
func (s *MatchmakingService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping MatchmakingService")
	close(s.stopChan)
	s.wg.Wait()
	s.persistWg.Wait()
	s.logger.Info("MatchmakingService stopped")
}

func (s *MatchmakingService) pairingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunPairingPass()
		case <-s.stopChan:
			return
		}
	}
}

// Open 새 연결에 대한 세션 생성
func (s *MatchmakingService) Open(t matchmaking.Transport, authID string) *matchmaking.Session {
	sess := s.queue.NewSession(t)
	if authID != "" {
		sess.SetAuthenticatedID(authID)
	}

	s.sessionsMu.Lock()
	s.sessions[sess.ID()] = sess
	total := len(s.sessions)
	s.sessionsMu.Unlock()

	s.logger.Debug("Session opened",
		zap.String("sessionId", sess.ID()),
		zap.Bool("authenticated", authID != ""),
		zap.Int("sessions", total))
	return sess
}

// Disconnect 전송 계층 종료 시 무조건 호출되는 정리 경로
func (s *MatchmakingService) Disconnect(sess *matchmaking.Session) {
	wasWaiting := sess.State() == models.QueueStateWaiting
	sess.Close()

	s.sessionsMu.Lock()
	_, tracked := s.sessions[sess.ID()]
	delete(s.sessions, sess.ID())
	s.sessionsMu.Unlock()

	if tracked {
		s.logger.Debug("Session closed",
			zap.String("sessionId", sess.ID()),
			zap.Bool("wasWaiting", wasWaiting))
	}
}

// HandleMessage 수신 메시지 하나 처리. 오류는 해당 메시지만 거부하고 연결은 유지
func (s *MatchmakingService) HandleMessage(sess *matchmaking.Session, data []byte) {
	if err := s.handle(sess, data); err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			s.Reject(sess, perr.Code, perr.Message)
			return
		}
		s.logger.Error("Failed to handle message",
			zap.String("sessionId", sess.ID()),
			zap.Error(err))
	}
}

func (s *MatchmakingService) handle(sess *matchmaking.Session, data []byte) error {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return protocolError(models.ErrorCodeMalformed, "message is not valid JSON", err)
	}

	switch env.Type {
	case models.MessageJoinQueue:
		var req models.JoinQueueRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return protocolError(models.ErrorCodeMalformed, "invalid join_queue payload", err)
		}
		p, c, err := s.parseJoin(sess, &req)
		if err != nil {
			return err
		}
		return s.JoinQueue(sess, p, c)

	case models.MessageLeaveQueue:
		s.LeaveQueue(sess)
		return nil

	default:
		return protocolError(models.ErrorCodeUnknownType, "unknown message type "+strings.TrimSpace(env.Type), nil)
	}
}

// parseJoin join_queue 페이로드 검증
func (s *MatchmakingService) parseJoin(sess *matchmaking.Session, req *models.JoinQueueRequest) (models.Participant, models.Criteria, error) {
	playerID := strings.TrimSpace(req.PlayerID)
	if authID := sess.AuthenticatedID(); authID != "" {
		if playerID == "" {
			playerID = authID
		} else if playerID != authID {
			return models.Participant{}, models.Criteria{}, protocolError(models.ErrorCodeIdentity, "playerId does not match the authenticated player", ErrIdentityMismatch)
		}
	}
	if playerID == "" {
		return models.Participant{}, models.Criteria{}, invalidField("playerId is required")
	}
	if playerID == models.AIParticipantID {
		return models.Participant{}, models.Criteria{}, invalidField("playerId is reserved")
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = defaultGuestName
	}

	elo := s.defaultElo
	if req.Elo != nil {
		if *req.Elo < 0 {
			return models.Participant{}, models.Criteria{}, invalidField("elo must not be negative")
		}
		elo = *req.Elo
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		return models.Participant{}, models.Criteria{}, invalidField("language is required")
	}

	difficulty, err := models.ParseDifficulty(req.Difficulty)
	if err != nil {
		return models.Participant{}, models.Criteria{}, protocolError(models.ErrorCodeInvalidField, "difficulty must be one of easy, medium, hard", err)
	}

	topic := strings.TrimSpace(req.Topic)
	for _, f := range []string{playerID, username, language, topic} {
		if len(f) > maxFieldLength {
			return models.Participant{}, models.Criteria{}, invalidField("field exceeds 64 characters")
		}
	}

	return models.Participant{ID: playerID, DisplayName: username, Rating: elo},
		models.Criteria{Language: language, Difficulty: difficulty, Topic: topic},
		nil
}

func invalidField(message string) *ProtocolError {
	return protocolError(models.ErrorCodeInvalidField, message, ErrInvalidInput)
}

// JoinQueue 세션을 대기열에 넣고 즉시 페어링 패스 실행
func (s *MatchmakingService) JoinQueue(sess *matchmaking.Session, p models.Participant, c models.Criteria) error {
	s.pairMu.Lock()
	if err := sess.Join(p, c); err != nil {
		s.pairMu.Unlock()
		switch {
		case errors.Is(err, matchmaking.ErrInvalidState):
			return protocolError(models.ErrorCodeInvalidState, "already searching for a match", err)
		case errors.Is(err, matchmaking.ErrSessionClosed):
			return nil
		}
		return err
	}

	s.logger.Info("Participant joined queue",
		zap.String("sessionId", sess.ID()),
		zap.String("playerId", p.ID),
		zap.String("language", c.Language),
		zap.String("difficulty", string(c.Difficulty)),
		zap.String("topic", c.Topic))

	s.send(sess, models.QueueJoinedMessage{
		Type:       models.MessageQueueJoined,
		Language:   c.Language,
		Difficulty: c.Difficulty,
		Topic:      c.Topic,
	})
	s.pairMu.Unlock()

	s.RunPairingPass()
	return nil
}

// LeaveQueue 대기 취소. 대기 중이 아니면 아무 일도 하지 않는다
func (s *MatchmakingService) LeaveQueue(sess *matchmaking.Session) {
	if !sess.Leave() {
		return
	}
	s.logger.Info("Participant left queue",
		zap.String("sessionId", sess.ID()),
		zap.String("playerId", sess.Participant().ID))
	s.send(sess, models.QueueLeftMessage{Type: models.MessageQueueLeft})
}

// Reject 거부된 메시지에 대해 error 메시지 전송
func (s *MatchmakingService) Reject(sess *matchmaking.Session, code, message string) {
	s.logger.Warn("Rejected client message",
		zap.String("sessionId", sess.ID()),
		zap.String("code", code),
		zap.String("message", message))
	s.send(sess, models.ErrorMessage{Type: models.MessageError, Code: code, Message: message})
}

// RunPairingPass 큐 페어링 후 결과 전달. 전달된 매치 수 반환
func (s *MatchmakingService) RunPairingPass() int {
	s.pairMu.Lock()
	defer s.pairMu.Unlock()

	pairings := s.queue.Pair()
	for i := range pairings {
		s.deliver(&pairings[i])
	}
	return len(pairings)
}

// deliver 각 사람 세션에 자기 기준의 상대 정보로 match_found 전송
// 한쪽 전송이 실패해도 다른 쪽은 받으며, 실패한 세션은 닫는다
func (s *MatchmakingService) deliver(p *matchmaking.Pairing) {
	match := &p.Match

	// 결과 보고가 match_found보다 먼저 도착해도 매치를 찾을 수 있도록 전송 전에 기록
	if s.recorder != nil {
		s.recordMatch(match)
	}

	for i, sess := range p.Sessions {
		self := match.Players[i]
		opponent, _ := match.Opponent(self.ID)

		msg := models.MatchFoundMessage{
			Type:    models.MessageMatchFound,
			MatchID: match.ID,
			Opponent: models.OpponentView{
				Username: opponent.DisplayName,
				Elo:      opponent.Rating,
			},
			Topic:       match.Topic,
			Language:    match.Language,
			Difficulty:  match.Difficulty,
			IsAI:        match.IsAI,
			StartsFirst: match.StartsFirst == self.ID,
		}

		if err := sess.Send(msg); err != nil {
			if errors.Is(err, matchmaking.ErrSessionClosed) {
				s.logger.Debug("Discarded match for closed session",
					zap.String("matchId", match.ID),
					zap.String("sessionId", sess.ID()))
				continue
			}
			s.logger.Warn("Failed to deliver match_found, closing session",
				zap.String("matchId", match.ID),
				zap.String("sessionId", sess.ID()),
				zap.Error(err))
			s.Disconnect(sess)
		}
	}

	s.logger.Info("Match created",
		zap.String("matchId", match.ID),
		zap.String("player1", match.Players[0].ID),
		zap.String("player2", match.Players[1].ID),
		zap.Bool("isAI", match.IsAI),
		zap.String("language", match.Language),
		zap.String("difficulty", string(match.Difficulty)))

	if s.publisher != nil {
		s.persistWg.Add(1)
		go s.publishMatch(*match)
	}
}

// recordMatch 매치 기록. 실패는 로그만 남기고 전달에는 영향 없음
func (s *MatchmakingService) recordMatch(match *models.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.recorder.RecordMatch(ctx, match); err != nil {
		s.logger.Error("Failed to record match", zap.String("matchId", match.ID), zap.Error(err))
	}
}

// publishMatch 외부 게임 컴포넌트로 매치 생성 이벤트 발행
func (s *MatchmakingService) publishMatch(match models.Match) {
	defer s.persistWg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.publisher.PublishMatchEvent(ctx, distributed.NewMatchCreatedEvent(
		match.ID,
		match.Language,
		string(match.Difficulty),
		match.Topic,
		match.IsAI,
		[]string{match.Players[0].ID, match.Players[1].ID},
		match.StartsFirst,
		match.CreatedAt,
	)); err != nil {
		s.logger.Error("Failed to publish match event", zap.String("matchId", match.ID), zap.Error(err))
	}
}

func (s *MatchmakingService) send(sess *matchmaking.Session, msg interface{}) {
	if err := sess.Send(msg); err != nil && !errors.Is(err, matchmaking.ErrSessionClosed) {
		s.logger.Warn("Failed to send message",
			zap.String("sessionId", sess.ID()),
			zap.Error(err))
	}
}

// SessionCount 현재 열린 세션 수
func (s *MatchmakingService) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

// Stats 큐 통계 + 세션 수
func (s *MatchmakingService) Stats() (matchmaking.Stats, int) {
	return s.queue.Stats(), s.SessionCount()
}

// CloseAll 모든 세션 종료 (서버 종료 시)
func (s *MatchmakingService) CloseAll() {
	s.sessionsMu.RLock()
	sessions := make([]*matchmaking.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionsMu.RUnlock()

	for _, sess := range sessions {
		s.Disconnect(sess)
	}
}
