package models

// Inbound message types
const (
	MessageJoinQueue  = "join_queue"
	MessageLeaveQueue = "leave_queue"
)

// Outbound message types
const (
	MessageMatchFound  = "match_found"
	MessageQueueJoined = "queue_joined"
	MessageQueueLeft   = "queue_left"
	MessageError       = "error"
)

// Envelope 수신 메시지의 타입만 먼저 읽기 위한 구조체
type Envelope struct {
	Type string `json:"type"`
}

// JoinQueueRequest join_queue 메시지
type JoinQueueRequest struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	Username   string `json:"username"`
	Elo        *int   `json:"elo"`
	Language   string `json:"language"`
	Difficulty string `json:"difficulty"`
	Topic      string `json:"topic,omitempty"`
}

type OpponentView struct {
	Username string `json:"username"`
	Elo      int    `json:"elo"`
}

// MatchFoundMessage match_found 메시지 (수신자 기준의 상대 정보만 포함)
type MatchFoundMessage struct {
	Type        string       `json:"type"`
	MatchID     string       `json:"matchId"`
	Opponent    OpponentView `json:"opponent"`
	Topic       string       `json:"topic"`
	Language    string       `json:"language"`
	Difficulty  Difficulty   `json:"difficulty"`
	IsAI        bool         `json:"isAI"`
	StartsFirst bool         `json:"startsFirst"`
}

type QueueJoinedMessage struct {
	Type       string     `json:"type"`
	Language   string     `json:"language"`
	Difficulty Difficulty `json:"difficulty"`
	Topic      string     `json:"topic,omitempty"`
}

type QueueLeftMessage struct {
	Type string `json:"type"`
}

// ErrorMessage 거부된 메시지에 대한 응답 (연결은 유지)
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in ErrorMessage.Code
const (
	ErrorCodeMalformed    = "malformed_message"
	ErrorCodeUnknownType  = "unknown_type"
	ErrorCodeInvalidField = "invalid_field"
	ErrorCodeInvalidState = "invalid_state"
	ErrorCodeIdentity     = "identity_mismatch"
	ErrorCodeRateLimited  = "rate_limited"
)
