package service

import "errors"

// Common service errors
var (
	ErrInvalidInput = errors.New("invalid input")
)

// Matchmaking service specific errors
var (
	ErrProtocol         = errors.New("protocol error")
	ErrIdentityMismatch = errors.New("player id does not match authenticated identity")
)

// Rating service specific errors
var (
	ErrDuplicateOutcome = errors.New("outcome already applied for this match")
	ErrMatchNotFound    = errors.New("match not found")
	ErrNotParticipant   = errors.New("player did not take part in this match")
)

// ProtocolError 클라이언트에게 돌려줄 코드가 붙은 프로토콜 오류
type ProtocolError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	return e.Code + ": " + e.Message
}

// Unwrap lets errors.Is match both ErrProtocol and the underlying cause.
func (e *ProtocolError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrProtocol, e.Err}
	}
	return []error{ErrProtocol}
}

func protocolError(code, message string, cause error) *ProtocolError {
	return &ProtocolError{Code: code, Message: message, Err: cause}
}
