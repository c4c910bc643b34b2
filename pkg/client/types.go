package client

import "github.com/lingoarena/lingoarena-backend/internal/models"

// Wire types received from the server. Aliases keep them nameable outside this
// module.
type (
	Difficulty  = models.Difficulty
	MatchFound  = models.MatchFoundMessage
	Opponent    = models.OpponentView
	ServerError = models.ErrorMessage
)

const (
	DifficultyEasy   = models.DifficultyEasy
	DifficultyMedium = models.DifficultyMedium
	DifficultyHard   = models.DifficultyHard
)

// Error codes carried by ServerError.Code
const (
	ErrorCodeMalformed    = models.ErrorCodeMalformed
	ErrorCodeUnknownType  = models.ErrorCodeUnknownType
	ErrorCodeInvalidField = models.ErrorCodeInvalidField
	ErrorCodeInvalidState = models.ErrorCodeInvalidState
	ErrorCodeIdentity     = models.ErrorCodeIdentity
	ErrorCodeRateLimited  = models.ErrorCodeRateLimited
)
