package services

import "errors"

// Authorization errors
var (
	ErrAnonymous  = errors.New("authentication required")
	ErrNotBattler = errors.New("you are not a battler")
	ErrNotAdmin   = errors.New("admin role required")
	ErrNotJudge   = errors.New("you are not a judge for this battle")
)

// Addressing errors
var (
	ErrMatchMissing    = errors.New("battle not found")
	ErrOpponentMissing = errors.New("can't find your target or your target is not a battler")
	ErrWrongResponder  = errors.New("this callout is not addressed to you")
	ErrSelfMatch       = errors.New("you can't call yourself out")
)

// Invariant errors
var (
	ErrInvalidJudges          = errors.New("invalid judge list")
	ErrDurationOutOfRange     = errors.New("voting duration out of range")
	ErrDuplicateCallout       = errors.New("a callout between these battlers is already pending")
	ErrAlreadyVoted           = errors.New("you've already voted for this battle")
	ErrScoresMustSumTo100     = errors.New("vote scores must sum to 100")
	ErrStatementTooLong       = errors.New("statement too long")
	ErrSignatureRequired      = errors.New("signature required for official and judge votes")
	ErrParticipantsCannotVote = errors.New("you are a camp for this battle")
)

// State errors
var (
	ErrWrongState       = errors.New("battle is not in the required state")
	ErrVotingClosed     = errors.New("voting ended, only unofficial voting is available")
	ErrVotingNotYetOpen = errors.New("voting has not opened for this battle")
)

// Infrastructure errors
var (
	ErrRepositoryUnavailable = errors.New("storage unavailable")
	ErrNotifierUnavailable   = errors.New("notifier unavailable")
)
