// dance-battle-system/services/vote_service.go
package services

import (
	"context"
	"errors"

	"dance-battle-system/models"
	"dance-battle-system/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// VoteService records ballots. One vote per voter per battle, enforced by the
// unique index rather than a read-then-write check.
type VoteService struct {
	DB     *gorm.DB
	Clock  clockwork.Clock
	Config EngineConfig
}

func NewVoteService(db *gorm.DB, clock clockwork.Clock, cfg EngineConfig) *VoteService {
	return &VoteService{DB: db, Clock: clock, Config: cfg}
}

// VoteInput is a single ballot as submitted by the client.
type VoteInput struct {
	MatchID      string
	Kind         models.VoteKind
	AScore       int
	BScore       int
	Statement    string
	SignatureRef string
}

// CastVote validates eligibility and inserts the ballot. Official and judge
// votes also bump the battle's activity timestamp inside the same transaction,
// which is what keeps live-event inactivity deadlines honest.
func (s *VoteService) CastVote(ctx context.Context, caller Caller, in VoteInput) (*models.Vote, error) {
	if caller.Anonymous() {
		return nil, ErrAnonymous
	}
	if in.AScore < 0 || in.BScore < 0 || in.AScore+in.BScore != 100 {
		return nil, ErrScoresMustSumTo100
	}
	if len(in.Statement) > s.Config.StatementMaxLen {
		return nil, ErrStatementTooLong
	}

	var match models.Match
	if err := s.DB.WithContext(ctx).First(&match, "match_id = ?", in.MatchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchMissing
		}
		return nil, ErrRepositoryUnavailable
	}
	if match.IsParticipant(caller.Handle) {
		return nil, ErrParticipantsCannotVote
	}

	switch in.Kind {
	case models.VoteOfficial, models.VoteJudge:
		if in.SignatureRef == "" {
			return nil, ErrSignatureRequired
		}
		switch match.State() {
		case models.StateVoting:
			// open
		case models.StateClosed:
			return nil, ErrVotingClosed
		default:
			return nil, ErrVotingNotYetOpen
		}
		if match.Withdrawn() {
			return nil, ErrVotingClosed
		}
		if in.Kind == models.VoteJudge && !match.HasJudge(caller.Handle) {
			return nil, ErrNotJudge
		}
	case models.VoteUnofficial:
		// commemorative only, accepted once the outcome is on the books
		if !match.Closed {
			return nil, ErrWrongState
		}
		// unofficial ballots never carry a signature
		in.SignatureRef = ""
	default:
		return nil, ErrWrongState
	}

	vote := models.Vote{
		ID:           uuid.NewString(),
		MatchID:      in.MatchID,
		VoterHandle:  caller.Handle,
		Kind:         in.Kind,
		AScore:       in.AScore,
		BScore:       in.BScore,
		Statement:    in.Statement,
		SignatureRef: in.SignatureRef,
		CreatedAt:    s.Clock.Now().Unix(),
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&vote).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyVoted
			}
			return err
		}
		if in.Kind == models.VoteUnofficial {
			return nil
		}
		// Bump activity while the battle is still open. Losing this race means
		// the tally job closed the battle between our read and here.
		res := tx.Model(&models.Match{}).
			Where("match_id = ? AND closed = ?", in.MatchID, false).
			Update("last_updated_timestamp", vote.CreatedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVotingClosed
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyVoted) || errors.Is(err, ErrVotingClosed) {
			return nil, err
		}
		utils.Error("failed to record vote", "match_id", in.MatchID, "voter", caller.Handle, "err", err)
		return nil, ErrRepositoryUnavailable
	}

	utils.Info("vote recorded", "match_id", in.MatchID, "voter", caller.Handle, "kind", in.Kind)
	return &vote, nil
}
