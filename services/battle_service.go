// dance-battle-system/services/battle_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"dance-battle-system/models"
	"dance-battle-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// BattleService is the single authority for battle state transitions. Every
// mutation goes through a conditional UPDATE keyed on the current state, so
// two racing transitions resolve to exactly one winner; the loser surfaces
// ErrWrongState.
type BattleService struct {
	DB        *gorm.DB
	Directory UserDirectory
	Notifier  Notifier
	Clock     clockwork.Clock
	Config    EngineConfig

	// AdminRecipient receives the "battle awaiting verification" mails.
	AdminRecipient string
}

func NewBattleService(db *gorm.DB, dir UserDirectory, notifier Notifier, clock clockwork.Clock, cfg EngineConfig) *BattleService {
	return &BattleService{
		DB:        db,
		Directory: dir,
		Notifier:  notifier,
		Clock:     clock,
		Config:    cfg,
	}
}

// CalloutInput is everything camp A supplies when calling someone out.
type CalloutInput struct {
	Opponent      string
	MediaRef      string
	ImageRef      string
	Judges        []string
	Rules         string
	DurationHours int
}

// CreateCallout opens a new battle in awaiting-admin-A. The unique pending-pair
// index rejects a second open callout between the same two battlers regardless
// of who fired first.
func (s *BattleService) CreateCallout(ctx context.Context, caller Caller, in CalloutInput) (*models.Match, error) {
	if caller.Anonymous() {
		return nil, ErrAnonymous
	}
	if !caller.IsBattler() {
		return nil, ErrNotBattler
	}
	if in.Opponent == caller.Handle {
		return nil, ErrSelfMatch
	}
	opponent, err := s.Directory.Lookup(ctx, in.Opponent)
	if err != nil {
		return nil, err
	}
	if !opponent.IsBattler() {
		return nil, ErrOpponentMissing
	}
	if in.DurationHours < s.Config.MinDurationHours || in.DurationHours > s.Config.MaxDurationHours {
		return nil, ErrDurationOutOfRange
	}
	if err := s.validateJudges(ctx, in.Judges, caller.Handle, in.Opponent); err != nil {
		return nil, err
	}

	now := s.Clock.Now().Unix()
	pendingKey := models.PairKey(caller.Handle, in.Opponent)
	match := models.Match{
		MatchID:              uuid.NewString(),
		ShortID:              battleShortID(caller.Handle, in.Opponent),
		AHandle:              caller.Handle,
		BHandle:              in.Opponent,
		PendingKey:           &pendingKey,
		AMediaRef:            in.MediaRef,
		AImageRef:            in.ImageRef,
		Judges:               in.Judges,
		Rules:                in.Rules,
		VotingDurationHours:  in.DurationHours,
		CalloutTimestamp:     now,
		LastUpdatedTimestamp: now,
	}

	if err := s.DB.WithContext(ctx).Create(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateCallout
		}
		utils.Error("failed to create callout", "a", caller.Handle, "b", in.Opponent, "err", err)
		return nil, ErrRepositoryUnavailable
	}

	s.notifyAwaitingAdmin(ctx, &match, models.SideA)
	utils.Info("callout created", "match_id", match.MatchID, "a", match.AHandle, "b", match.BHandle)
	return &match, nil
}

// SubmitReply records camp B's counter video and moves the battle to
// awaiting-admin-B. The pending-pair slot is released here: once B has
// answered, either battler may fire a fresh callout.
func (s *BattleService) SubmitReply(ctx context.Context, caller Caller, matchID, mediaRef, imageRef, replyText string) (*models.Match, error) {
	if caller.Anonymous() {
		return nil, ErrAnonymous
	}
	match, err := s.fetchMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if caller.Handle != match.BHandle {
		return nil, ErrWrongResponder
	}
	if match.State() != models.StateAwaitingReply || match.Withdrawn() {
		return nil, ErrWrongState
	}

	now := s.Clock.Now().Unix()
	res := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("match_id = ? AND a_verified = ? AND reply_timestamp = 0 AND closed = ? AND a_withdrawn = ? AND b_withdrawn = ?",
			matchID, true, false, false, false).
		Updates(map[string]any{
			"b_media_ref":            mediaRef,
			"b_image_ref":            imageRef,
			"reply_text":             replyText,
			"reply_timestamp":        now,
			"last_updated_timestamp": now,
			"pending_key":            nil,
		})
	if res.Error != nil {
		utils.Error("failed to submit reply", "match_id", matchID, "err", res.Error)
		return nil, ErrRepositoryUnavailable
	}
	if res.RowsAffected == 0 {
		return nil, ErrWrongState
	}

	updated, err := s.fetchMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	s.notifyAwaitingAdmin(ctx, updated, models.SideB)
	utils.Info("reply submitted", "match_id", matchID, "b", caller.Handle)
	return updated, nil
}

// AdminVerifyA confirms the callout video and opens the battle for B's reply.
func (s *BattleService) AdminVerifyA(ctx context.Context, caller Caller, matchID string) error {
	if !caller.IsAdmin() {
		return ErrNotAdmin
	}
	if _, err := s.fetchMatch(ctx, matchID); err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("match_id = ? AND a_verified = ? AND is_live = ? AND closed = ? AND a_withdrawn = ? AND b_withdrawn = ?",
			matchID, false, false, false, false, false).
		Updates(map[string]any{
			"a_verified":             true,
			"last_updated_timestamp": s.Clock.Now().Unix(),
		})
	if res.Error != nil {
		return ErrRepositoryUnavailable
	}
	if res.RowsAffected == 0 {
		return ErrWrongState
	}
	utils.Info("a-side verified", "match_id", matchID, "admin", caller.Handle)
	return nil
}

// AdminVerifyB confirms the reply video and opens voting. The voting deadline
// is derived (reply timestamp + duration), never stored.
func (s *BattleService) AdminVerifyB(ctx context.Context, caller Caller, matchID string) error {
	if !caller.IsAdmin() {
		return ErrNotAdmin
	}
	if _, err := s.fetchMatch(ctx, matchID); err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("match_id = ? AND a_verified = ? AND b_verified = ? AND reply_timestamp > 0 AND closed = ? AND a_withdrawn = ? AND b_withdrawn = ?",
			matchID, true, false, false, false, false).
		Updates(map[string]any{
			"b_verified":             true,
			"last_updated_timestamp": s.Clock.Now().Unix(),
		})
	if res.Error != nil {
		return ErrRepositoryUnavailable
	}
	if res.RowsAffected == 0 {
		return ErrWrongState
	}
	utils.Info("b-side verified, voting open", "match_id", matchID, "admin", caller.Handle)
	return nil
}

// LiveEventInput describes an in-person battle set up at the venue.
type LiveEventInput struct {
	AHandle string
	BHandle string
	Judges  []string
	Rules   string
}

// CreateLiveEvent opens a media-less battle that is verified from the start
// and enters voting immediately. The registration code is what the on-site
// admin hands to voters.
func (s *BattleService) CreateLiveEvent(ctx context.Context, caller Caller, in LiveEventInput) (*models.Match, error) {
	if caller.Anonymous() {
		return nil, ErrAnonymous
	}
	if !caller.IsBattler() && !caller.IsJudge() {
		return nil, ErrNotBattler
	}
	if in.AHandle == in.BHandle {
		return nil, ErrSelfMatch
	}
	for _, handle := range []string{in.AHandle, in.BHandle} {
		info, err := s.Directory.Lookup(ctx, handle)
		if err != nil {
			return nil, err
		}
		if !info.IsBattler() {
			return nil, ErrOpponentMissing
		}
	}
	if err := s.validateJudges(ctx, in.Judges, in.AHandle, in.BHandle); err != nil {
		return nil, err
	}

	now := s.Clock.Now().Unix()
	code := uuid.NewString()
	pendingKey := models.PairKey(in.AHandle, in.BHandle)
	match := models.Match{
		MatchID:              uuid.NewString(),
		ShortID:              battleShortID(in.AHandle, in.BHandle),
		RegistrationCode:     &code,
		LiveAdminHandle:      caller.Handle,
		IsLive:               true,
		AHandle:              in.AHandle,
		BHandle:              in.BHandle,
		PendingKey:           &pendingKey,
		AVerified:            true,
		BVerified:            true,
		Judges:               in.Judges,
		Rules:                in.Rules,
		VotingDurationHours:  24, // fixed for live events
		CalloutTimestamp:     now,
		LastUpdatedTimestamp: now,
	}

	if err := s.DB.WithContext(ctx).Create(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateCallout
		}
		utils.Error("failed to create live event", "a", in.AHandle, "b", in.BHandle, "err", err)
		return nil, ErrRepositoryUnavailable
	}
	utils.Info("live event created", "match_id", match.MatchID, "code", code)
	return &match, nil
}

// Withdraw marks the caller's side as withdrawn. The battle drops out of
// public listings and official voting, but the record itself stays.
func (s *BattleService) Withdraw(ctx context.Context, caller Caller, matchID string, side models.Side) error {
	if caller.Anonymous() {
		return ErrAnonymous
	}
	match, err := s.fetchMatch(ctx, matchID)
	if err != nil {
		return err
	}
	var column string
	switch side {
	case models.SideA:
		if caller.Handle != match.AHandle {
			return ErrWrongResponder
		}
		column = "a_withdrawn"
	case models.SideB:
		if caller.Handle != match.BHandle {
			return ErrWrongResponder
		}
		column = "b_withdrawn"
	default:
		return ErrWrongState
	}

	res := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("match_id = ? AND closed = ?", matchID, false).
		Updates(map[string]any{
			column:                   true,
			"last_updated_timestamp": s.Clock.Now().Unix(),
		})
	if res.Error != nil {
		return ErrRepositoryUnavailable
	}
	if res.RowsAffected == 0 {
		return ErrWrongState
	}
	utils.Info("camp withdrawn", "match_id", matchID, "side", side, "handle", caller.Handle)
	return nil
}

// CloseWithOutcome is the tally engine's single terminal write. It only fires
// from the voting state with the deadline elapsed; a battle closes at most once
// no matter how many scheduler workers race. The deadline re-check matters for
// live events: a vote landing between the scheduler's select and this write
// bumps last_updated_timestamp, the close loses the CAS, and the next tick
// retries with that ballot included.
func (s *BattleService) CloseWithOutcome(ctx context.Context, matchID string, out Outcome) error {
	now := s.Clock.Now().Unix()
	inactivitySecs := int64(s.Config.LiveInactivityClose.Seconds())
	res := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("match_id = ? AND closed = ? AND a_verified = ? AND b_verified = ?", matchID, false, true, true).
		Where("(is_live = ? AND last_updated_timestamp + ? <= ?) OR (is_live = ? AND reply_timestamp + voting_duration_hours * 3600 <= ?)",
			true, inactivitySecs, now, false, now).
		Updates(map[string]any{
			"a_votes":                out.APopular,
			"b_votes":                out.BPopular,
			"a_judge_votes":          out.AJudge,
			"b_judge_votes":          out.BJudge,
			"a_final":                out.AFinal,
			"b_final":                out.BFinal,
			"closed":                 true,
			"pending_key":            nil,
			"last_updated_timestamp": now,
		})
	if res.Error != nil {
		utils.Error("failed to close battle", "match_id", matchID, "err", res.Error)
		return ErrRepositoryUnavailable
	}
	if res.RowsAffected == 0 {
		return ErrWrongState
	}

	match, err := s.fetchMatch(ctx, matchID)
	if err == nil {
		s.notifyClosed(ctx, match, out)
	}
	utils.Info("battle closed", "match_id", matchID,
		"a_final", out.AFinal, "b_final", out.BFinal, "winner", out.Winner)
	return nil
}

// validateJudges checks panel size, duplicates, camp overlap, and that every
// listed handle actually holds the judge role.
func (s *BattleService) validateJudges(ctx context.Context, judges []string, aHandle, bHandle string) error {
	if len(judges) > s.Config.MaxJudges {
		return ErrInvalidJudges
	}
	seen := make(map[string]bool, len(judges))
	for _, j := range judges {
		if j == "" || j == aHandle || j == bHandle || seen[j] {
			return ErrInvalidJudges
		}
		seen[j] = true
		info, err := s.Directory.Lookup(ctx, j)
		if err != nil {
			return err
		}
		if !info.IsJudge() {
			return ErrInvalidJudges
		}
	}
	return nil
}

func (s *BattleService) fetchMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	err := s.DB.WithContext(ctx).First(&match, "match_id = ?", matchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchMissing
		}
		utils.Error("failed to fetch battle", "match_id", matchID, "err", err)
		return nil, ErrRepositoryUnavailable
	}
	return &match, nil
}

func (s *BattleService) notifyAwaitingAdmin(ctx context.Context, match *models.Match, side models.Side) {
	if s.Notifier == nil || s.AdminRecipient == "" {
		return
	}
	err := s.Notifier.Notify(ctx, s.AdminRecipient, NotifyAwaitingAdmin, map[string]any{
		"match_id": match.MatchID,
		"short_id": match.ShortID,
		"side":     string(side),
		"a_camp":   match.AHandle,
		"b_camp":   match.BHandle,
	})
	if err != nil {
		// non-fatal, the transition stands
		utils.Warn("awaiting-admin notification failed", "match_id", match.MatchID, "err", err)
	}
}

func (s *BattleService) notifyClosed(ctx context.Context, match *models.Match, out Outcome) {
	if s.Notifier == nil {
		return
	}
	winner, loser := match.AHandle, match.BHandle
	winScore, loseScore := out.AFinal, out.BFinal
	if out.Winner == models.SideB {
		winner, loser = match.BHandle, match.AHandle
		winScore, loseScore = out.BFinal, out.AFinal
	}
	score := fmt.Sprintf("%d to %d", winScore, loseScore)

	if err := s.Notifier.Notify(ctx, winner, NotifyMatchClosed, map[string]any{
		"match_id": match.MatchID,
		"subject":  fmt.Sprintf("You WON against %s %s", loser, score),
		"body":     "<p>Congratulations! Great Job in the battle.</p>",
	}); err != nil {
		utils.Warn("winner notification failed", "match_id", match.MatchID, "err", err)
	}
	if err := s.Notifier.Notify(ctx, loser, NotifyMatchClosed, map[string]any{
		"match_id": match.MatchID,
		"subject":  fmt.Sprintf("You LOST against %s %s", winner, score),
		"body":     "<p>Everyone loses some battles. Keep practicing though. Your participation is greatly appreciated.</p>",
	}); err != nil {
		utils.Warn("loser notification failed", "match_id", match.MatchID, "err", err)
	}
}

// battleShortID builds the human-readable id used in share links,
// e.g. "bboy-flow-vs-krazy-legs-1a2b3c4d".
func battleShortID(aHandle, bHandle string) string {
	return fmt.Sprintf("%s-%s", slug.Make(aHandle+" vs "+bHandle), uuid.NewString()[:8])
}
