// dance-battle-system/services/query_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"dance-battle-system/models"

	"gorm.io/gorm"
)

// DisplayStatus is the three-state view the front-end shows.
type DisplayStatus string

const (
	StatusAwaitingResponse DisplayStatus = "awaiting_response"
	StatusVoting           DisplayStatus = "voting"
	StatusClosed           DisplayStatus = "closed"
)

// VotingEligibility tells the caller which kind of ballot, if any, they may
// cast on a battle right now.
type VotingEligibility string

const (
	EligibilityNone       VotingEligibility = "none"
	EligibilityUnofficial VotingEligibility = "unofficial"
	EligibilityOfficial   VotingEligibility = "official"
	EligibilityJudge      VotingEligibility = "judge"
)

// QueryService is the read-only projection side: listings and single-battle
// views. It never mutates anything.
type QueryService struct {
	DB *gorm.DB
}

func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{DB: db}
}

// BattleView is a battle plus its derived display fields.
type BattleView struct {
	models.Match
	Status DisplayStatus `json:"status"`
	Winner models.Side   `json:"winner,omitempty"`
}

// BattleDetail adds the caller-specific eligibility to a view.
type BattleDetail struct {
	BattleView
	Eligibility VotingEligibility `json:"voting_eligibility"`
}

// BattleFilter narrows a listing.
type BattleFilter struct {
	Search           string // substring match on either camp handle
	Live             bool   // list live events instead of regular battles
	IncludeWithdrawn bool
	Closed           *bool
}

// BattlePage is one page of a filtered listing.
type BattlePage struct {
	Data     []BattleView `json:"data"`
	MaxPages int          `json:"max_pages"`
}

// ListBattles returns verified battles, newest callouts first. Withdrawn
// battles stay out of the listing unless explicitly requested.
func (s *QueryService) ListBattles(ctx context.Context, filter BattleFilter, page, perPage int) (*BattlePage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	q := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("is_live = ? AND a_verified = ?", filter.Live, true)
	if !filter.IncludeWithdrawn {
		q = q.Where("a_withdrawn = ? AND b_withdrawn = ?", false, false)
	}
	if filter.Closed != nil {
		q = q.Where("closed = ?", *filter.Closed)
	}
	if filter.Search != "" {
		term := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("LOWER(a_handle) LIKE ? OR LOWER(b_handle) LIKE ?", term, term)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, ErrRepositoryUnavailable
	}

	var matches []models.Match
	err := q.Order("callout_timestamp DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&matches).Error
	if err != nil {
		return nil, ErrRepositoryUnavailable
	}

	views := make([]BattleView, 0, len(matches))
	for i := range matches {
		views = append(views, buildView(&matches[i]))
	}
	return &BattlePage{Data: views, MaxPages: maxPages(int(total), perPage)}, nil
}

// GetBattle returns the full view plus what the caller may do about voting.
func (s *QueryService) GetBattle(ctx context.Context, matchID string, caller Caller) (*BattleDetail, error) {
	var match models.Match
	if err := s.DB.WithContext(ctx).First(&match, "match_id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchMissing
		}
		return nil, ErrRepositoryUnavailable
	}
	return s.buildDetail(ctx, &match, caller)
}

// GetLiveEvent resolves a live event by its registration code; the shape is
// identical to GetBattle.
func (s *QueryService) GetLiveEvent(ctx context.Context, code string, caller Caller) (*BattleDetail, error) {
	var match models.Match
	if err := s.DB.WithContext(ctx).First(&match, "registration_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchMissing
		}
		return nil, ErrRepositoryUnavailable
	}
	return s.buildDetail(ctx, &match, caller)
}

// Scoreboard presents a closed battle from the winner's perspective.
type Scoreboard struct {
	WinnerName         string `json:"winner_name"`
	LoserName          string `json:"loser_name"`
	WinnerFinalVote    int    `json:"winner_final_vote"`
	LoserFinalVote     int    `json:"loser_final_vote"`
	WinnerOfficialVote int    `json:"winner_official_vote"`
	LoserOfficialVote  int    `json:"loser_official_vote"`
	WinnerJudgeVote    int    `json:"winner_judge_vote"`
	LoserJudgeVote     int    `json:"loser_judge_vote"`
}

// VotePage is one page of a closed battle's votes plus the scoreboard.
type VotePage struct {
	Data       []models.Vote `json:"data"`
	MaxPages   int           `json:"max_pages"`
	Scoreboard Scoreboard    `json:"battle_info"`
}

// ListVotes pages through the ballots of a closed battle. Open battles refuse
// the listing so running tallies can't be inferred.
func (s *QueryService) ListVotes(ctx context.Context, matchID string, page, perPage int) (*VotePage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var match models.Match
	if err := s.DB.WithContext(ctx).First(&match, "match_id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchMissing
		}
		return nil, ErrRepositoryUnavailable
	}
	if !match.Closed {
		return nil, ErrWrongState
	}

	q := s.DB.WithContext(ctx).Model(&models.Vote{}).Where("match_id = ?", matchID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, ErrRepositoryUnavailable
	}
	var votes []models.Vote
	err := q.Order("created_at ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&votes).Error
	if err != nil {
		return nil, ErrRepositoryUnavailable
	}

	return &VotePage{
		Data:       votes,
		MaxPages:   maxPages(int(total), perPage),
		Scoreboard: buildScoreboard(&match),
	}, nil
}

// ListPendingVerification feeds the admin queue: callouts awaiting A-side
// review and replies awaiting B-side review.
func (s *QueryService) ListPendingVerification(ctx context.Context) ([]BattleView, error) {
	var matches []models.Match
	err := s.DB.WithContext(ctx).
		Where("closed = ? AND is_live = ?", false, false).
		Where("(a_verified = ? AND callout_timestamp <> 0) OR (b_verified = ? AND reply_timestamp <> 0)", false, false).
		Order("last_updated_timestamp DESC").
		Find(&matches).Error
	if err != nil {
		return nil, ErrRepositoryUnavailable
	}
	views := make([]BattleView, 0, len(matches))
	for i := range matches {
		views = append(views, buildView(&matches[i]))
	}
	return views, nil
}

func (s *QueryService) buildDetail(ctx context.Context, match *models.Match, caller Caller) (*BattleDetail, error) {
	detail := BattleDetail{
		BattleView:  buildView(match),
		Eligibility: EligibilityNone,
	}

	if caller.Anonymous() || match.IsParticipant(caller.Handle) {
		return &detail, nil
	}
	if detail.Status == StatusAwaitingResponse {
		return &detail, nil
	}

	var voted int64
	err := s.DB.WithContext(ctx).Model(&models.Vote{}).
		Where("match_id = ? AND voter_handle = ?", match.MatchID, caller.Handle).
		Count(&voted).Error
	if err != nil {
		return nil, ErrRepositoryUnavailable
	}
	if voted > 0 {
		return &detail, nil
	}

	switch detail.Status {
	case StatusClosed:
		detail.Eligibility = EligibilityUnofficial
	case StatusVoting:
		if match.HasJudge(caller.Handle) {
			detail.Eligibility = EligibilityJudge
		} else {
			detail.Eligibility = EligibilityOfficial
		}
	}
	return &detail, nil
}

func buildView(m *models.Match) BattleView {
	view := BattleView{Match: *m}
	switch {
	case m.AVerified && m.BVerified && m.Closed:
		view.Status = StatusClosed
		view.Winner = m.WinnerSide()
	case m.AVerified && m.BVerified:
		view.Status = StatusVoting
	default:
		view.Status = StatusAwaitingResponse
	}
	return view
}

func buildScoreboard(m *models.Match) Scoreboard {
	if m.WinnerSide() == models.SideA {
		return Scoreboard{
			WinnerName:         m.AHandle,
			LoserName:          m.BHandle,
			WinnerFinalVote:    m.AFinal,
			LoserFinalVote:     m.BFinal,
			WinnerOfficialVote: m.AVotes,
			LoserOfficialVote:  m.BVotes,
			WinnerJudgeVote:    m.AJudgeVotes,
			LoserJudgeVote:     m.BJudgeVotes,
		}
	}
	return Scoreboard{
		WinnerName:         m.BHandle,
		LoserName:          m.AHandle,
		WinnerFinalVote:    m.BFinal,
		LoserFinalVote:     m.AFinal,
		WinnerOfficialVote: m.BVotes,
		LoserOfficialVote:  m.AVotes,
		WinnerJudgeVote:    m.BJudgeVotes,
		LoserJudgeVote:     m.AJudgeVotes,
	}
}

func maxPages(total, perPage int) int {
	if total == 0 {
		return 1
	}
	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	return pages
}
