package models

import "sort"

// Side identifies one camp of a battle.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

// MatchState is the lifecycle position of a battle, derived from the stored
// boolean/timestamp fields on read. The booleans stay in storage so older rows
// keep working; the state machine only ever reasons about this variant.
type MatchState string

const (
	StateAwaitingAdminA MatchState = "awaiting_admin_a"
	StateAwaitingReply  MatchState = "awaiting_reply"
	StateAwaitingAdminB MatchState = "awaiting_admin_b"
	StateVoting         MatchState = "voting"
	StateClosed         MatchState = "closed"
)

// Match is one callout→reply→voting battle between two camps.
// Live events skip media and admin verification and enter voting immediately.
type Match struct {
	MatchID string `gorm:"primaryKey;column:match_id" json:"match_id"`
	ShortID string `gorm:"index" json:"short_id"`

	// RegistrationCode is set for live events only; on-site admins resolve the
	// event by this code. Unique while present (sparse).
	RegistrationCode *string `gorm:"uniqueIndex" json:"registration_code,omitempty"`
	LiveAdminHandle  string  `json:"live_admin_handle,omitempty"`
	IsLive           bool    `gorm:"index" json:"is_live"`

	AHandle string `gorm:"index;not null" json:"a_handle"`
	BHandle string `gorm:"index;not null" json:"b_handle"`

	// PendingKey holds the sorted handle pair while the pair's single
	// pending-response slot is occupied (callout without a reply, or an open
	// live event). NULL otherwise, so the unique index only bites while the
	// slot exists. This is the storage-level duplicate-callout guard.
	PendingKey *string `gorm:"uniqueIndex" json:"-"`

	AMediaRef string `json:"a_media_ref"`
	AImageRef string `json:"a_image_ref"`
	BMediaRef string `json:"b_media_ref"`
	BImageRef string `json:"b_image_ref"`
	ReplyText string `json:"reply_text"`

	AVerified  bool `json:"a_verified"`
	BVerified  bool `json:"b_verified"`
	AWithdrawn bool `json:"a_withdrawn"`
	BWithdrawn bool `json:"b_withdrawn"`

	// Up to five judge handles, disjoint from the camps.
	Judges []string `gorm:"serializer:json" json:"judges"`

	Rules               string `json:"rules"`
	VotingDurationHours int    `json:"voting_duration_hours"`

	CalloutTimestamp     int64 `json:"callout_timestamp"`
	ReplyTimestamp       int64 `json:"reply_timestamp"`
	LastUpdatedTimestamp int64 `json:"last_updated_timestamp"`

	// Outcome fields, written exactly once at closure. AVotes/BVotes and
	// AJudgeVotes/BJudgeVotes are raw cohort point sums; AFinal/BFinal are the
	// rounded combined percentages.
	AVotes      int  `json:"a_votes"`
	BVotes      int  `json:"b_votes"`
	AJudgeVotes int  `json:"a_judge_votes"`
	BJudgeVotes int  `json:"b_judge_votes"`
	AFinal      int  `json:"a_final"`
	BFinal      int  `json:"b_final"`
	Closed      bool `gorm:"index" json:"closed"`
}

// State derives the lifecycle variant from the stored fields.
func (m *Match) State() MatchState {
	switch {
	case m.Closed:
		return StateClosed
	case !m.AVerified:
		return StateAwaitingAdminA
	case m.ReplyTimestamp == 0 && !m.IsLive:
		return StateAwaitingReply
	case !m.BVerified:
		return StateAwaitingAdminB
	default:
		return StateVoting
	}
}

// Withdrawn reports whether either camp has pulled out.
func (m *Match) Withdrawn() bool {
	return m.AWithdrawn || m.BWithdrawn
}

// HasJudge reports whether handle is on the judge panel.
func (m *Match) HasJudge(handle string) bool {
	for _, j := range m.Judges {
		if j == handle {
			return true
		}
	}
	return false
}

// IsParticipant reports whether handle is one of the two camps.
func (m *Match) IsParticipant(handle string) bool {
	return handle == m.AHandle || handle == m.BHandle
}

// WinnerSide is only meaningful once the battle is closed. Ties go to side A.
func (m *Match) WinnerSide() Side {
	if m.AFinal >= m.BFinal {
		return SideA
	}
	return SideB
}

// VotingDeadline returns the epoch second after which the tally job may close
// the battle. Live events close after a span of inactivity instead of a fixed
// voting window.
func (m *Match) VotingDeadline(liveInactivitySecs int64) int64 {
	if m.IsLive {
		return m.LastUpdatedTimestamp + liveInactivitySecs
	}
	return m.ReplyTimestamp + int64(m.VotingDurationHours)*3600
}

// PairKey builds the order-independent key for a handle pair.
func PairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "|" + pair[1]
}
