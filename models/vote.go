package models

// VoteKind mirrors the wire values the clients already send:
// 0 unofficial, 1 official (popular), 2 judge.
type VoteKind int

const (
	VoteUnofficial VoteKind = 0
	VoteOfficial   VoteKind = 1
	VoteJudge      VoteKind = 2
)

// Vote is a single scored ballot on a battle. A voter gets exactly one vote
// per battle; the composite unique index is what enforces it, not application
// code.
type Vote struct {
	ID          string   `gorm:"primaryKey" json:"id"`
	MatchID     string   `gorm:"uniqueIndex:idx_vote_once;not null" json:"match_id"`
	VoterHandle string   `gorm:"uniqueIndex:idx_vote_once;not null" json:"voter_handle"`
	Kind        VoteKind `gorm:"index" json:"kind"`

	// Point split in [0,100]; always sums to 100.
	AScore int `json:"a_score"`
	BScore int `json:"b_score"`

	Statement string `gorm:"type:text" json:"statement"`

	// SignatureRef points at the voter's uploaded signature image. Required
	// for official and judge votes, empty for unofficial ones.
	SignatureRef string `json:"signature_ref"`

	CreatedAt int64 `gorm:"column:created_at" json:"created_at"`
}
