package services

import (
	"context"
	"sync"
	"testing"

	"dance-battle-system/models"

	"github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens an isolated in-memory database with the same TranslateError
// behavior production uses, so duplicate-key handling is exercised for real.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection, or each pooled conn would see its own :memory: database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Match{}, &models.Vote{}))
	return db
}

// fakeDirectory serves canned lookups.
type fakeDirectory map[string]UserInfo

func (d fakeDirectory) Lookup(_ context.Context, handle string) (UserInfo, error) {
	return d[handle], nil
}

type sentNote struct {
	Recipient string
	Kind      NotificationKind
	Payload   map[string]any
}

// recordingNotifier captures notifications instead of delivering them.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNote
}

func (n *recordingNotifier) Notify(_ context.Context, recipient string, kind NotificationKind, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNote{Recipient: recipient, Kind: kind, Payload: payload})
	return nil
}

func (n *recordingNotifier) ofKind(kind NotificationKind) []sentNote {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNote
	for _, s := range n.sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type testEngine struct {
	DB       *gorm.DB
	Clock    *clockwork.FakeClock
	Notifier *recordingNotifier
	Battles  *BattleService
	Votes    *VoteService
	Queries  *QueryService
	Sched    *TallyScheduler
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	db := newTestDB(t)
	clock := clockwork.NewFakeClock()
	notifier := &recordingNotifier{}
	cfg := DefaultEngineConfig()

	dir := fakeDirectory{
		"alpha":   {Exists: true, Roles: []string{RoleBattler}},
		"bravo":   {Exists: true, Roles: []string{RoleBattler}},
		"charlie": {Exists: true, Roles: []string{RoleBattler}},
		"delta":   {Exists: true, Roles: []string{RoleBattler}},
		"spectator": {
			Exists: true, Roles: nil, // registered, but not a battler
		},
		"judge-one":   {Exists: true, Roles: []string{RoleJudge}},
		"judge-two":   {Exists: true, Roles: []string{RoleJudge}},
		"judge-three": {Exists: true, Roles: []string{RoleJudge}},
		"judge-four":  {Exists: true, Roles: []string{RoleJudge}},
		"judge-five":  {Exists: true, Roles: []string{RoleJudge}},
	}

	battles := NewBattleService(db, dir, notifier, clock, cfg)
	battles.AdminRecipient = "battle-hq"

	return &testEngine{
		DB:       db,
		Clock:    clock,
		Notifier: notifier,
		Battles:  battles,
		Votes:    NewVoteService(db, clock, cfg),
		Queries:  NewQueryService(db),
		Sched:    NewTallyScheduler(db, battles, clock, cfg),
	}
}

func battler(handle string) Caller {
	return Caller{Handle: handle, Roles: []string{RoleBattler}}
}

func judge(handle string) Caller {
	return Caller{Handle: handle, Roles: []string{RoleJudge}}
}

func admin() Caller {
	return Caller{Handle: "site-admin", Roles: []string{RoleAdmin}}
}

func voter(handle string) Caller {
	return Caller{Handle: handle}
}

// startVotingBattle drives a fresh callout all the way into the voting state.
func (e *testEngine) startVotingBattle(t *testing.T, a, b string, judges []string, durationHours int) *models.Match {
	t.Helper()
	ctx := context.Background()

	match, err := e.Battles.CreateCallout(ctx, battler(a), CalloutInput{
		Opponent:      b,
		MediaRef:      "videos/callout.mp4",
		ImageRef:      "images/callout.jpeg",
		Judges:        judges,
		Rules:         "3 rounds, no props",
		DurationHours: durationHours,
	})
	require.NoError(t, err)

	require.NoError(t, e.Battles.AdminVerifyA(ctx, admin(), match.MatchID))

	_, err = e.Battles.SubmitReply(ctx, battler(b), match.MatchID, "videos/reply.mp4", "images/reply.jpeg", "bring it")
	require.NoError(t, err)

	require.NoError(t, e.Battles.AdminVerifyB(ctx, admin(), match.MatchID))

	updated := e.reload(t, match.MatchID)
	require.Equal(t, models.StateVoting, updated.State())
	return updated
}

func (e *testEngine) reload(t *testing.T, matchID string) *models.Match {
	t.Helper()
	var match models.Match
	require.NoError(t, e.DB.First(&match, "match_id = ?", matchID).Error)
	return &match
}

func (e *testEngine) castOfficial(t *testing.T, matchID, handle string, aScore, bScore int) {
	t.Helper()
	_, err := e.Votes.CastVote(context.Background(), voter(handle), VoteInput{
		MatchID:      matchID,
		Kind:         models.VoteOfficial,
		AScore:       aScore,
		BScore:       bScore,
		SignatureRef: "images/sig-" + handle + ".jpeg",
	})
	require.NoError(t, err)
}

func (e *testEngine) castJudge(t *testing.T, matchID, handle string, aScore, bScore int) {
	t.Helper()
	_, err := e.Votes.CastVote(context.Background(), voter(handle), VoteInput{
		MatchID:      matchID,
		Kind:         models.VoteJudge,
		AScore:       aScore,
		BScore:       bScore,
		SignatureRef: "images/sig-" + handle + ".jpeg",
	})
	require.NoError(t, err)
}
