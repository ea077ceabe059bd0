package services

import (
	"context"
	"testing"
	"time"

	"dance-battle-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVotingEligibility(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	match := e.startVotingBattle(t, "alpha", "bravo", []string{"judge-one"}, 24)

	check := func(caller Caller, want VotingEligibility) {
		t.Helper()
		detail, err := e.Queries.GetBattle(ctx, match.MatchID, caller)
		require.NoError(t, err)
		assert.Equal(t, want, detail.Eligibility)
	}

	check(Caller{}, EligibilityNone)
	check(battler("alpha"), EligibilityNone)
	check(battler("bravo"), EligibilityNone)
	check(voter("judge-one"), EligibilityJudge)
	check(voter("fan-one"), EligibilityOfficial)

	// Casting a ballot spends the eligibility.
	e.castOfficial(t, match.MatchID, "fan-one", 60, 40)
	check(voter("fan-one"), EligibilityNone)

	e.Clock.Advance(24 * time.Hour)
	require.NoError(t, e.Battles.CloseWithOutcome(ctx, match.MatchID, Outcome{AFinal: 60, BFinal: 40, Winner: models.SideA}))

	check(voter("fan-two"), EligibilityUnofficial)
	check(voter("judge-one"), EligibilityUnofficial)
	check(voter("fan-one"), EligibilityNone)
	check(battler("alpha"), EligibilityNone)
}

func TestEligibilityBeforeVotingOpens(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	match, err := e.Battles.CreateCallout(ctx, battler("alpha"), CalloutInput{Opponent: "bravo", DurationHours: 24})
	require.NoError(t, err)

	detail, err := e.Queries.GetBattle(ctx, match.MatchID, voter("fan-one"))
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingResponse, detail.Status)
	assert.Equal(t, EligibilityNone, detail.Eligibility)
}

func TestListBattles(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first := e.startVotingBattle(t, "alpha", "bravo", nil, 24)
	e.Clock.Advance(time.Second)
	second := e.startVotingBattle(t, "charlie", "delta", nil, 24)

	// Unverified callouts never show up.
	e.Clock.Advance(time.Second)
	_, err := e.Battles.CreateCallout(ctx, battler("delta"), CalloutInput{Opponent: "alpha", DurationHours: 24})
	require.NoError(t, err)

	// Withdrawn battles drop out unless asked for.
	e.Clock.Advance(time.Second)
	withdrawn := e.startVotingBattle(t, "bravo", "charlie", nil, 24)
	require.NoError(t, e.Battles.Withdraw(ctx, battler("bravo"), withdrawn.MatchID, models.SideA))

	// Live events live in their own listing.
	live, err := e.Battles.CreateLiveEvent(ctx, judge("judge-one"), LiveEventInput{AHandle: "bravo", BHandle: "delta"})
	require.NoError(t, err)

	page, err := e.Queries.ListBattles(ctx, BattleFilter{}, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	// Newest callout first.
	assert.Equal(t, second.MatchID, page.Data[0].MatchID)
	assert.Equal(t, first.MatchID, page.Data[1].MatchID)
	assert.Equal(t, StatusVoting, page.Data[0].Status)

	page, err = e.Queries.ListBattles(ctx, BattleFilter{IncludeWithdrawn: true}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, page.Data, 3)

	page, err = e.Queries.ListBattles(ctx, BattleFilter{Live: true}, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, live.MatchID, page.Data[0].MatchID)

	// Substring search on either handle, case-insensitive.
	page, err = e.Queries.ListBattles(ctx, BattleFilter{Search: "ALPH"}, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, first.MatchID, page.Data[0].MatchID)

	// Closed filter.
	e.Clock.Advance(24 * time.Hour)
	require.NoError(t, e.Battles.CloseWithOutcome(ctx, first.MatchID, Outcome{Winner: models.SideA}))
	closedTrue := true
	page, err = e.Queries.ListBattles(ctx, BattleFilter{Closed: &closedTrue}, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, StatusClosed, page.Data[0].Status)
	assert.Equal(t, models.SideA, page.Data[0].Winner)

	// Pagination.
	page, err = e.Queries.ListBattles(ctx, BattleFilter{}, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 2, page.MaxPages)
}

func TestListVotesOnlyWhenClosed(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	match := e.startVotingBattle(t, "alpha", "bravo", []string{"judge-one"}, 24)

	e.castOfficial(t, match.MatchID, "fan-one", 20, 80)
	e.Clock.Advance(time.Second)
	e.castJudge(t, match.MatchID, "judge-one", 30, 70)

	_, err := e.Queries.ListVotes(ctx, match.MatchID, 1, 20)
	require.ErrorIs(t, err, ErrWrongState)

	_, err = e.Queries.ListVotes(ctx, "no-such-battle", 1, 20)
	require.ErrorIs(t, err, ErrMatchMissing)

	e.Clock.Advance(24 * time.Hour)
	out := Outcome{APopular: 20, BPopular: 80, AJudge: 30, BJudge: 70, AFinal: 27, BFinal: 73, Winner: models.SideB}
	require.NoError(t, e.Battles.CloseWithOutcome(ctx, match.MatchID, out))

	page, err := e.Queries.ListVotes(ctx, match.MatchID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	// Oldest ballot first.
	assert.Equal(t, "fan-one", page.Data[0].VoterHandle)
	assert.Equal(t, "judge-one", page.Data[1].VoterHandle)

	// Scoreboard reads from the winner's side.
	sb := page.Scoreboard
	assert.Equal(t, "bravo", sb.WinnerName)
	assert.Equal(t, "alpha", sb.LoserName)
	assert.Equal(t, 73, sb.WinnerFinalVote)
	assert.Equal(t, 27, sb.LoserFinalVote)
	assert.Equal(t, 80, sb.WinnerOfficialVote)
	assert.Equal(t, 20, sb.LoserOfficialVote)
	assert.Equal(t, 70, sb.WinnerJudgeVote)
	assert.Equal(t, 30, sb.LoserJudgeVote)

	page, err = e.Queries.ListVotes(ctx, match.MatchID, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 2, page.MaxPages)
}

func TestGetLiveEventByCode(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	live, err := e.Battles.CreateLiveEvent(ctx, judge("judge-one"), LiveEventInput{
		AHandle: "alpha", BHandle: "bravo", Judges: []string{"judge-two"},
	})
	require.NoError(t, err)

	detail, err := e.Queries.GetLiveEvent(ctx, *live.RegistrationCode, voter("fan-one"))
	require.NoError(t, err)
	assert.Equal(t, live.MatchID, detail.MatchID)
	assert.Equal(t, StatusVoting, detail.Status)
	assert.Equal(t, EligibilityOfficial, detail.Eligibility)

	_, err = e.Queries.GetLiveEvent(ctx, "not-a-code", voter("fan-one"))
	require.ErrorIs(t, err, ErrMatchMissing)
}

func TestListPendingVerification(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	match, err := e.Battles.CreateCallout(ctx, battler("alpha"), CalloutInput{Opponent: "bravo", DurationHours: 24})
	require.NoError(t, err)

	// Live events skip the queue entirely.
	_, err = e.Battles.CreateLiveEvent(ctx, judge("judge-one"), LiveEventInput{AHandle: "charlie", BHandle: "delta"})
	require.NoError(t, err)

	pending, err := e.Queries.ListPendingVerification(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, match.MatchID, pending[0].MatchID)

	require.NoError(t, e.Battles.AdminVerifyA(ctx, admin(), match.MatchID))
	pending, err = e.Queries.ListPendingVerification(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The reply puts it back in the queue for B-side review.
	_, err = e.Battles.SubmitReply(ctx, battler("bravo"), match.MatchID, "videos/r.mp4", "", "")
	require.NoError(t, err)
	pending, err = e.Queries.ListPendingVerification(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, e.Battles.AdminVerifyB(ctx, admin(), match.MatchID))
	pending, err = e.Queries.ListPendingVerification(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
