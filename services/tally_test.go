package services

import (
	"testing"

	"dance-battle-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func official(a, b int) models.Vote {
	return models.Vote{Kind: models.VoteOfficial, AScore: a, BScore: b}
}

func judgeVote(a, b int) models.Vote {
	return models.Vote{Kind: models.VoteJudge, AScore: a, BScore: b}
}

func TestTallyPopularOnly(t *testing.T) {
	cfg := DefaultEngineConfig()
	out := Tally([]models.Vote{
		official(80, 20),
		official(70, 30),
		official(60, 40),
	}, cfg)

	assert.Equal(t, 210, out.APopular)
	assert.Equal(t, 90, out.BPopular)
	assert.Equal(t, 0, out.AJudge)
	assert.Equal(t, 0, out.BJudge)
	assert.Equal(t, 70, out.AFinal)
	assert.Equal(t, 30, out.BFinal)
	assert.Equal(t, models.SideA, out.Winner)
}

func TestTallyJudgeOnly(t *testing.T) {
	cfg := DefaultEngineConfig()
	out := Tally([]models.Vote{
		judgeVote(100, 0),
		judgeVote(100, 0),
		judgeVote(0, 100),
		judgeVote(50, 50),
		judgeVote(50, 50),
	}, cfg)

	assert.Equal(t, 300, out.AJudge)
	assert.Equal(t, 200, out.BJudge)
	assert.Equal(t, 60, out.AFinal)
	assert.Equal(t, 40, out.BFinal)
	assert.Equal(t, models.SideA, out.Winner)
}

func TestTallyJudgesOutweighCrowd(t *testing.T) {
	cfg := DefaultEngineConfig()
	// Crowd unanimous for A, single judge unanimous for B.
	out := Tally([]models.Vote{
		official(100, 0),
		judgeVote(0, 100),
	}, cfg)

	assert.Equal(t, 33, out.AFinal)
	assert.Equal(t, 67, out.BFinal)
	assert.Equal(t, models.SideB, out.Winner)
}

func TestTallyTieGoesToCaller(t *testing.T) {
	cfg := DefaultEngineConfig()
	out := Tally([]models.Vote{
		official(50, 50),
		judgeVote(50, 50),
	}, cfg)

	assert.Equal(t, out.AFinal, out.BFinal)
	assert.Equal(t, models.SideA, out.Winner)
}

func TestTallyNoVotes(t *testing.T) {
	cfg := DefaultEngineConfig()
	out := Tally(nil, cfg)

	assert.Equal(t, 0, out.AFinal)
	assert.Equal(t, 0, out.BFinal)
	assert.Equal(t, models.SideA, out.Winner)
}

func TestTallyIgnoresUnofficialVotes(t *testing.T) {
	cfg := DefaultEngineConfig()
	out := Tally([]models.Vote{
		official(80, 20),
		{Kind: models.VoteUnofficial, AScore: 0, BScore: 100},
		{Kind: models.VoteUnofficial, AScore: 0, BScore: 100},
	}, cfg)

	assert.Equal(t, 80, out.APopular)
	assert.Equal(t, 20, out.BPopular)
	assert.Equal(t, 80, out.AFinal)
	assert.Equal(t, 20, out.BFinal)
	assert.Equal(t, models.SideA, out.Winner)
}

func TestTallyIsDeterministic(t *testing.T) {
	cfg := DefaultEngineConfig()
	votes := []models.Vote{
		official(55, 45),
		official(10, 90),
		judgeVote(70, 30),
		judgeVote(20, 80),
	}
	first := Tally(votes, cfg)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Tally(votes, cfg))
	}
}

func TestTallyFinalsSumNearHundred(t *testing.T) {
	cfg := DefaultEngineConfig()
	cases := [][]models.Vote{
		{official(80, 20), judgeVote(30, 70)},
		{official(1, 99), judgeVote(99, 1)},
		{official(33, 67), official(34, 66), judgeVote(50, 50)},
		{official(100, 0), judgeVote(100, 0)},
		{official(17, 83), judgeVote(62, 38), judgeVote(41, 59)},
	}
	for _, votes := range cases {
		out := Tally(votes, cfg)
		sum := out.AFinal + out.BFinal
		assert.True(t, sum >= 99 && sum <= 101, "finals summed to %d", sum)
	}
}

func TestTallySilentCohortFallsBack(t *testing.T) {
	cfg := DefaultEngineConfig()

	// Judges silent: popular percentage stands unweighted.
	out := Tally([]models.Vote{official(75, 25), official(75, 25)}, cfg)
	assert.Equal(t, 75, out.AFinal)
	assert.Equal(t, 25, out.BFinal)

	// Crowd silent: judge percentage stands unweighted.
	out = Tally([]models.Vote{judgeVote(40, 60)}, cfg)
	assert.Equal(t, 40, out.AFinal)
	assert.Equal(t, 60, out.BFinal)
	assert.Equal(t, models.SideB, out.Winner)
}
