// dance-battle-system/services/tally.go
package services

import (
	"math"

	"dance-battle-system/models"
)

// Outcome is the result of tallying a battle: raw cohort point sums, the
// rounded combined percentages, and the winner. AFinal/BFinal add up to ~100
// whenever anyone voted (rounding can leave 99 or 101).
type Outcome struct {
	APopular int
	BPopular int
	AJudge   int
	BJudge   int
	AFinal   int
	BFinal   int
	Winner   models.Side
}

// Tally computes the official outcome from the recorded votes. Pure: no clock,
// no randomness, same votes in, same outcome out.
//
// Official and judge cohorts are summed separately, each normalized to a
// percentage, then combined with the configured weights. If one cohort stayed
// silent the other stands alone; if both did, the scores are 0-0. Ties,
// including 0-0, go to side A.
func Tally(votes []models.Vote, cfg EngineConfig) Outcome {
	var out Outcome
	for _, v := range votes {
		switch v.Kind {
		case models.VoteOfficial:
			out.APopular += v.AScore
			out.BPopular += v.BScore
		case models.VoteJudge:
			out.AJudge += v.AScore
			out.BJudge += v.BScore
		}
		// unofficial votes never count
	}

	popTotal := out.APopular + out.BPopular
	judgeTotal := out.AJudge + out.BJudge

	var aFinal, bFinal float64
	switch {
	case popTotal > 0 && judgeTotal > 0:
		aPop := float64(out.APopular) / float64(popTotal) * 100
		bPop := float64(out.BPopular) / float64(popTotal) * 100
		aJudge := float64(out.AJudge) / float64(judgeTotal) * 100
		bJudge := float64(out.BJudge) / float64(judgeTotal) * 100
		aFinal = aPop*cfg.PopularWeight + aJudge*cfg.JudgeWeight
		bFinal = bPop*cfg.PopularWeight + bJudge*cfg.JudgeWeight
	case popTotal > 0:
		aFinal = float64(out.APopular) / float64(popTotal) * 100
		bFinal = float64(out.BPopular) / float64(popTotal) * 100
	case judgeTotal > 0:
		aFinal = float64(out.AJudge) / float64(judgeTotal) * 100
		bFinal = float64(out.BJudge) / float64(judgeTotal) * 100
	}

	out.AFinal = int(math.Round(aFinal))
	out.BFinal = int(math.Round(bFinal))

	if out.AFinal >= out.BFinal {
		out.Winner = models.SideA
	} else {
		out.Winner = models.SideB
	}
	return out
}
