package services

import "math"

// Experience curve constants. The curve compounds from a base value so
// per-level tables never need hand-coding.
const (
	levelBaseExperience = 40
	levelMinIncrease    = 30
	levelGrowthRate     = 1.005
)

// GetExpForNextLevel returns the experience required to advance from
// the given level to the next one. Monotonically non-decreasing.
func GetExpForNextLevel(level int) int {
	exp := levelBaseExperience +
		levelMinIncrease*(math.Pow(levelGrowthRate, float64(level-1))-1)/(levelGrowthRate-1)
	return int(math.Round(exp))
}

// GetTotalExperienceForLevel returns the cumulative experience needed
// to reach targetLevel from level 1.
func GetTotalExperienceForLevel(targetLevel int) int {
	total := 0
	for i := 1; i < targetLevel; i++ {
		total += GetExpForNextLevel(i)
	}
	return total
}

// GetLevelFromExp converts accumulated experience to a level by
// greedily consuming thresholds. Terminates for any non-negative input
// because every threshold is at least levelBaseExperience.
func GetLevelFromExp(exp int) int {
	level := 0
	for exp >= GetExpForNextLevel(level) {
		exp -= GetExpForNextLevel(level)
		level++
	}
	return level
}

// GetExpForRound computes the experience reward for one round.
// Winners earn a doubled base; cards and turns played cost experience,
// table size earns it, and the round score contributes a term whose
// weight depends on both the outcome and the score's sign.
func GetExpForRound(won bool, playedCards, numPlayers, turnsPlayed, roundScore int) int {
	winMultiplier := 1.0
	if won {
		winMultiplier = 2.0
	}
	const (
		cardMultiplier   = -0.1
		playerMultiplier = 0.2
		turnsMultiplier  = -0.1
	)

	winExp := winMultiplier * 10
	cardExp := cardMultiplier * float64(playedCards)
	playerExp := playerMultiplier * float64(numPlayers)
	turnsExp := turnsMultiplier * float64(turnsPlayed)

	var scoreExp float64
	switch {
	case won && roundScore < 0:
		scoreExp = math.Abs(float64(roundScore)) * 0.3
	case won && roundScore >= 0:
		if roundScore == 0 {
			scoreExp = 0.2
		} else {
			scoreExp = float64(roundScore) * 0.2
		}
	case !won && roundScore < 0:
		scoreExp = math.Abs(float64(roundScore)) * 0.1
	default:
		if roundScore == 0 {
			scoreExp = 0.1
		} else {
			scoreExp = float64(roundScore) * 0.1
		}
	}

	return int(math.Round(winExp + cardExp + playerExp + turnsExp + scoreExp))
}
