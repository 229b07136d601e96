package services

import "testing"

func TestGetExpForNextLevel(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{0, 10},
		{1, 40},
		{2, 70},
		{3, 100},
	}
	for _, tt := range tests {
		if got := GetExpForNextLevel(tt.level); got != tt.want {
			t.Errorf("GetExpForNextLevel(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestGetExpForNextLevelMonotonic(t *testing.T) {
	prev := GetExpForNextLevel(1)
	for level := 2; level <= 200; level++ {
		cur := GetExpForNextLevel(level)
		if cur < prev {
			t.Fatalf("curve decreased at level %d: %d < %d", level, cur, prev)
		}
		prev = cur
	}
}

func TestGetTotalExperienceForLevel(t *testing.T) {
	tests := []struct {
		target int
		want   int
	}{
		{1, 0},
		{2, 40},
		{3, 110},
		{4, 210},
	}
	for _, tt := range tests {
		if got := GetTotalExperienceForLevel(tt.target); got != tt.want {
			t.Errorf("GetTotalExperienceForLevel(%d) = %d, want %d", tt.target, got, tt.want)
		}
	}
}

func TestGetLevelFromExp(t *testing.T) {
	tests := []struct {
		exp  int
		want int
	}{
		{0, 0},
		{9, 0},
		{10, 1},
		{49, 1},
		{50, 2},
		{119, 2},
		{120, 3},
	}
	for _, tt := range tests {
		if got := GetLevelFromExp(tt.exp); got != tt.want {
			t.Errorf("GetLevelFromExp(%d) = %d, want %d", tt.exp, got, tt.want)
		}
	}
}

func TestGetLevelFromExpMatchesThresholds(t *testing.T) {
	// Exactly consuming the first n thresholds must land on level n.
	exp := 0
	for level := 0; level < 50; level++ {
		if got := GetLevelFromExp(exp); got != level {
			t.Fatalf("GetLevelFromExp(%d) = %d, want %d", exp, got, level)
		}
		exp += GetExpForNextLevel(level)
	}
}

func TestGetExpForRound(t *testing.T) {
	tests := []struct {
		name        string
		won         bool
		playedCards int
		numPlayers  int
		turnsPlayed int
		roundScore  int
		want        int
	}{
		// 20 - 0.2 + 0.8 - 0.5 + 3*0.3 = 21.0
		{"winner negative score", true, 2, 4, 5, -3, 21},
		// 20 - 0.1 + 0.6 - 0.4 + 0.2 = 20.3
		{"winner zero score", true, 1, 3, 4, 0, 20},
		// 20 - 0.3 + 0.8 - 0.6 + 4*0.2 = 20.7
		{"winner positive score", true, 3, 4, 6, 4, 21},
		// 10 + 0.0 + 0.6 - 0.2 + 7*0.1 = 11.1
		{"loser positive score", false, 0, 3, 2, 7, 11},
		// 10 - 0.1 + 0.6 - 0.3 + 2*0.1 = 10.4
		{"loser negative score", false, 1, 3, 3, -2, 10},
		// 10 - 0.1 + 0.6 - 0.3 + 0.1 = 10.3
		{"loser zero score", false, 1, 3, 3, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetExpForRound(tt.won, tt.playedCards, tt.numPlayers, tt.turnsPlayed, tt.roundScore)
			if got != tt.want {
				t.Errorf("GetExpForRound(%v, %d, %d, %d, %d) = %d, want %d",
					tt.won, tt.playedCards, tt.numPlayers, tt.turnsPlayed, tt.roundScore, got, tt.want)
			}
		})
	}
}

func TestGetExpForRoundWinnerBeatsLoser(t *testing.T) {
	// Same round shape, the winner always earns at least as much.
	for score := -10; score <= 10; score++ {
		w := GetExpForRound(true, 2, 4, 5, score)
		l := GetExpForRound(false, 2, 4, 5, score)
		if w < l {
			t.Errorf("score %d: winner exp %d < loser exp %d", score, w, l)
		}
	}
}
