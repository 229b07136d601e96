package services

import (
	"errors"
	"sync"
	"testing"

	"screw/models"
)

// newTestGameService wires a GameService around an in-memory catalog
// only. Store, accounts and hub stay nil: these tests exercise the
// engine's state transitions directly on an aggregate.
func newTestGameService(t *testing.T, cards ...models.Card) *GameService {
	t.Helper()
	return &GameService{
		cards:  newTestCardService(t, cards...),
		timers: NewTurnScheduler(),
		locks:  make(map[string]*sync.Mutex),
	}
}

func playingSession(numberOfRounds int, playerIDs ...string) *models.Session {
	sess := &models.Session{
		Code:           "abc123",
		NumberOfRounds: numberOfRounds,
		MaxMoveTime:    -1,
		MaxPlayers:     14,
		Status: []models.StatusEntry{
			{Type: models.StatusWaiting, By: playerIDs[0], Date: 1, Active: false},
			{Type: models.StatusPlaying, By: playerIDs[0], Date: 2, Active: true},
		},
	}
	for _, id := range playerIDs {
		sess.Players = append(sess.Players, newSeat(id, "name-"+id))
	}
	return sess
}

func TestStartNewRoundDeals(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 20))
	sess := playingSession(4, "p1", "p2", "p3")

	if err := s.startNewRound(sess); err != nil {
		t.Fatalf("startNewRound: %v", err)
	}

	round := sess.CurrentRound()
	if round == nil {
		t.Fatal("no active round after startNewRound")
	}
	if round.Number != 1 {
		t.Errorf("round number = %d, want 1", round.Number)
	}
	if round.ScrewPlayerIndex != models.NoScrew {
		t.Errorf("screw index = %d, want %d", round.ScrewPlayerIndex, models.NoScrew)
	}
	if round.CurrentPlayerIndex < 0 || round.CurrentPlayerIndex >= len(sess.Players) {
		t.Errorf("starting player index %d out of range", round.CurrentPlayerIndex)
	}

	for i := range sess.Players {
		if got := sess.Players[i].FilledSlots(); got != models.HandSize {
			t.Errorf("player %d dealt %d cards, want %d", i, got, models.HandSize)
		}
	}
	if len(round.UsedCards) != 1 {
		t.Errorf("floor size = %d, want 1", len(round.UsedCards))
	}

	gen := round.ActiveGeneration()
	if gen == nil {
		t.Fatal("no active deck generation")
	}
	if gen.Shuffle != 1 {
		t.Errorf("generation shuffle = %d, want 1", gen.Shuffle)
	}
	// Every card is either in a hand, on the floor, or still in the deck.
	total := len(sess.Players)*models.HandSize + len(round.UsedCards) + len(gen.Cards)
	if total != 20 {
		t.Errorf("cards in circulation = %d, want 20", total)
	}
}

func TestStartNewRoundWhileRoundActive(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 20))
	sess := playingSession(4, "p1", "p2")
	sess.Rounds = append(sess.Rounds, models.Round{Number: 1, Active: true})

	err := s.startNewRound(sess)
	if !errors.Is(err, ErrIllegalState) {
		t.Errorf("err = %v, want ErrIllegalState", err)
	}
}

func TestStartNewRoundBudgetSpent(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 20))
	sess := playingSession(1, "p1", "p2")
	sess.Rounds = append(sess.Rounds, models.Round{Number: 1, Active: false})

	err := s.startNewRound(sess)
	if !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("err = %v, want ErrResourceExhausted", err)
	}
}

func TestStartNewRoundDeckTooSmall(t *testing.T) {
	// Two players need 2*4+1 = 9 cards; the catalog only yields 8.
	s := newTestGameService(t, numberCard(1, 2, 8))
	sess := playingSession(4, "p1", "p2")

	err := s.startNewRound(sess)
	if !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("err = %v, want ErrResourceExhausted", err)
	}
	if len(sess.Rounds) != 0 {
		t.Errorf("round appended despite failure")
	}
}

func TestAvailableDeckRecyclesDiscard(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 20))
	round := &models.Round{
		Number:         1,
		AvailableCards: []models.DeckGeneration{{Cards: []int{}, Shuffle: 1, Active: true}},
		UsedCards:      []int{1, 2, 3, 4},
		Active:         true,
	}

	gen, err := s.availableDeck(round)
	if err != nil {
		t.Fatalf("availableDeck: %v", err)
	}

	// The discard top stays down as the floor; the rest becomes the deck.
	if len(round.UsedCards) != 1 || round.UsedCards[0] != 4 {
		t.Errorf("floor after recycle = %v, want [4]", round.UsedCards)
	}
	if gen.Shuffle != 2 {
		t.Errorf("generation shuffle = %d, want 2", gen.Shuffle)
	}
	counts := map[int]int{}
	for _, c := range gen.Cards {
		counts[c]++
	}
	if len(gen.Cards) != 3 || counts[1] != 1 || counts[2] != 1 || counts[3] != 1 {
		t.Errorf("recycled deck = %v, want a permutation of [1 2 3]", gen.Cards)
	}
	if round.AvailableCards[0].Active {
		t.Error("exhausted generation still active")
	}
	if !gen.Active {
		t.Error("new generation not active")
	}
}

func TestAvailableDeckBuildsFreshDeck(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 5))
	round := &models.Round{
		Number:         1,
		AvailableCards: []models.DeckGeneration{{Cards: []int{}, Shuffle: 1, Active: true}},
		UsedCards:      []int{7},
		Active:         true,
	}

	gen, err := s.availableDeck(round)
	if err != nil {
		t.Fatalf("availableDeck: %v", err)
	}

	// A one-card discard cannot seed a deck; a full fresh one is built
	// and the floor card stays where it is.
	if len(gen.Cards) != 5 {
		t.Errorf("fresh deck size = %d, want 5", len(gen.Cards))
	}
	if len(round.UsedCards) != 1 || round.UsedCards[0] != 7 {
		t.Errorf("floor after fresh build = %v, want [7]", round.UsedCards)
	}
	if gen.Shuffle != 2 {
		t.Errorf("generation shuffle = %d, want 2", gen.Shuffle)
	}
}

func TestAvailableDeckReturnsActiveNonEmpty(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 5))
	round := &models.Round{
		AvailableCards: []models.DeckGeneration{{Cards: []int{9, 8}, Shuffle: 1, Active: true}},
		UsedCards:      []int{1},
	}

	gen, err := s.availableDeck(round)
	if err != nil {
		t.Fatalf("availableDeck: %v", err)
	}
	if gen.Shuffle != 1 || len(gen.Cards) != 2 {
		t.Errorf("got a new generation, want the existing non-empty one")
	}
}

func TestIsRoundFinished(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 20))

	fullHand := [models.HandSize]int{1, 1, 1, 1}
	emptyHand := [models.HandSize]int{models.EmptySlot, models.EmptySlot, models.EmptySlot, models.EmptySlot}

	tests := []struct {
		name         string
		hands        [][models.HandSize]int
		screwIndex   int
		currentIndex int
		want         bool
	}{
		{"nothing pending", [][models.HandSize]int{fullHand, fullHand}, models.NoScrew, 0, false},
		{"screw pending not reached", [][models.HandSize]int{fullHand, fullHand}, 1, 0, false},
		{"screw reached", [][models.HandSize]int{fullHand, fullHand}, 1, 1, true},
		{"hand emptied", [][models.HandSize]int{fullHand, emptyHand}, models.NoScrew, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := playingSession(4, "p1", "p2")
			for i, hand := range tt.hands {
				sess.Players[i].Cards = hand
			}
			round := &models.Round{
				ScrewPlayerIndex:   tt.screwIndex,
				CurrentPlayerIndex: tt.currentIndex,
				Active:             true,
			}
			if got := s.isRoundFinished(sess, round); got != tt.want {
				t.Errorf("isRoundFinished = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEndRoundScoresAndAccumulates(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 40), numberCard(2, 5, 40))
	sess := playingSession(3, "p1", "p2", "p3")
	sess.Rounds = append(sess.Rounds, models.Round{Number: 1, Active: true})
	e := models.EmptySlot
	sess.Players[0].Cards = [models.HandSize]int{1, 1, e, e} // 4 points
	sess.Players[1].Cards = [models.HandSize]int{1, 1, e, e} // 4 points
	sess.Players[2].Cards = [models.HandSize]int{2, 1, 1, e} // 9 points

	results, err := s.endRound(sess)
	if err != nil {
		t.Fatalf("endRound: %v", err)
	}

	first := &sess.Rounds[0]
	if first.Active {
		t.Error("ended round still active")
	}
	if len(first.Winners) != 2 || first.Winners[0] != "p1" || first.Winners[1] != "p2" {
		t.Errorf("round winners = %v, want [p1 p2]", first.Winners)
	}

	// Losers accumulate their round score; winners stay put.
	if sess.Players[0].Score != 0 || sess.Players[1].Score != 0 {
		t.Errorf("winner scores = %d, %d, want 0, 0", sess.Players[0].Score, sess.Players[1].Score)
	}
	if sess.Players[2].Score != 9 {
		t.Errorf("loser score = %d, want 9", sess.Players[2].Score)
	}

	wantScores := []int{4, 4, 9}
	wantWon := []bool{true, true, false}
	for i, r := range results {
		if r.Score != wantScores[i] || r.Won != wantWon[i] {
			t.Errorf("result %d = {score %d won %v}, want {score %d won %v}",
				i, r.Score, r.Won, wantScores[i], wantWon[i])
		}
	}

	// Not the final round: the next one is dealt immediately.
	next := sess.CurrentRound()
	if next == nil || next.Number != 2 {
		t.Fatalf("next round not dealt, got %+v", next)
	}
	for i := range sess.Players {
		if got := sess.Players[i].FilledSlots(); got != models.HandSize {
			t.Errorf("player %d has %d cards after redeal, want %d", i, got, models.HandSize)
		}
	}
}

func TestEndRoundFinalRoundFinishesSession(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 3, 40), numberCard(2, 7, 40))
	sess := playingSession(1, "p1", "p2")
	sess.Rounds = append(sess.Rounds, models.Round{Number: 1, Active: true})
	e := models.EmptySlot
	sess.Players[0].Cards = [models.HandSize]int{1, e, e, e} // 3 points
	sess.Players[1].Cards = [models.HandSize]int{2, e, e, e} // 7 points

	if _, err := s.endRound(sess); err != nil {
		t.Fatalf("endRound: %v", err)
	}

	status := sess.ActiveStatus()
	if status == nil || status.Type != models.StatusEnded {
		t.Fatalf("active status = %+v, want ended", status)
	}
	if len(sess.Winners) != 1 || sess.Winners[0] != "p1" {
		t.Errorf("session winners = %v, want [p1]", sess.Winners)
	}
	if sess.CurrentRound() != nil {
		t.Error("a round is still active after the session ended")
	}
}

func TestWinnersByScore(t *testing.T) {
	players := []models.SessionPlayer{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}

	tests := []struct {
		name   string
		scores []int
		want   []string
	}{
		{"single lowest", []int{5, 3, 9}, []string{"p2"}},
		{"shared lowest", []int{5, 5, 9}, []string{"p1", "p2"}},
		{"all tied", []int{4, 4, 4}, []string{"p1", "p2", "p3"}},
		{"negative wins", []int{0, -2, 3}, []string{"p2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := winnersByScore(players, func(i int) int { return tt.scores[i] })
			if len(got) != len(tt.want) {
				t.Fatalf("winners = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("winners = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCountPlayerMoves(t *testing.T) {
	round := &models.Round{Moves: []models.Move{
		{By: "p1", Type: models.MoveDraw},
		{By: "p1", Type: models.MoveThrow},
		{By: "p2", Type: models.MoveThrow},
		{By: "p1", Type: models.MoveThrow},
	}}

	if got := countPlayerMoves(round, "p1", models.MoveThrow); got != 2 {
		t.Errorf("p1 throws = %d, want 2", got)
	}
	if got := countPlayerMoves(round, "p1", ""); got != 3 {
		t.Errorf("p1 total moves = %d, want 3", got)
	}
	if got := countPlayerMoves(round, "p3", ""); got != 0 {
		t.Errorf("p3 total moves = %d, want 0", got)
	}
}

func TestApplyThrowToFloor(t *testing.T) {
	s := newTestGameService(t, numberCard(7, 2, 4), numberCard(9, 3, 4))
	sess := playingSession(4, "p1", "p2")
	round := &models.Round{Number: 1, UsedCards: []int{9}, Active: true}
	e := models.EmptySlot
	sess.Players[0].Cards = [models.HandSize]int{7, e, e, e}
	actor := &sess.Players[0]

	move, err := s.applyThrow(sess, round, actor, ThrowAction{Card: 7, To: models.LocationFloor}, 10, 0)
	if err != nil {
		t.Fatalf("applyThrow: %v", err)
	}

	if len(round.UsedCards) != 2 || round.UsedCards[1] != 7 {
		t.Errorf("floor = %v, want [9 7]", round.UsedCards)
	}
	if actor.Cards[0] != models.EmptySlot {
		t.Error("thrown card still in hand")
	}
	if move.Type != models.MoveThrow || move.Card != 7 || move.Location != models.LocationFloor {
		t.Errorf("move = %+v", move)
	}
}

func TestApplyThrowToPlayer(t *testing.T) {
	s := newTestGameService(t, numberCard(7, 2, 4))
	e := models.EmptySlot

	t.Run("into empty slot", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{Number: 1, Active: true}
		sess.Players[0].Cards = [models.HandSize]int{7, e, e, e}
		sess.Players[1].Cards = [models.HandSize]int{7, e, 7, e}

		_, err := s.applyThrow(sess, round, &sess.Players[0],
			ThrowAction{Card: 7, To: models.LocationPlayer, ToPlayer: "p2", ToSlot: 1}, 10, 0)
		if err != nil {
			t.Fatalf("applyThrow: %v", err)
		}
		if sess.Players[1].Cards[1] != 7 {
			t.Error("card did not land in the target slot")
		}
		if sess.Players[0].Cards[0] != models.EmptySlot {
			t.Error("thrown card still in the actor's hand")
		}
	})

	t.Run("occupied slot rejected", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{Number: 1, Active: true}
		sess.Players[0].Cards = [models.HandSize]int{7, e, e, e}
		sess.Players[1].Cards = [models.HandSize]int{7, e, e, e}

		_, err := s.applyThrow(sess, round, &sess.Players[0],
			ThrowAction{Card: 7, To: models.LocationPlayer, ToPlayer: "p2", ToSlot: 0}, 10, 0)
		if !errors.Is(err, ErrInvalidMove) {
			t.Errorf("err = %v, want ErrInvalidMove", err)
		}
		if sess.Players[0].Cards[0] != 7 {
			t.Error("actor hand mutated on a rejected move")
		}
	})

	t.Run("card not in hand", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{Number: 1, Active: true}
		sess.Players[0].Cards = [models.HandSize]int{e, e, e, e}

		_, err := s.applyThrow(sess, round, &sess.Players[0],
			ThrowAction{Card: 7, To: models.LocationFloor}, 10, 0)
		if !errors.Is(err, ErrInvalidCard) {
			t.Errorf("err = %v, want ErrInvalidCard", err)
		}
	})
}

func TestApplyDraw(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 10))
	e := models.EmptySlot

	t.Run("from deck", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{
			AvailableCards: []models.DeckGeneration{{Cards: []int{5, 6}, Shuffle: 1, Active: true}},
			UsedCards:      []int{1},
			Active:         true,
		}
		move, err := s.applyDraw(sess, round, &sess.Players[0], DrawAction{From: models.LocationDeck}, 10, 0)
		if err != nil {
			t.Fatalf("applyDraw: %v", err)
		}
		if move.Card != 6 {
			t.Errorf("drew %d, want the deck top 6", move.Card)
		}
		if len(round.AvailableCards[0].Cards) != 1 {
			t.Errorf("deck = %v, want [5]", round.AvailableCards[0].Cards)
		}
	})

	t.Run("from floor", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{UsedCards: []int{3, 8}, Active: true}
		move, err := s.applyDraw(sess, round, &sess.Players[0], DrawAction{From: models.LocationFloor}, 10, 0)
		if err != nil {
			t.Fatalf("applyDraw: %v", err)
		}
		if move.Card != 8 {
			t.Errorf("drew %d, want the floor top 8", move.Card)
		}
		if len(round.UsedCards) != 1 || round.UsedCards[0] != 3 {
			t.Errorf("floor = %v, want [3]", round.UsedCards)
		}
	})

	t.Run("empty floor rejected", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{Active: true}
		_, err := s.applyDraw(sess, round, &sess.Players[0], DrawAction{From: models.LocationFloor}, 10, 0)
		if !errors.Is(err, ErrInvalidMove) {
			t.Errorf("err = %v, want ErrInvalidMove", err)
		}
	})

	t.Run("from player slot", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{Active: true}
		sess.Players[1].Cards = [models.HandSize]int{e, 4, e, e}
		move, err := s.applyDraw(sess, round, &sess.Players[0],
			DrawAction{From: models.LocationPlayer, FromPlayer: "p2", FromSlot: 1}, 10, 0)
		if err != nil {
			t.Fatalf("applyDraw: %v", err)
		}
		if move.Card != 4 {
			t.Errorf("drew %d, want 4", move.Card)
		}
		if sess.Players[1].Cards[1] != models.EmptySlot {
			t.Error("drawn slot not emptied")
		}
	})

	t.Run("empty player slot rejected", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{Active: true}
		_, err := s.applyDraw(sess, round, &sess.Players[0],
			DrawAction{From: models.LocationPlayer, FromPlayer: "p2", FromSlot: 0}, 10, 0)
		if !errors.Is(err, ErrInvalidCard) {
			t.Errorf("err = %v, want ErrInvalidCard", err)
		}
	})

	t.Run("unknown source rejected", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{Active: true}
		_, err := s.applyDraw(sess, round, &sess.Players[0], DrawAction{From: "pocket"}, 10, 0)
		if !errors.Is(err, ErrInvalidMove) {
			t.Errorf("err = %v, want ErrInvalidMove", err)
		}
	})
}

func TestApplyTake(t *testing.T) {
	s := newTestGameService(t, numberCard(5, 2, 10))
	e := models.EmptySlot

	t.Run("fills empty slot", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{Active: true}
		sess.Players[0].Cards = [models.HandSize]int{5, e, 5, 5}

		move, err := s.applyTake(round, &sess.Players[0], TakeAction{Card: 5, Slot: 1}, 10, 0)
		if err != nil {
			t.Fatalf("applyTake: %v", err)
		}
		if sess.Players[0].Cards[1] != 5 {
			t.Error("taken card not placed in the slot")
		}
		if move.Location != models.LocationDeck {
			t.Errorf("move location = %q, want the deck default", move.Location)
		}
	})

	t.Run("occupied slot rejected", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{Active: true}
		sess.Players[0].Cards = [models.HandSize]int{5, e, e, e}

		_, err := s.applyTake(round, &sess.Players[0], TakeAction{Card: 5, Slot: 0}, 10, 0)
		if !errors.Is(err, ErrInvalidMove) {
			t.Errorf("err = %v, want ErrInvalidMove", err)
		}
	})

	t.Run("unknown card rejected", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		round := &models.Round{Active: true}
		_, err := s.applyTake(round, &sess.Players[0], TakeAction{Card: 999, Slot: 0}, 10, 0)
		if !errors.Is(err, ErrInvalidCard) {
			t.Errorf("err = %v, want ErrInvalidCard", err)
		}
	})
}

func TestApplyPlayerMoveAdvancesTurn(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 40))
	sess := playingSession(4, "p1", "p2", "p3", "p4")
	for i := range sess.Players {
		sess.Players[i].Cards = [models.HandSize]int{1, 1, 1, 1}
	}
	sess.Rounds = append(sess.Rounds, models.Round{
		Number:             1,
		AvailableCards:     []models.DeckGeneration{{Cards: []int{1, 1, 1}, Shuffle: 1, Active: true}},
		UsedCards:          []int{1},
		CurrentPlayerIndex: 1,
		ScrewPlayerIndex:   models.NoScrew,
		Active:             true,
	})

	move, roundEnded, _, err := s.applyPlayerMove(sess, "p2", DrawAction{From: models.LocationDeck}, 99)
	if err != nil {
		t.Fatalf("applyPlayerMove: %v", err)
	}
	if roundEnded {
		t.Error("round ended on an ordinary draw")
	}

	round := sess.CurrentRound()
	if round.CurrentPlayerIndex != 2 {
		t.Errorf("current player index = %d, want 2", round.CurrentPlayerIndex)
	}
	if len(round.Moves) != 1 || round.Moves[0].By != "p2" {
		t.Errorf("move log = %+v, want one move by p2", round.Moves)
	}
	if move.Type != models.MoveDraw || move.ClientDate != 99 {
		t.Errorf("move = %+v", move)
	}
}

func TestApplyPlayerMoveOutOfTurn(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 40))
	sess := playingSession(4, "p1", "p2", "p3")
	sess.Rounds = append(sess.Rounds, models.Round{
		Number:             1,
		CurrentPlayerIndex: 0,
		ScrewPlayerIndex:   models.NoScrew,
		Active:             true,
	})

	_, _, _, err := s.applyPlayerMove(sess, "p3", SkipAction{}, 0)
	if !errors.Is(err, ErrUnauthorizedMove) {
		t.Errorf("err = %v, want ErrUnauthorizedMove", err)
	}

	round := sess.CurrentRound()
	if len(round.Moves) != 0 || round.CurrentPlayerIndex != 0 {
		t.Error("rejected move mutated the round")
	}
}

func TestApplyPlayerMoveRejectsWrongState(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 40))

	t.Run("not playing", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		sess.Status = []models.StatusEntry{{Type: models.StatusWaiting, By: "p1", Date: 1, Active: true}}
		_, _, _, err := s.applyPlayerMove(sess, "p1", SkipAction{}, 0)
		if !errors.Is(err, ErrIllegalState) {
			t.Errorf("err = %v, want ErrIllegalState", err)
		}
	})

	t.Run("no active round", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		_, _, _, err := s.applyPlayerMove(sess, "p1", SkipAction{}, 0)
		if !errors.Is(err, ErrIllegalState) {
			t.Errorf("err = %v, want ErrIllegalState", err)
		}
	})

	t.Run("not seated", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		sess.Rounds = append(sess.Rounds, models.Round{Number: 1, Active: true})
		_, _, _, err := s.applyPlayerMove(sess, "stranger", SkipAction{}, 0)
		if !errors.Is(err, ErrUnauthorizedMove) {
			t.Errorf("err = %v, want ErrUnauthorizedMove", err)
		}
	})
}

func TestApplyPlayerMoveEmptyHandEndsSession(t *testing.T) {
	s := newTestGameService(t, numberCard(7, 2, 40))
	sess := playingSession(1, "p1", "p2")
	e := models.EmptySlot
	sess.Players[0].Cards = [models.HandSize]int{7, e, e, e}
	sess.Players[1].Cards = [models.HandSize]int{7, 7, 7, 7}
	sess.Rounds = append(sess.Rounds, models.Round{
		Number:             1,
		UsedCards:          []int{7},
		CurrentPlayerIndex: 0,
		ScrewPlayerIndex:   models.NoScrew,
		Active:             true,
	})

	_, roundEnded, results, err := s.applyPlayerMove(sess, "p1",
		ThrowAction{Card: 7, To: models.LocationFloor}, 0)
	if err != nil {
		t.Fatalf("applyPlayerMove: %v", err)
	}
	if !roundEnded {
		t.Fatal("emptying a hand did not end the round")
	}

	if !results[0].Won || results[0].Score != 0 {
		t.Errorf("p1 result = %+v, want a win with score 0", results[0])
	}
	if results[1].Won || results[1].Score != 8 {
		t.Errorf("p2 result = %+v, want a loss with score 8", results[1])
	}
	if sess.Players[1].Score != 8 {
		t.Errorf("p2 cumulative score = %d, want 8", sess.Players[1].Score)
	}

	// Final configured round: the session is over.
	status := sess.ActiveStatus()
	if status == nil || status.Type != models.StatusEnded {
		t.Fatalf("active status = %+v, want ended", status)
	}
	if len(sess.Winners) != 1 || sess.Winners[0] != "p1" {
		t.Errorf("session winners = %v, want [p1]", sess.Winners)
	}
}

func TestCallScrew(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 40))

	t.Run("consumes the turn", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2", "p3")
		for i := range sess.Players {
			sess.Players[i].Cards = [models.HandSize]int{1, 1, 1, 1}
		}
		sess.Rounds = append(sess.Rounds, models.Round{
			Number:             1,
			CurrentPlayerIndex: 1,
			ScrewPlayerIndex:   models.NoScrew,
			Active:             true,
		})

		roundEnded, _, err := s.callScrew(sess, "p2")
		if err != nil {
			t.Fatalf("callScrew: %v", err)
		}
		if roundEnded {
			t.Error("round ended on the screw call itself")
		}

		round := sess.CurrentRound()
		if round.ScrewPlayerIndex != 1 {
			t.Errorf("screw index = %d, want 1", round.ScrewPlayerIndex)
		}
		if round.CurrentPlayerIndex != 2 {
			t.Errorf("current player index = %d, want 2", round.CurrentPlayerIndex)
		}
		if len(round.Moves) != 1 || round.Moves[0].Type != models.MoveSkip || round.Moves[0].By != "p2" {
			t.Errorf("move log = %+v, want one skip by p2", round.Moves)
		}

		if _, _, err := s.callScrew(sess, "p3"); !errors.Is(err, ErrInvalidMove) {
			t.Errorf("second call err = %v, want ErrInvalidMove", err)
		}
	})

	t.Run("out of turn rejected", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		sess.Rounds = append(sess.Rounds, models.Round{
			Number: 1, CurrentPlayerIndex: 0, ScrewPlayerIndex: models.NoScrew, Active: true,
		})
		if _, _, err := s.callScrew(sess, "p2"); !errors.Is(err, ErrUnauthorizedMove) {
			t.Errorf("err = %v, want ErrUnauthorizedMove", err)
		}
	})

	t.Run("terminates the round when reached", func(t *testing.T) {
		sess := playingSession(1, "p1", "p2")
		for i := range sess.Players {
			sess.Players[i].Cards = [models.HandSize]int{1, 1, 1, 1}
		}
		sess.Rounds = append(sess.Rounds, models.Round{
			Number:             1,
			AvailableCards:     []models.DeckGeneration{{Cards: []int{1, 1}, Shuffle: 1, Active: true}},
			UsedCards:          []int{1},
			CurrentPlayerIndex: 0,
			ScrewPlayerIndex:   models.NoScrew,
			Active:             true,
		})

		if _, _, err := s.callScrew(sess, "p1"); err != nil {
			t.Fatalf("callScrew: %v", err)
		}

		// The next move cycles the turn back to the caller, ending the
		// round regardless of hand contents.
		_, roundEnded, _, err := s.applyPlayerMove(sess, "p2", DrawAction{From: models.LocationDeck}, 0)
		if err != nil {
			t.Fatalf("applyPlayerMove: %v", err)
		}
		if !roundEnded {
			t.Fatal("round did not end when the turn reached the screw caller")
		}
		status := sess.ActiveStatus()
		if status == nil || status.Type != models.StatusEnded {
			t.Errorf("active status = %+v, want ended", status)
		}
		// Both players hold identical hands; the win is shared.
		if len(sess.Winners) != 2 {
			t.Errorf("session winners = %v, want both players", sess.Winners)
		}
	})
}

func TestTimeoutSkip(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 40))

	t.Run("synthesizes a system skip", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		for i := range sess.Players {
			sess.Players[i].Cards = [models.HandSize]int{1, 1, 1, 1}
		}
		sess.Rounds = append(sess.Rounds, models.Round{
			Number:             1,
			CurrentPlayerIndex: 0,
			ScrewPlayerIndex:   models.NoScrew,
			Active:             true,
		})

		skipped, roundEnded, _, err := s.timeoutSkip(sess, 1, 0)
		if err != nil {
			t.Fatalf("timeoutSkip: %v", err)
		}
		if skipped != "p1" {
			t.Errorf("skipped = %s, want p1", skipped)
		}
		if roundEnded {
			t.Error("round ended on a plain timeout skip")
		}

		round := sess.CurrentRound()
		if round.CurrentPlayerIndex != 1 {
			t.Errorf("current player index = %d, want 1", round.CurrentPlayerIndex)
		}
		if len(round.Moves) != 1 {
			t.Fatalf("move log = %+v, want one move", round.Moves)
		}
		move := round.Moves[0]
		if move.Type != models.MoveSkip || move.By != "system" || move.LocPlayer != "p1" {
			t.Errorf("synthesized move = %+v", move)
		}
	})

	t.Run("stale timer rejected", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		sess.Rounds = append(sess.Rounds, models.Round{
			Number:             1,
			Moves:              []models.Move{{By: "p1", Type: models.MoveDraw}},
			CurrentPlayerIndex: 1,
			ScrewPlayerIndex:   models.NoScrew,
			Active:             true,
		})

		// Armed for move count 0, but a real move has landed since.
		if _, _, _, err := s.timeoutSkip(sess, 1, 0); !errors.Is(err, ErrIllegalState) {
			t.Errorf("moved-on err = %v, want ErrIllegalState", err)
		}
		// Armed for a round that is no longer current.
		if _, _, _, err := s.timeoutSkip(sess, 2, 1); !errors.Is(err, ErrIllegalState) {
			t.Errorf("wrong-round err = %v, want ErrIllegalState", err)
		}
		if len(sess.Rounds[0].Moves) != 1 {
			t.Error("stale timer mutated the round")
		}
	})
}

func TestMarkDeleted(t *testing.T) {
	s := newTestGameService(t, numberCard(1, 2, 40))

	t.Run("host only", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")

		if err := s.markDeleted(sess, "p2"); !errors.Is(err, ErrUnauthorizedMove) {
			t.Errorf("non-host err = %v, want ErrUnauthorizedMove", err)
		}
		if status := sess.ActiveStatus(); status == nil || status.Type != models.StatusPlaying {
			t.Errorf("active status = %+v, rejected delete must not transition", status)
		}

		if err := s.markDeleted(sess, "p1"); err != nil {
			t.Fatalf("host delete: %v", err)
		}
		if status := sess.ActiveStatus(); status == nil || status.Type != models.StatusDeleted {
			t.Errorf("active status = %+v, want deleted", status)
		}
	})

	t.Run("already deleted", func(t *testing.T) {
		sess := playingSession(4, "p1", "p2")
		sess.PushStatus(models.StatusDeleted, "p1", 3)

		if err := s.markDeleted(sess, "p1"); !errors.Is(err, ErrIllegalState) {
			t.Errorf("err = %v, want ErrIllegalState", err)
		}
	})
}

func TestValidateSlot(t *testing.T) {
	for _, slot := range []int{0, 1, 2, 3} {
		if err := validateSlot(slot); err != nil {
			t.Errorf("validateSlot(%d) = %v, want nil", slot, err)
		}
	}
	for _, slot := range []int{-1, 4, 100} {
		if err := validateSlot(slot); !errors.Is(err, ErrInvalidMove) {
			t.Errorf("validateSlot(%d) = %v, want ErrInvalidMove", slot, err)
		}
	}
}

func TestValidatePlayer(t *testing.T) {
	players := []models.SessionPlayer{{ID: "p1"}, {ID: "p2"}}

	seat, idx, err := validatePlayer(players, "p2")
	if err != nil || idx != 1 || seat.ID != "p2" {
		t.Errorf("validatePlayer(p2) = (%v, %d, %v)", seat, idx, err)
	}
	if _, _, err := validatePlayer(players, "p3"); !errors.Is(err, ErrUnauthorizedMove) {
		t.Errorf("err = %v, want ErrUnauthorizedMove", err)
	}
}
