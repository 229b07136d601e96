package services

import (
	"fmt"

	"screw/models"
)

// MoveAction is the closed set of move kinds a player can submit. Each
// variant carries exactly the fields its kind needs; the engine checks
// them exhaustively before mutating any state.
type MoveAction interface {
	moveType() string
}

// DrawAction removes a card from the deck, the floor, or another
// player's hand slot. The drawn card is held by the actor until they
// take or throw; the move log is the record of cards in flight.
type DrawAction struct {
	From       string // deck, floor or player
	FromPlayer string // required when From == player
	FromSlot   int    // required when From == player
}

// ThrowAction places a card from the actor's hand onto the floor or
// into an empty slot of another player's hand.
type ThrowAction struct {
	Card     int
	To       string // floor or player
	ToPlayer string // required when To == player
	ToSlot   int    // required when To == player
}

// TakeAction places a previously drawn card into an empty slot of the
// actor's own hand.
type TakeAction struct {
	Card       int
	Slot       int
	From       string // where the card was drawn from, for the audit log
	FromPlayer string
}

// SkipAction passes the turn without playing a card.
type SkipAction struct{}

func (DrawAction) moveType() string  { return models.MoveDraw }
func (ThrowAction) moveType() string { return models.MoveThrow }
func (TakeAction) moveType() string  { return models.MoveTake }
func (SkipAction) moveType() string  { return models.MoveSkip }

// validatePlayer checks that a player ID is seated in the session.
func validatePlayer(players []models.SessionPlayer, playerID string) (*models.SessionPlayer, int, error) {
	for i := range players {
		if players[i].ID == playerID {
			return &players[i], i, nil
		}
	}
	return nil, -1, fmt.Errorf("%w: player %s is not seated", ErrUnauthorizedMove, playerID)
}

// validateSlot checks a hand slot index against the fixed hand size.
func validateSlot(slot int) error {
	if slot < 0 || slot >= models.HandSize {
		return fmt.Errorf("%w: hand slot %d out of range", ErrInvalidMove, slot)
	}
	return nil
}

// validateCardInHand checks that the card ID exists in the catalog and
// occupies a slot of the given hand, returning the slot index.
func (s *GameService) validateCardInHand(hand [models.HandSize]int, cardID int) (int, error) {
	if _, ok := s.cards.GetCard(cardID); !ok {
		return -1, fmt.Errorf("%w: unknown card %d", ErrInvalidCard, cardID)
	}
	for i, c := range hand {
		if c == cardID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: card %d is not in hand", ErrInvalidCard, cardID)
}
