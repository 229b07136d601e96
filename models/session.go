package models

// Session statuses. Transitions append a StatusEntry and flip the
// previous active entry off; the history is never rewritten.
const (
	StatusWaiting = "waiting"
	StatusPlaying = "playing"
	StatusEnded   = "ended"
	StatusDeleted = "deleted"
)

// Move kinds.
const (
	MoveDraw  = "draw"
	MoveTake  = "take"
	MoveThrow = "throw"
	MoveSkip  = "skip"
)

// Move locations (source for draw/take, destination for throw).
const (
	LocationDeck   = "deck"
	LocationFloor  = "floor"
	LocationPlayer = "player"
)

// HandSize is the fixed number of card slots per seated player.
const HandSize = 4

// EmptySlot marks a hand slot that holds no card.
const EmptySlot = -1

// NoScrew means no screw call is pending for the round.
const NoScrew = -1

// SessionPlayer is one seat at the table. Cards always has exactly
// HandSize slots; empty slots hold EmptySlot.
type SessionPlayer struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Cards [HandSize]int `json:"cards"`
	Ready bool          `json:"ready"`
	Score int           `json:"score"`
}

// FilledSlots returns how many hand slots hold a card.
func (p *SessionPlayer) FilledSlots() int {
	n := 0
	for _, c := range p.Cards {
		if c != EmptySlot {
			n++
		}
	}
	return n
}

// StatusEntry is one row of the append-only status history.
type StatusEntry struct {
	Type   string `json:"type"`
	By     string `json:"by"`
	Date   int64  `json:"date"` // unix ms
	Active bool   `json:"active"`
}

// Move is one row of a round's append-only audit log.
type Move struct {
	Card       int    `json:"card"`
	Type       string `json:"type"`
	Location   string `json:"location"`
	LocPlayer  string `json:"loc_player,omitempty"`
	By         string `json:"by"`
	Date       int64  `json:"date"`                  // server unix ms
	ClientDate int64  `json:"client_date,omitempty"` // client-submitted, unverified
}

// DeckGeneration is one shuffled batch of cards. The cards slice is a
// stack: draws pop from the end. Shuffle counts how many times the
// round has produced a fresh ordering, starting at 1.
type DeckGeneration struct {
	Cards   []int `json:"cards"`
	Shuffle int   `json:"shuffle"`
	Active  bool  `json:"active"`
}

// Round is one deal-to-score cycle. At most one round is active per
// session; ended rounds are immutable history.
type Round struct {
	Number             int              `json:"number"`
	Moves              []Move           `json:"moves"`
	AvailableCards     []DeckGeneration `json:"available_cards"`
	UsedCards          []int            `json:"used_cards"` // discard pile, top = last
	CurrentPlayerIndex int              `json:"current_player_index"`
	ScrewPlayerIndex   int              `json:"screw_player_index"`
	Winners            []string         `json:"winners"`
	Active             bool             `json:"active"`
}

// ActiveGeneration returns the round's active deck generation, or nil.
func (r *Round) ActiveGeneration() *DeckGeneration {
	for i := range r.AvailableCards {
		if r.AvailableCards[i].Active {
			return &r.AvailableCards[i]
		}
	}
	return nil
}

// Session is the live aggregate for one game code. It is loaded from
// and saved to the session store as a whole; the engine mutates it only
// under the per-code lock.
type Session struct {
	Code           string          `json:"code"`
	Players        []SessionPlayer `json:"players"`
	Status         []StatusEntry   `json:"status"`
	Rounds         []Round         `json:"rounds"`
	NumberOfRounds int             `json:"number_of_rounds"`
	MaxMoveTime    int             `json:"max_move_time"` // ms, <= 0 disables the turn timer
	MaxPlayers     int             `json:"max_players"`
	Winners        []string        `json:"winners"`
}

// ActiveStatus returns the single active status entry. A session
// always has one; nil means the aggregate is corrupt.
func (s *Session) ActiveStatus() *StatusEntry {
	for i := range s.Status {
		if s.Status[i].Active {
			return &s.Status[i]
		}
	}
	return nil
}

// PushStatus flips the current active status off and appends a new
// active entry.
func (s *Session) PushStatus(statusType, by string, date int64) {
	if cur := s.ActiveStatus(); cur != nil {
		cur.Active = false
	}
	s.Status = append(s.Status, StatusEntry{Type: statusType, By: by, Date: date, Active: true})
}

// CurrentRound returns the active round, or nil when none is running.
func (s *Session) CurrentRound() *Round {
	for i := range s.Rounds {
		if s.Rounds[i].Active {
			return &s.Rounds[i]
		}
	}
	return nil
}

// FindPlayer returns the seat and index for a player ID, or (nil, -1).
func (s *Session) FindPlayer(playerID string) (*SessionPlayer, int) {
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			return &s.Players[i], i
		}
	}
	return nil, -1
}
