package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"screw/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Session configuration defaults, applied when create omits a value.
const (
	defaultNumberOfRounds = 4
	defaultMaxPlayers     = 14
	sessionCodeLength     = 6
)

// GameService is the session engine: the single entry point for every
// session-level operation. Each public operation acquires the
// per-session lock, loads the aggregate from the session store,
// validates, mutates, persists, and only then broadcasts and re-arms
// the turn timer. Operations on different codes run fully in parallel.
type GameService struct {
	db      *gorm.DB
	redis   *redis.Client
	cards   *CardService
	players *PlayerService
	timers  *TurnScheduler
	hub     *Hub

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewGameService(db *gorm.DB, redisClient *redis.Client, cards *CardService, players *PlayerService) *GameService {
	return &GameService{
		db:      db,
		redis:   redisClient,
		cards:   cards,
		players: players,
		timers:  NewTurnScheduler(),
		locks:   make(map[string]*sync.Mutex),
	}
}

// AttachHub wires the websocket hub for event broadcasts. The hub is
// optional; without it the engine runs silently.
func (s *GameService) AttachHub(hub *Hub) {
	s.hub = hub
}

func sessionKey(code string) string {
	return "session:" + strings.ToLower(code)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// lockSession returns the mutex guarding one session code, creating it
// on first use. Lock entries are never removed: sessions are flagged
// ended or deleted, not erased.
func (s *GameService) lockSession(code string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	code = strings.ToLower(code)
	if m, ok := s.locks[code]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.locks[code] = m
	return m
}

func (s *GameService) loadSession(code string) (*models.Session, error) {
	data, err := s.redis.Get(context.Background(), sessionKey(code)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading session %s: %v", ErrStoreFailure, code, err)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling session %s: %v", ErrStoreFailure, code, err)
	}
	return &sess, nil
}

// saveSession persists the aggregate. A mutation is not committed
// until this succeeds; callers must surface the error as the failure
// of the whole operation.
func (s *GameService) saveSession(sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%w: marshaling session %s: %v", ErrStoreFailure, sess.Code, err)
	}
	if err := s.redis.Set(context.Background(), sessionKey(sess.Code), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: saving session %s: %v", ErrStoreFailure, sess.Code, err)
	}
	return nil
}

func (s *GameService) sessionExists(code string) (bool, error) {
	n, err := s.redis.Exists(context.Background(), sessionKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: checking session code %s: %v", ErrStoreFailure, code, err)
	}
	return n > 0, nil
}

func newSeat(playerID, name string) models.SessionPlayer {
	seat := models.SessionPlayer{ID: playerID, Name: name}
	for i := range seat.Cards {
		seat.Cards[i] = models.EmptySlot
	}
	return seat
}

// CreateSession seeds a new session with the host at seat 0 and status
// waiting, under a freshly generated unique code.
func (s *GameService) CreateSession(hostID, hostName string, numberOfRounds, maxMoveTime, maxPlayers int) (*models.Session, error) {
	if numberOfRounds <= 0 {
		numberOfRounds = defaultNumberOfRounds
	}
	if maxPlayers <= 0 {
		maxPlayers = defaultMaxPlayers
	}
	if maxMoveTime == 0 {
		maxMoveTime = -1
	}

	var code string
	for {
		code = generateShortID(sessionCodeLength)
		exists, err := s.sessionExists(code)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
	}

	sess := &models.Session{
		Code:           code,
		Players:        []models.SessionPlayer{newSeat(hostID, hostName)},
		Status:         []models.StatusEntry{{Type: models.StatusWaiting, By: hostID, Date: nowMillis(), Active: true}},
		NumberOfRounds: numberOfRounds,
		MaxMoveTime:    maxMoveTime,
		MaxPlayers:     maxPlayers,
	}

	if err := s.saveSession(sess); err != nil {
		return nil, err
	}

	if s.db != nil {
		row := models.Game{
			Code:           code,
			HostID:         hostID,
			Status:         models.StatusWaiting,
			NumberOfRounds: numberOfRounds,
			MaxMoveTime:    maxMoveTime,
			MaxPlayers:     maxPlayers,
		}
		if err := s.db.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("%w: creating game row for %s: %v", ErrStoreFailure, code, err)
		}
	}

	log.Printf("Session %s created by %s (%s)", code, hostName, hostID)
	return sess, nil
}

// GetSession loads a session aggregate by code.
func (s *GameService) GetSession(code string) (*models.Session, error) {
	lock := s.lockSession(code)
	lock.Lock()
	defer lock.Unlock()

	return s.loadSession(code)
}

// JoinSession seats a player in a waiting session.
func (s *GameService) JoinSession(code, playerID, playerName string) (*models.Session, error) {
	lock := s.lockSession(code)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.loadSession(code)
	if err != nil {
		return nil, err
	}

	status := sess.ActiveStatus()
	if status == nil || status.Type != models.StatusWaiting {
		return nil, fmt.Errorf("%w: cannot join a session that is not waiting", ErrIllegalState)
	}
	if len(sess.Players) >= sess.MaxPlayers {
		return nil, fmt.Errorf("%w: session %s is full", ErrResourceExhausted, code)
	}
	if seat, _ := sess.FindPlayer(playerID); seat != nil {
		return nil, fmt.Errorf("%w: player already seated", ErrInvalidMove)
	}
	if s.players != nil {
		inGame, err := s.players.IsInGame(playerID)
		if err != nil {
			log.Printf("Failed to check in-game flag for player %s: %v", playerID, err)
		} else if inGame {
			return nil, fmt.Errorf("%w: player is already in a live game", ErrIllegalState)
		}
	}

	sess.Players = append(sess.Players, newSeat(playerID, playerName))

	if err := s.saveSession(sess); err != nil {
		return nil, err
	}

	s.broadcast(code, "player_update", map[string]interface{}{
		"action": "joined",
		"player": map[string]string{"id": playerID, "name": playerName},
	})
	return sess, nil
}

// LeaveSession removes a seated player from a waiting session.
func (s *GameService) LeaveSession(code, playerID string) (*models.Session, error) {
	lock := s.lockSession(code)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.loadSession(code)
	if err != nil {
		return nil, err
	}

	status := sess.ActiveStatus()
	if status == nil || status.Type != models.StatusWaiting {
		return nil, fmt.Errorf("%w: cannot leave a session that is not waiting", ErrIllegalState)
	}
	_, idx, err := validatePlayer(sess.Players, playerID)
	if err != nil {
		return nil, err
	}

	sess.Players = append(sess.Players[:idx], sess.Players[idx+1:]...)

	if err := s.saveSession(sess); err != nil {
		return nil, err
	}

	s.broadcast(code, "player_update", map[string]interface{}{
		"action": "left",
		"player": map[string]string{"id": playerID},
	})
	return sess, nil
}

// SetReady flips a player's pre-game ready flag.
func (s *GameService) SetReady(code, playerID string, ready bool) (*models.Session, error) {
	lock := s.lockSession(code)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.loadSession(code)
	if err != nil {
		return nil, err
	}

	status := sess.ActiveStatus()
	if status == nil || status.Type != models.StatusWaiting {
		return nil, fmt.Errorf("%w: ready is only meaningful while waiting", ErrIllegalState)
	}
	seat, _, err := validatePlayer(sess.Players, playerID)
	if err != nil {
		return nil, err
	}
	seat.Ready = ready

	if err := s.saveSession(sess); err != nil {
		return nil, err
	}

	s.broadcast(code, "player_update", map[string]interface{}{
		"action": "ready",
		"player": map[string]string{"id": playerID},
		"ready":  ready,
	})
	return sess, nil
}

// StartSession transitions waiting -> playing and starts round 1.
// When requireHost is set the caller must be seat 0; when checkReady
// is set every seated player must have flagged ready.
func (s *GameService) StartSession(code, callerID string, requireHost, checkReady bool) (*models.Session, error) {
	lock := s.lockSession(code)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.loadSession(code)
	if err != nil {
		return nil, err
	}

	if requireHost && (len(sess.Players) == 0 || sess.Players[0].ID != callerID) {
		return nil, fmt.Errorf("%w: only the host can start the game", ErrUnauthorizedMove)
	}
	status := sess.ActiveStatus()
	if status == nil || status.Type != models.StatusWaiting {
		return nil, fmt.Errorf("%w: the game cannot start in its current state", ErrIllegalState)
	}
	if len(sess.Players) < 2 {
		return nil, fmt.Errorf("%w: the game needs at least two players", ErrIllegalState)
	}
	if len(sess.Players) > sess.MaxPlayers {
		return nil, fmt.Errorf("%w: seated players exceed the maximum", ErrResourceExhausted)
	}
	if checkReady {
		for i := range sess.Players {
			if !sess.Players[i].Ready {
				return nil, fmt.Errorf("%w: all players must be ready", ErrIllegalState)
			}
		}
	}

	sess.PushStatus(models.StatusPlaying, callerID, nowMillis())
	if err := s.startNewRound(sess); err != nil {
		return nil, err
	}

	if err := s.saveSession(sess); err != nil {
		return nil, err
	}
	s.updateGameRow(sess)
	s.setPlayersInGame(sess, true)

	s.broadcast(code, "game_started", sess)
	s.armTurnTimer(sess)

	log.Printf("Session %s started by %s with %d players", code, callerID, len(sess.Players))
	return sess, nil
}

// startNewRound deals the next round into the aggregate. It fails
// without mutating anything when a round is still active, the round
// budget is spent, or the deck cannot cover every hand plus the
// face-up floor card.
func (s *GameService) startNewRound(sess *models.Session) error {
	if sess.CurrentRound() != nil {
		return fmt.Errorf("%w: current round is still active", ErrIllegalState)
	}
	number := len(sess.Rounds) + 1
	if number > sess.NumberOfRounds {
		return fmt.Errorf("%w: exceeded the number of rounds", ErrResourceExhausted)
	}

	deck, err := s.cards.BuildDeck()
	if err != nil {
		return err
	}
	if len(deck) < len(sess.Players)*models.HandSize+1 {
		return fmt.Errorf("%w: deck too small for %d players", ErrResourceExhausted, len(sess.Players))
	}

	for i := range sess.Players {
		hand, _ := DealPlayerHand(&deck)
		sess.Players[i].Cards = hand
	}
	floorCard, _ := DrawCard(&deck)

	sess.Rounds = append(sess.Rounds, models.Round{
		Number:             number,
		Moves:              []models.Move{},
		AvailableCards:     []models.DeckGeneration{{Cards: deck, Shuffle: 1, Active: true}},
		UsedCards:          []int{floorCard},
		CurrentPlayerIndex: s.cards.randIntn(len(sess.Players)),
		ScrewPlayerIndex:   models.NoScrew,
		Active:             true,
	})
	return nil
}

// ApplyMove validates and applies one player move, advances the turn,
// runs round-end detection, and persists the result. The aggregate is
// only considered mutated once the persist succeeds.
func (s *GameService) ApplyMove(code, actorID string, action MoveAction, clientDate int64) (*models.Session, error) {
	lock := s.lockSession(code)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.loadSession(code)
	if err != nil {
		return nil, err
	}

	move, roundEnded, results, err := s.applyPlayerMove(sess, actorID, action, clientDate)
	if err != nil {
		return nil, err
	}

	if err := s.saveSession(sess); err != nil {
		return nil, err
	}
	s.updateGameRow(sess)

	currentIdx := -1
	if cur := sess.CurrentRound(); cur != nil {
		currentIdx = cur.CurrentPlayerIndex
	}
	s.broadcast(code, "move_made", map[string]interface{}{
		"move":                 move,
		"current_player_index": currentIdx,
	})
	s.afterRoundTransition(sess, roundEnded, results)
	return sess, nil
}

// applyPlayerMove validates and applies one move on a loaded aggregate:
// turn enforcement, move dispatch, turn advance and round-end
// detection. Callers hold the session lock and persist the result.
func (s *GameService) applyPlayerMove(sess *models.Session, actorID string, action MoveAction, clientDate int64) (models.Move, bool, []roundResult, error) {
	status := sess.ActiveStatus()
	if status == nil || status.Type != models.StatusPlaying {
		return models.Move{}, false, nil, fmt.Errorf("%w: session is not playing", ErrIllegalState)
	}
	round := sess.CurrentRound()
	if round == nil {
		return models.Move{}, false, nil, fmt.Errorf("%w: no active round", ErrIllegalState)
	}
	actor, actorIdx, err := validatePlayer(sess.Players, actorID)
	if err != nil {
		return models.Move{}, false, nil, err
	}
	if actorIdx != round.CurrentPlayerIndex {
		return models.Move{}, false, nil, fmt.Errorf("%w: it is not player %s's turn", ErrUnauthorizedMove, actorID)
	}

	now := nowMillis()
	var move models.Move
	switch a := action.(type) {
	case DrawAction:
		move, err = s.applyDraw(sess, round, actor, a, now, clientDate)
	case ThrowAction:
		move, err = s.applyThrow(sess, round, actor, a, now, clientDate)
	case TakeAction:
		move, err = s.applyTake(round, actor, a, now, clientDate)
	case SkipAction:
		move = models.Move{Card: models.EmptySlot, Type: models.MoveSkip, Location: models.LocationPlayer, By: actorID, Date: now, ClientDate: clientDate}
	default:
		return models.Move{}, false, nil, fmt.Errorf("%w: unknown move kind", ErrInvalidMove)
	}
	if err != nil {
		return models.Move{}, false, nil, err
	}

	round.Moves = append(round.Moves, move)
	round.CurrentPlayerIndex = (round.CurrentPlayerIndex + 1) % len(sess.Players)

	var results []roundResult
	roundEnded := s.isRoundFinished(sess, round)
	if roundEnded {
		if results, err = s.endRound(sess); err != nil {
			return models.Move{}, false, nil, err
		}
	}
	return move, roundEnded, results, nil
}

// afterRoundTransition runs the post-persist side effects of a move:
// reward bookkeeping and broadcasts when a round ended, timer teardown
// when the session ended, and re-arming otherwise.
func (s *GameService) afterRoundTransition(sess *models.Session, roundEnded bool, results []roundResult) {
	if roundEnded {
		s.awardRoundResults(sess, results)
		s.broadcast(sess.Code, "round_end", map[string]interface{}{"results": results})
	}

	status := sess.ActiveStatus()
	if status != nil && status.Type == models.StatusEnded {
		s.timers.Cancel(sess.Code)
		s.setPlayersInGame(sess, false)
		s.broadcast(sess.Code, "game_end", map[string]interface{}{"winners": sess.Winners})
		return
	}
	s.armTurnTimer(sess)
}

// availableDeck returns a non-empty active deck generation, applying
// the reshuffle policy when the active one is exhausted: a discard
// pile of two or more cards keeps its top as the floor and becomes a
// fresh shuffled generation; otherwise a brand-new full deck is
// synthesized from the catalog. Nothing is mutated on failure.
func (s *GameService) availableDeck(round *models.Round) (*models.DeckGeneration, error) {
	gen := round.ActiveGeneration()
	if gen != nil && len(gen.Cards) > 0 {
		return gen, nil
	}

	prevShuffle := 0
	if gen != nil {
		prevShuffle = gen.Shuffle
	}

	var next models.DeckGeneration
	if len(round.UsedCards) >= 2 {
		top := round.UsedCards[len(round.UsedCards)-1]
		rest := round.UsedCards[:len(round.UsedCards)-1]
		next = models.DeckGeneration{Cards: s.cards.Shuffle(rest), Shuffle: prevShuffle + 1, Active: true}
		round.UsedCards = []int{top}
	} else {
		deck, err := s.cards.BuildDeck()
		if err != nil {
			return nil, err
		}
		next = models.DeckGeneration{Cards: deck, Shuffle: prevShuffle + 1, Active: true}
	}

	if gen != nil {
		gen.Active = false
	}
	round.AvailableCards = append(round.AvailableCards, next)
	return &round.AvailableCards[len(round.AvailableCards)-1], nil
}

func (s *GameService) applyDraw(sess *models.Session, round *models.Round, actor *models.SessionPlayer, a DrawAction, now, clientDate int64) (models.Move, error) {
	var drawn int

	switch a.From {
	case models.LocationDeck:
		gen, err := s.availableDeck(round)
		if err != nil {
			return models.Move{}, err
		}
		card, ok := DrawCard(&gen.Cards)
		if !ok {
			return models.Move{}, fmt.Errorf("%w: deck is empty", ErrInvalidMove)
		}
		drawn = card
	case models.LocationFloor:
		if len(round.UsedCards) == 0 {
			return models.Move{}, fmt.Errorf("%w: the floor is empty", ErrInvalidMove)
		}
		last := len(round.UsedCards) - 1
		drawn = round.UsedCards[last]
		round.UsedCards = round.UsedCards[:last]
	case models.LocationPlayer:
		if err := validateSlot(a.FromSlot); err != nil {
			return models.Move{}, err
		}
		target, _, err := validatePlayer(sess.Players, a.FromPlayer)
		if err != nil {
			return models.Move{}, err
		}
		card := target.Cards[a.FromSlot]
		if card == models.EmptySlot {
			return models.Move{}, fmt.Errorf("%w: slot %d of player %s is empty", ErrInvalidCard, a.FromSlot, a.FromPlayer)
		}
		target.Cards[a.FromSlot] = models.EmptySlot
		drawn = card
	default:
		return models.Move{}, fmt.Errorf("%w: unknown draw source %q", ErrInvalidMove, a.From)
	}

	return models.Move{
		Card:       drawn,
		Type:       models.MoveDraw,
		Location:   a.From,
		LocPlayer:  a.FromPlayer,
		By:         actor.ID,
		Date:       now,
		ClientDate: clientDate,
	}, nil
}

func (s *GameService) applyThrow(sess *models.Session, round *models.Round, actor *models.SessionPlayer, a ThrowAction, now, clientDate int64) (models.Move, error) {
	slot, err := s.validateCardInHand(actor.Cards, a.Card)
	if err != nil {
		return models.Move{}, err
	}

	switch a.To {
	case models.LocationFloor:
		round.UsedCards = append(round.UsedCards, a.Card)
		actor.Cards[slot] = models.EmptySlot
		if card, ok := s.cards.GetCard(a.Card); ok {
			s.applyCardEffect(round, card)
		}
	case models.LocationPlayer:
		if err := validateSlot(a.ToSlot); err != nil {
			return models.Move{}, err
		}
		target, _, err := validatePlayer(sess.Players, a.ToPlayer)
		if err != nil {
			return models.Move{}, err
		}
		if target.Cards[a.ToSlot] != models.EmptySlot {
			return models.Move{}, fmt.Errorf("%w: target slot %d is occupied", ErrInvalidMove, a.ToSlot)
		}
		target.Cards[a.ToSlot] = a.Card
		actor.Cards[slot] = models.EmptySlot
	default:
		return models.Move{}, fmt.Errorf("%w: unknown throw destination %q", ErrInvalidMove, a.To)
	}

	return models.Move{
		Card:       a.Card,
		Type:       models.MoveThrow,
		Location:   a.To,
		LocPlayer:  a.ToPlayer,
		By:         actor.ID,
		Date:       now,
		ClientDate: clientDate,
	}, nil
}

func (s *GameService) applyTake(round *models.Round, actor *models.SessionPlayer, a TakeAction, now, clientDate int64) (models.Move, error) {
	if err := validateSlot(a.Slot); err != nil {
		return models.Move{}, err
	}
	if _, ok := s.cards.GetCard(a.Card); !ok {
		return models.Move{}, fmt.Errorf("%w: unknown card %d", ErrInvalidCard, a.Card)
	}
	if actor.Cards[a.Slot] != models.EmptySlot {
		return models.Move{}, fmt.Errorf("%w: slot %d is occupied", ErrInvalidMove, a.Slot)
	}

	from := a.From
	if from == "" {
		from = models.LocationDeck
	}
	actor.Cards[a.Slot] = a.Card

	return models.Move{
		Card:       a.Card,
		Type:       models.MoveTake,
		Location:   from,
		LocPlayer:  a.FromPlayer,
		By:         actor.ID,
		Date:       now,
		ClientDate: clientDate,
	}, nil
}

// applyCardEffect dispatches on the effect type of a card thrown to
// the floor. Effect-card hand manipulation (seeOther, seeSelf, seeAll,
// exchange, throw) is an open extension point; only plain number cards
// have defined behavior today.
func (s *GameService) applyCardEffect(round *models.Round, card models.Card) {
	switch card.Type {
	case models.CardTypeNumber:
	case models.CardTypeSeeOther, models.CardTypeSeeSelf, models.CardTypeSeeAll,
		models.CardTypeExchange, models.CardTypeThrow:
		log.Printf("Card %d has effect %s; no effect semantics defined yet", card.CardID, card.Type)
	}
}

// CallScrew lets the current player pre-designate the round's end:
// when the turn cycles back to them the round is force-ended. The call
// consumes their turn.
func (s *GameService) CallScrew(code, actorID string) (*models.Session, error) {
	lock := s.lockSession(code)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.loadSession(code)
	if err != nil {
		return nil, err
	}

	roundEnded, results, err := s.callScrew(sess, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.saveSession(sess); err != nil {
		return nil, err
	}
	s.updateGameRow(sess)

	s.broadcast(code, "screw_called", map[string]interface{}{"player": actorID})
	s.afterRoundTransition(sess, roundEnded, results)
	return sess, nil
}

// callScrew applies the screw call on a loaded aggregate.
func (s *GameService) callScrew(sess *models.Session, actorID string) (bool, []roundResult, error) {
	status := sess.ActiveStatus()
	if status == nil || status.Type != models.StatusPlaying {
		return false, nil, fmt.Errorf("%w: session is not playing", ErrIllegalState)
	}
	round := sess.CurrentRound()
	if round == nil {
		return false, nil, fmt.Errorf("%w: no active round", ErrIllegalState)
	}
	_, actorIdx, err := validatePlayer(sess.Players, actorID)
	if err != nil {
		return false, nil, err
	}
	if actorIdx != round.CurrentPlayerIndex {
		return false, nil, fmt.Errorf("%w: it is not player %s's turn", ErrUnauthorizedMove, actorID)
	}
	if round.ScrewPlayerIndex != models.NoScrew {
		return false, nil, fmt.Errorf("%w: screw has already been called this round", ErrInvalidMove)
	}

	round.ScrewPlayerIndex = actorIdx
	round.Moves = append(round.Moves, models.Move{
		Card:     models.EmptySlot,
		Type:     models.MoveSkip,
		Location: models.LocationPlayer,
		By:       actorID,
		Date:     nowMillis(),
	})
	round.CurrentPlayerIndex = (round.CurrentPlayerIndex + 1) % len(sess.Players)

	var results []roundResult
	roundEnded := s.isRoundFinished(sess, round)
	if roundEnded {
		if results, err = s.endRound(sess); err != nil {
			return false, nil, err
		}
	}
	return roundEnded, results, nil
}

// isRoundFinished runs round-end detection. The screw-index check runs
// first: it is scripted and deterministic, so it wins when both
// conditions fire on the same move.
func (s *GameService) isRoundFinished(sess *models.Session, round *models.Round) bool {
	if round.ScrewPlayerIndex != models.NoScrew && round.CurrentPlayerIndex == round.ScrewPlayerIndex {
		return true
	}
	for i := range sess.Players {
		if sess.Players[i].FilledSlots() == 0 {
			return true
		}
	}
	return false
}

// roundResult is one player's outcome for a finished round, used for
// experience rewards and the round_end broadcast.
type roundResult struct {
	PlayerID string `json:"player_id"`
	Score    int    `json:"score"`
	Won      bool   `json:"won"`
	Exp      int    `json:"exp"`
}

// endRound scores the active round, accumulates losing scores, and
// either deals the next round or ends the session after the final one.
func (s *GameService) endRound(sess *models.Session) ([]roundResult, error) {
	round := sess.CurrentRound()
	if round == nil {
		return nil, fmt.Errorf("%w: no active round to end", ErrIllegalState)
	}

	scores := make([]int, len(sess.Players))
	for i := range sess.Players {
		scores[i] = s.cards.PlayerScore(&sess.Players[i])
	}

	winners := winnersByScore(sess.Players, func(i int) int { return scores[i] })
	winnerSet := make(map[string]bool, len(winners))
	for _, id := range winners {
		winnerSet[id] = true
	}

	for i := range sess.Players {
		if !winnerSet[sess.Players[i].ID] {
			sess.Players[i].Score += scores[i]
		}
	}

	round.Winners = winners
	round.Active = false

	results := make([]roundResult, len(sess.Players))
	for i := range sess.Players {
		player := &sess.Players[i]
		won := winnerSet[player.ID]
		results[i] = roundResult{
			PlayerID: player.ID,
			Score:    scores[i],
			Won:      won,
			Exp: GetExpForRound(won, countPlayerMoves(round, player.ID, models.MoveThrow),
				len(sess.Players), countPlayerMoves(round, player.ID, ""), scores[i]),
		}
	}

	if round.Number >= sess.NumberOfRounds {
		s.finishSession(sess)
	} else if err := s.startNewRound(sess); err != nil {
		return nil, err
	}
	return results, nil
}

// countPlayerMoves counts a player's moves in a round, optionally
// filtered by move type (empty matches all).
func countPlayerMoves(round *models.Round, playerID, moveType string) int {
	n := 0
	for _, m := range round.Moves {
		if m.By != playerID {
			continue
		}
		if moveType == "" || m.Type == moveType {
			n++
		}
	}
	return n
}

// winnersByScore returns the IDs of the players with the strictly
// lowest score. Ties share the win.
func winnersByScore(players []models.SessionPlayer, score func(i int) int) []string {
	if len(players) == 0 {
		return nil
	}
	least := score(0)
	winners := []string{players[0].ID}
	for i := 1; i < len(players); i++ {
		switch sc := score(i); {
		case sc < least:
			least = sc
			winners = []string{players[i].ID}
		case sc == least:
			winners = append(winners, players[i].ID)
		}
	}
	return winners
}

// finishSession flips the session to ended and records the overall
// winners: the lowest cumulative score across all rounds, ties shared.
func (s *GameService) finishSession(sess *models.Session) {
	winners := winnersByScore(sess.Players, func(i int) int { return sess.Players[i].Score })
	sess.Winners = winners
	sess.PushStatus(models.StatusEnded, strings.Join(winners, ","), nowMillis())
	log.Printf("Session %s ended, winners: %v", sess.Code, winners)
}

// EndSession ends a playing session immediately, scoring winners by
// cumulative score.
func (s *GameService) EndSession(code, callerID string) (*models.Session, error) {
	lock := s.lockSession(code)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.loadSession(code)
	if err != nil {
		return nil, err
	}

	status := sess.ActiveStatus()
	if status == nil || status.Type != models.StatusPlaying {
		return nil, fmt.Errorf("%w: can't end this game", ErrIllegalState)
	}
	if _, _, err := validatePlayer(sess.Players, callerID); err != nil {
		return nil, err
	}

	if round := sess.CurrentRound(); round != nil {
		round.Active = false
	}
	s.finishSession(sess)

	if err := s.saveSession(sess); err != nil {
		return nil, err
	}
	s.updateGameRow(sess)

	s.timers.Cancel(code)
	s.setPlayersInGame(sess, false)
	s.broadcast(code, "game_end", map[string]interface{}{"winners": sess.Winners})
	return sess, nil
}

// DeleteSession administratively flags a session deleted. Only the
// host may delete; the aggregate and its history stay in the store.
func (s *GameService) DeleteSession(code, callerID string) (*models.Session, error) {
	lock := s.lockSession(code)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.loadSession(code)
	if err != nil {
		return nil, err
	}

	if err := s.markDeleted(sess, callerID); err != nil {
		return nil, err
	}

	if err := s.saveSession(sess); err != nil {
		return nil, err
	}
	s.updateGameRow(sess)
	s.timers.Cancel(code)
	s.setPlayersInGame(sess, false)
	s.broadcast(code, "game_deleted", map[string]interface{}{"by": callerID})
	return sess, nil
}

// markDeleted validates and applies the deleted transition on a loaded
// aggregate.
func (s *GameService) markDeleted(sess *models.Session, callerID string) error {
	if len(sess.Players) == 0 || sess.Players[0].ID != callerID {
		return fmt.Errorf("%w: only the host can delete the game", ErrUnauthorizedMove)
	}
	status := sess.ActiveStatus()
	if status == nil || status.Type == models.StatusDeleted {
		return fmt.Errorf("%w: session already deleted", ErrIllegalState)
	}
	sess.PushStatus(models.StatusDeleted, callerID, nowMillis())
	return nil
}

// handleTurnTimeout is the scheduler callback: it synthesizes a skip
// for the current player through the same lock/load/mutate/persist
// path as a real move. roundNumber and moveCount pin the turn the
// timer was armed for; anything else means the timer is stale.
func (s *GameService) handleTurnTimeout(code string, roundNumber, moveCount int) {
	lock := s.lockSession(code)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.loadSession(code)
	if err != nil {
		log.Printf("Turn timeout for %s: %v", code, err)
		return
	}

	skipped, roundEnded, results, err := s.timeoutSkip(sess, roundNumber, moveCount)
	if err != nil {
		log.Printf("Turn timeout for %s: %v", code, err)
		return
	}

	if err := s.saveSession(sess); err != nil {
		log.Printf("Turn timeout for %s: %v", code, err)
		return
	}
	s.updateGameRow(sess)

	log.Printf("Session %s: player %s timed out, turn skipped", code, skipped)
	s.broadcast(code, "turn_skipped", map[string]interface{}{"player": skipped})
	s.afterRoundTransition(sess, roundEnded, results)
}

// timeoutSkip synthesizes the enforced skip on a loaded aggregate,
// rejecting the timer as stale when the aggregate has moved past the
// turn it was armed for.
func (s *GameService) timeoutSkip(sess *models.Session, roundNumber, moveCount int) (string, bool, []roundResult, error) {
	status := sess.ActiveStatus()
	round := sess.CurrentRound()
	if status == nil || status.Type != models.StatusPlaying || round == nil ||
		round.Number != roundNumber || len(round.Moves) != moveCount {
		return "", false, nil, fmt.Errorf("%w: stale turn timer", ErrIllegalState)
	}

	skipped := sess.Players[round.CurrentPlayerIndex].ID
	round.Moves = append(round.Moves, models.Move{
		Card:      models.EmptySlot,
		Type:      models.MoveSkip,
		Location:  models.LocationPlayer,
		LocPlayer: skipped,
		By:        "system",
		Date:      nowMillis(),
	})
	round.CurrentPlayerIndex = (round.CurrentPlayerIndex + 1) % len(sess.Players)

	var results []roundResult
	roundEnded := s.isRoundFinished(sess, round)
	if roundEnded {
		var err error
		if results, err = s.endRound(sess); err != nil {
			return "", false, nil, err
		}
	}
	return skipped, roundEnded, results, nil
}

// armTurnTimer schedules the timeout skip for the current turn. A
// non-positive MaxMoveTime disables the feature.
func (s *GameService) armTurnTimer(sess *models.Session) {
	if sess.MaxMoveTime <= 0 {
		return
	}
	round := sess.CurrentRound()
	if round == nil {
		s.timers.Cancel(sess.Code)
		return
	}

	code := sess.Code
	roundNumber := round.Number
	moveCount := len(round.Moves)
	s.timers.Arm(code, time.Duration(sess.MaxMoveTime)*time.Millisecond, func() {
		s.handleTurnTimeout(code, roundNumber, moveCount)
	})
}

func (s *GameService) broadcast(code, event string, payload interface{}) {
	if s.hub != nil {
		s.hub.BroadcastToGame(code, event, payload)
	}
}

// updateGameRow mirrors the aggregate's status onto the durable
// summary row. The row is derived data: failures are logged, not
// surfaced.
func (s *GameService) updateGameRow(sess *models.Session) {
	if s.db == nil {
		return
	}
	status := sess.ActiveStatus()
	if status == nil {
		return
	}

	updates := map[string]interface{}{"status": status.Type}
	now := time.Now()
	switch status.Type {
	case models.StatusPlaying:
		updates["started_at"] = &now
	case models.StatusEnded:
		updates["ended_at"] = &now
		updates["winners"] = sess.Winners
	}
	if err := s.db.Model(&models.Game{}).Where("code = ?", sess.Code).Updates(updates).Error; err != nil {
		log.Printf("Failed to update game row %s: %v", sess.Code, err)
	}
}

func (s *GameService) setPlayersInGame(sess *models.Session, inGame bool) {
	if s.players == nil {
		return
	}
	for i := range sess.Players {
		if err := s.players.SetInGame(sess.Players[i].ID, inGame); err != nil {
			log.Printf("Failed to set inGame=%v for player %s: %v", inGame, sess.Players[i].ID, err)
		}
	}
}

// awardRoundResults applies experience and stat rewards after a round.
// Rewards are progression bookkeeping, not part of the aggregate:
// failures are logged and do not fail the move that ended the round.
func (s *GameService) awardRoundResults(sess *models.Session, results []roundResult) {
	if s.players == nil {
		return
	}
	for _, r := range results {
		if err := s.players.ApplyRoundReward(r.PlayerID, r.Won, r.Exp); err != nil {
			log.Printf("Failed to apply round reward for player %s: %v", r.PlayerID, err)
		}
	}
}
