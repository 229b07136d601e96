package services

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"screw/models"

	"gorm.io/gorm"
)

// CardService owns the read-mostly card catalog cache and the deck
// building primitives. The cache is lazily populated from the store on
// first use and refreshed explicitly through RefreshCatalog.
type CardService struct {
	db     *gorm.DB
	mu     sync.RWMutex
	cards  map[int]models.Card
	loaded bool
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewCardService(db *gorm.DB) *CardService {
	return &CardService{
		db:  db,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// LoadCatalog fetches all non-deleted card definitions from the store
// and replaces the cache. An empty catalog is an error: no deck can be
// built without card definitions.
func (s *CardService) LoadCatalog() error {
	var cards []models.Card
	if err := s.db.Where("deleted = ?", false).Find(&cards).Error; err != nil {
		return fmt.Errorf("%w: loading card catalog: %v", ErrStoreFailure, err)
	}
	if len(cards) == 0 {
		return fmt.Errorf("%w: card catalog is empty", ErrNotFound)
	}

	table := make(map[int]models.Card, len(cards))
	for _, card := range cards {
		table[card.CardID] = card
	}

	s.mu.Lock()
	s.cards = table
	s.loaded = true
	s.mu.Unlock()

	log.Printf("Card catalog loaded: %d definitions", len(table))
	return nil
}

// RefreshCatalog invalidates and reloads the cache.
func (s *CardService) RefreshCatalog() error {
	return s.LoadCatalog()
}

func (s *CardService) ensureLoaded() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.LoadCatalog()
}

// GetCard looks a definition up by catalog card ID.
func (s *CardService) GetCard(cardID int) (models.Card, bool) {
	if err := s.ensureLoaded(); err != nil {
		return models.Card{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.cards[cardID]
	return card, ok
}

// ListCards returns every cached definition.
func (s *CardService) ListCards() ([]models.Card, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Card, 0, len(s.cards))
	for _, card := range s.cards {
		out = append(out, card)
	}
	return out, nil
}

// AddCard persists a new definition and adds it to the cache.
func (s *CardService) AddCard(card models.Card) error {
	if err := s.db.Create(&card).Error; err != nil {
		return fmt.Errorf("%w: creating card: %v", ErrStoreFailure, err)
	}
	s.mu.Lock()
	if s.cards == nil {
		s.cards = make(map[int]models.Card)
	}
	s.cards[card.CardID] = card
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// RemoveCard soft-deletes a definition and drops it from the cache.
func (s *CardService) RemoveCard(cardID int) error {
	result := s.db.Model(&models.Card{}).Where("card_id = ?", cardID).Update("deleted", true)
	if result.Error != nil {
		return fmt.Errorf("%w: deleting card: %v", ErrStoreFailure, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: card %d", ErrNotFound, cardID)
	}
	s.mu.Lock()
	delete(s.cards, cardID)
	s.mu.Unlock()
	return nil
}

// BuildDeck expands every catalog entry into Amount copies and returns
// the shuffled card-ID sequence for a fresh deck generation.
func (s *CardService) BuildDeck() ([]int, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	deck := make([]int, 0, len(s.cards)*2)
	for id, card := range s.cards {
		for i := 0; i < card.Amount; i++ {
			deck = append(deck, id)
		}
	}
	s.mu.RUnlock()

	if len(deck) == 0 {
		return nil, fmt.Errorf("%w: card catalog is empty", ErrNotFound)
	}
	return s.Shuffle(deck), nil
}

// Shuffle returns a Fisher-Yates shuffled copy of the sequence.
func (s *CardService) Shuffle(cards []int) []int {
	out := make([]int, len(cards))
	copy(out, cards)

	s.rndMu.Lock()
	for i := len(out) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	s.rndMu.Unlock()

	return out
}

// DrawCard pops the top (last) card off the deck. ok is false when the
// deck is exhausted; the caller decides the reshuffle policy, DrawCard
// never recycles on its own.
func DrawCard(deck *[]int) (cardID int, ok bool) {
	if len(*deck) == 0 {
		return 0, false
	}
	last := len(*deck) - 1
	cardID = (*deck)[last]
	*deck = (*deck)[:last]
	return cardID, true
}

// DealPlayerHand draws a full hand of HandSize cards.
func DealPlayerHand(deck *[]int) ([models.HandSize]int, bool) {
	var hand [models.HandSize]int
	for i := 0; i < models.HandSize; i++ {
		card, ok := DrawCard(deck)
		if !ok {
			return hand, false
		}
		hand[i] = card
	}
	return hand, true
}

// PlayerScore sums the point values of the cards in a player's hand.
// Empty slots score zero.
func (s *CardService) PlayerScore(player *models.SessionPlayer) int {
	score := 0
	for _, cardID := range player.Cards {
		if cardID == models.EmptySlot {
			continue
		}
		if card, ok := s.GetCard(cardID); ok {
			score += card.Points
		}
	}
	return score
}

// randIntn exposes the service RNG for engine decisions that need a
// uniform pick (e.g. the starting player index).
func (s *CardService) randIntn(n int) int {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.rnd.Intn(n)
}
