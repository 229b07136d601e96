package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"screw/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const playerIDLength = 8

// PlayerService manages global player accounts: registration, login
// lookups, per-game bookkeeping, and stat/level progression.
type PlayerService struct {
	db *gorm.DB
}

func NewPlayerService(db *gorm.DB) *PlayerService {
	return &PlayerService{db: db}
}

// GetByPlayerID loads an account by its short player ID.
func (s *PlayerService) GetByPlayerID(playerID string) (*models.Player, error) {
	var player models.Player
	err := s.db.Where("player_id = ?", playerID).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading player %s: %v", ErrStoreFailure, playerID, err)
	}
	return &player, nil
}

// GetByName loads an account by display name.
func (s *PlayerService) GetByName(name string) (*models.Player, error) {
	var player models.Player
	err := s.db.Where("name = ?", name).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: player named %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading player %q: %v", ErrStoreFailure, name, err)
	}
	return &player, nil
}

// GetByEmail loads a full account by email.
func (s *PlayerService) GetByEmail(email string) (*models.Player, error) {
	var player models.Player
	err := s.db.Where("email = ?", email).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: player with that email", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading player by email: %v", ErrStoreFailure, err)
	}
	return &player, nil
}

// CreateGuest registers a guest account carrying only a display name.
func (s *PlayerService) CreateGuest(name string) (*models.Player, error) {
	return s.create(name, "", "", true)
}

// CreateFull registers a full account with email and password.
func (s *PlayerService) CreateFull(name, email, password string) (*models.Player, error) {
	return s.create(name, email, password, false)
}

func (s *PlayerService) create(name, email, password string, guest bool) (*models.Player, error) {
	if _, err := s.GetByName(name); err == nil {
		return nil, fmt.Errorf("%w: player with that name already exists", ErrInvalidMove)
	}
	if !guest {
		if _, err := s.GetByEmail(email); err == nil {
			return nil, fmt.Errorf("%w: player with that email already exists", ErrInvalidMove)
		}
	}

	var playerID string
	for {
		playerID = generateShortID(playerIDLength)
		if _, err := s.GetByPlayerID(playerID); errors.Is(err, ErrNotFound) {
			break
		}
	}

	player := models.Player{
		PlayerID: playerID,
		Name:     name,
		Guest:    guest,
		Games:    []string{},
	}
	if !guest {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("%w: hashing password: %v", ErrStoreFailure, err)
		}
		player.Email = email
		player.Password = string(hash)
	}

	if err := s.db.Create(&player).Error; err != nil {
		return nil, fmt.Errorf("%w: creating player: %v", ErrStoreFailure, err)
	}

	log.Printf("Player %s (%s) created, guest=%v", name, playerID, guest)
	return &player, nil
}

// UpgradeToFullAccount converts a guest into a full account.
func (s *PlayerService) UpgradeToFullAccount(playerID, email, password string) (*models.Player, error) {
	player, err := s.GetByPlayerID(playerID)
	if err != nil {
		return nil, err
	}
	if !player.Guest {
		return nil, fmt.Errorf("%w: player is not a guest", ErrIllegalState)
	}
	if _, err := s.GetByEmail(email); err == nil {
		return nil, fmt.Errorf("%w: player with that email already exists", ErrInvalidMove)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing password: %v", ErrStoreFailure, err)
	}

	player.Email = email
	player.Password = string(hash)
	player.Guest = false

	if err := s.db.Save(player).Error; err != nil {
		return nil, fmt.Errorf("%w: saving player %s: %v", ErrStoreFailure, playerID, err)
	}
	return player, nil
}

// CheckPassword compares a candidate password against the stored hash.
func (s *PlayerService) CheckPassword(player *models.Player, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(player.Password), []byte(password)) == nil
}

// SetName renames an account.
func (s *PlayerService) SetName(playerID, newName string) (*models.Player, error) {
	if _, err := s.GetByName(newName); err == nil {
		return nil, fmt.Errorf("%w: player with that name already exists", ErrInvalidMove)
	}
	player, err := s.GetByPlayerID(playerID)
	if err != nil {
		return nil, err
	}
	player.Name = newName
	if err := s.db.Save(player).Error; err != nil {
		return nil, fmt.Errorf("%w: saving player %s: %v", ErrStoreFailure, playerID, err)
	}
	return player, nil
}

// AddGame records a session code on the player's joined-games list.
func (s *PlayerService) AddGame(playerID, code string) error {
	player, err := s.GetByPlayerID(playerID)
	if err != nil {
		return err
	}
	for _, g := range player.Games {
		if g == code {
			return fmt.Errorf("%w: player already joined that game", ErrInvalidMove)
		}
	}
	player.Games = append(player.Games, code)
	if err := s.db.Save(player).Error; err != nil {
		return fmt.Errorf("%w: saving player %s: %v", ErrStoreFailure, playerID, err)
	}
	return nil
}

// RemoveGame drops a session code from the player's joined-games list.
func (s *PlayerService) RemoveGame(playerID, code string) error {
	player, err := s.GetByPlayerID(playerID)
	if err != nil {
		return err
	}
	idx := -1
	for i, g := range player.Games {
		if g == code {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("%w: game %s not on player's list", ErrNotFound, code)
	}
	player.Games = append(player.Games[:idx], player.Games[idx+1:]...)
	if err := s.db.Save(player).Error; err != nil {
		return fmt.Errorf("%w: saving player %s: %v", ErrStoreFailure, playerID, err)
	}
	return nil
}

// SetInGame flags whether the player is seated in a live game.
func (s *PlayerService) SetInGame(playerID string, inGame bool) error {
	result := s.db.Model(&models.Player{}).Where("player_id = ?", playerID).Update("in_game", inGame)
	if result.Error != nil {
		return fmt.Errorf("%w: updating player %s: %v", ErrStoreFailure, playerID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	return nil
}

// IsInGame reports whether the player is currently flagged in a game.
func (s *PlayerService) IsInGame(playerID string) (bool, error) {
	player, err := s.GetByPlayerID(playerID)
	if err != nil {
		return false, err
	}
	return player.InGame, nil
}

// ApplyRoundReward credits one round's outcome to the player's stats:
// play/win counters, streaks, experience, greedy level-ups, and the
// per-day over-time slice.
func (s *PlayerService) ApplyRoundReward(playerID string, won bool, exp int) error {
	player, err := s.GetByPlayerID(playerID)
	if err != nil {
		return err
	}

	player.Stats.Played++
	if won {
		player.Stats.Won++
		player.Stats.WinStreak++
		if player.Stats.WinStreak > player.Stats.BestWinStreak {
			player.Stats.BestWinStreak = player.Stats.WinStreak
		}
	} else {
		player.Stats.WinStreak = 0
	}
	player.Stats.Exp += exp

	for player.Stats.Exp >= GetExpForNextLevel(player.Stats.Level) {
		player.Stats.Exp -= GetExpForNextLevel(player.Stats.Level)
		player.Stats.Level++
	}

	s.mergeOverTimeStat(player, won, exp)

	if err := s.db.Save(player).Error; err != nil {
		return fmt.Errorf("%w: saving player %s: %v", ErrStoreFailure, playerID, err)
	}
	return nil
}

// mergeOverTimeStat folds today's result into the per-day stats list,
// matching entries by calendar date.
func (s *PlayerService) mergeOverTimeStat(player *models.Player, won bool, exp int) {
	now := time.Now()
	today := now.Format("02:01:2006")

	wonInc := 0
	if won {
		wonInc = 1
	}

	for i := range player.OverTimeStats {
		entry := &player.OverTimeStats[i]
		if time.UnixMilli(entry.Date).Format("02:01:2006") != today {
			continue
		}
		entry.Played++
		entry.Won += wonInc
		if player.Stats.WinStreak > entry.WinStreak {
			entry.WinStreak = player.Stats.WinStreak
		}
		if player.Stats.BestWinStreak > entry.BestWinStreak {
			entry.BestWinStreak = player.Stats.BestWinStreak
		}
		if player.Stats.Level > entry.Level {
			entry.Level = player.Stats.Level
		}
		entry.Exp += exp
		return
	}

	player.OverTimeStats = append(player.OverTimeStats, models.OverTimeStat{
		Played:        1,
		Won:           wonInc,
		WinStreak:     player.Stats.WinStreak,
		BestWinStreak: player.Stats.BestWinStreak,
		Level:         player.Stats.Level,
		Exp:           exp,
		Date:          now.UnixMilli(),
	})
}
