package models

import (
	"time"

	"gorm.io/gorm"
)

// PlayerStats tracks lifetime progression for one account.
type PlayerStats struct {
	Played        int `json:"played"`
	Won           int `json:"won"`
	WinStreak     int `json:"win_streak"`
	BestWinStreak int `json:"best_win_streak"`
	Level         int `json:"level"`
	Exp           int `json:"exp"`
}

// OverTimeStat is one calendar day's slice of a player's stats.
type OverTimeStat struct {
	Played        int   `json:"played"`
	Won           int   `json:"won"`
	WinStreak     int   `json:"win_streak"`
	BestWinStreak int   `json:"best_win_streak"`
	Level         int   `json:"level"`
	Exp           int   `json:"exp"`
	Date          int64 `json:"date"` // unix ms
}

// Player is a global account. Guests have no email/password until they
// upgrade to a full account.
type Player struct {
	ID            uint           `json:"-" gorm:"primaryKey"`
	PlayerID      string         `json:"player_id" gorm:"uniqueIndex;not null"`
	Name          string         `json:"name" gorm:"uniqueIndex;not null"`
	Email         string         `json:"email,omitempty" gorm:"index"`
	Password      string         `json:"-"`
	Guest         bool           `json:"guest" gorm:"not null"`
	Games         []string       `json:"games" gorm:"serializer:json"`
	InGame        bool           `json:"in_game" gorm:"not null;default:false"`
	Stats         PlayerStats    `json:"stats" gorm:"serializer:json"`
	OverTimeStats []OverTimeStat `json:"over_time_stats" gorm:"serializer:json"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}
