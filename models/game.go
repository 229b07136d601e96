package models

import (
	"time"

	"gorm.io/gorm"
)

// Game is the durable summary row for one session. The live aggregate
// (players, rounds, moves) is the Session document in Redis; this row
// exists for listing and history queries.
type Game struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	Code           string         `json:"code" gorm:"uniqueIndex;not null"`
	HostID         string         `json:"host_id" gorm:"not null"`
	Status         string         `json:"status" gorm:"not null;default:'waiting'"` // waiting, playing, ended, deleted
	NumberOfRounds int            `json:"number_of_rounds" gorm:"not null;default:4"`
	MaxMoveTime    int            `json:"max_move_time" gorm:"not null;default:-1"` // ms, -1 = unlimited
	MaxPlayers     int            `json:"max_players" gorm:"not null;default:14"`
	Winners        []string       `json:"winners" gorm:"serializer:json"`
	StartedAt      *time.Time     `json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}
