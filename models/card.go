package models

import (
	"time"

	"gorm.io/gorm"
)

// Card effect types. Only "number" cards are plain point cards; the
// remaining effects are recognised by the engine but their hand
// manipulation is an extension point (see services.applyCardEffect).
const (
	CardTypeNumber   = "number"
	CardTypeSeeOther = "seeOther"
	CardTypeSeeSelf  = "seeSelf"
	CardTypeSeeAll   = "seeAll"
	CardTypeExchange = "exchange"
	CardTypeThrow    = "throw"
)

// Card is a catalog definition. Individual card instances are fungible
// within a CardID: "Amount" copies of the same definition circulate in
// every deck built from the catalog.
type Card struct {
	ID          uint           `json:"-" gorm:"primaryKey"`
	CardID      int            `json:"card_id" gorm:"uniqueIndex;not null"`
	Name        string         `json:"name" gorm:"not null"`
	ImgSrc      string         `json:"img_src"`
	Points      int            `json:"points" gorm:"not null"`
	Amount      int            `json:"amount" gorm:"not null"`
	Type        string         `json:"type" gorm:"not null;default:'number'"`
	GameVersion int            `json:"game_version" gorm:"not null;default:1"`
	Deleted     bool           `json:"deleted" gorm:"not null;default:false"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
