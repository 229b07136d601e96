package handlers

import (
	"net/http"
	"strconv"

	"screw/models"
	"screw/services"

	"github.com/gin-gonic/gin"
)

type CardHandler struct {
	cardService *services.CardService
}

func NewCardHandler(cardService *services.CardService) *CardHandler {
	return &CardHandler{cardService: cardService}
}

type AddCardRequest struct {
	CardID      int    `json:"card_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	ImgSrc      string `json:"img_src"`
	Points      int    `json:"points"`
	Amount      int    `json:"amount" binding:"required,min=1"`
	Type        string `json:"type" binding:"required"`
	GameVersion int    `json:"game_version"`
}

// ListCards returns the active card catalog.
func (h *CardHandler) ListCards(c *gin.Context) {
	cards, err := h.cardService.ListCards()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

// AddCard inserts a new catalog entry. New sessions pick it up on the
// next deck build.
func (h *CardHandler) AddCard(c *gin.Context) {
	var req AddCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card := models.Card{
		CardID:      req.CardID,
		Name:        req.Name,
		ImgSrc:      req.ImgSrc,
		Points:      req.Points,
		Amount:      req.Amount,
		Type:        req.Type,
		GameVersion: req.GameVersion,
	}
	if err := h.cardService.AddCard(card); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

// RemoveCard soft-deletes a catalog entry by its card id.
func (h *CardHandler) RemoveCard(c *gin.Context) {
	cardID, err := strconv.Atoi(c.Param("cardId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid card id"})
		return
	}

	if err := h.cardService.RemoveCard(cardID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card removed"})
}

// RefreshCatalog reloads the in-memory catalog from the database.
func (h *CardHandler) RefreshCatalog(c *gin.Context) {
	if err := h.cardService.RefreshCatalog(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Catalog refreshed"})
}
