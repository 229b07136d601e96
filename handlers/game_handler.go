package handlers

import (
	"log"
	"net/http"
	"strings"

	"screw/models"
	"screw/services"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	gameService   *services.GameService
	playerService *services.PlayerService
}

func NewGameHandler(gameService *services.GameService, playerService *services.PlayerService) *GameHandler {
	return &GameHandler{gameService: gameService, playerService: playerService}
}

type CreateGameRequest struct {
	NumberOfRounds int `json:"number_of_rounds"`
	MaxMoveTime    int `json:"max_move_time"` // ms, -1 for unlimited
	MaxPlayers     int `json:"max_players"`
}

type StartGameRequest struct {
	CheckReady bool `json:"check_ready"`
}

type ReadyRequest struct {
	Ready bool `json:"ready"`
}

// MoveRequest is the wire shape of a move. The handler converts it
// into the engine's closed move variants; unknown kinds are rejected
// here, before the engine sees them.
type MoveRequest struct {
	Type       string `json:"type" binding:"required"`
	Card       int    `json:"card"`
	Location   string `json:"location"`
	LocPlayer  string `json:"loc_player"`
	Slot       int    `json:"slot"`
	ClientDate int64  `json:"client_date"`
}

func sessionCode(c *gin.Context) string {
	return strings.ToLower(c.Param("code"))
}

// CreateGame creates a new session hosted by the caller.
func (h *GameHandler) CreateGame(c *gin.Context) {
	playerID, playerName, ok := playerIdentity(c)
	if !ok {
		return
	}

	var req CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.gameService.CreateSession(playerID, playerName, req.NumberOfRounds, req.MaxMoveTime, req.MaxPlayers)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.playerService.AddGame(playerID, sess.Code); err != nil {
		log.Printf("Failed to record game %s for host %s: %v", sess.Code, playerID, err)
	}

	c.JSON(http.StatusCreated, sess)
}

// GetGame returns the live session aggregate.
func (h *GameHandler) GetGame(c *gin.Context) {
	sess, err := h.gameService.GetSession(sessionCode(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// JoinGame seats the caller in a waiting session.
func (h *GameHandler) JoinGame(c *gin.Context) {
	playerID, playerName, ok := playerIdentity(c)
	if !ok {
		return
	}
	code := sessionCode(c)

	sess, err := h.gameService.JoinSession(code, playerID, playerName)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.playerService.AddGame(playerID, code); err != nil {
		log.Printf("Failed to record game %s for player %s: %v", code, playerID, err)
	}

	c.JSON(http.StatusOK, sess)
}

// LeaveGame removes the caller from a waiting session.
func (h *GameHandler) LeaveGame(c *gin.Context) {
	playerID, _, ok := playerIdentity(c)
	if !ok {
		return
	}
	code := sessionCode(c)

	sess, err := h.gameService.LeaveSession(code, playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.playerService.RemoveGame(playerID, code); err != nil {
		log.Printf("Failed to remove game %s for player %s: %v", code, playerID, err)
	}

	c.JSON(http.StatusOK, sess)
}

// Ready flips the caller's ready flag.
func (h *GameHandler) Ready(c *gin.Context) {
	playerID, _, ok := playerIdentity(c)
	if !ok {
		return
	}

	var req ReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.gameService.SetReady(sessionCode(c), playerID, req.Ready)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// StartGame begins play. Only the host can start.
func (h *GameHandler) StartGame(c *gin.Context) {
	playerID, _, ok := playerIdentity(c)
	if !ok {
		return
	}

	var req StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.gameService.StartSession(sessionCode(c), playerID, true, req.CheckReady)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Move applies one player move.
func (h *GameHandler) Move(c *gin.Context) {
	playerID, _, ok := playerIdentity(c)
	if !ok {
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var action services.MoveAction
	switch req.Type {
	case models.MoveDraw:
		action = services.DrawAction{From: req.Location, FromPlayer: req.LocPlayer, FromSlot: req.Slot}
	case models.MoveThrow:
		action = services.ThrowAction{Card: req.Card, To: req.Location, ToPlayer: req.LocPlayer, ToSlot: req.Slot}
	case models.MoveTake:
		action = services.TakeAction{Card: req.Card, Slot: req.Slot, From: req.Location, FromPlayer: req.LocPlayer}
	case models.MoveSkip:
		action = services.SkipAction{}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown move type"})
		return
	}

	sess, err := h.gameService.ApplyMove(sessionCode(c), playerID, action, req.ClientDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Screw lets the current player call the round's forced end.
func (h *GameHandler) Screw(c *gin.Context) {
	playerID, _, ok := playerIdentity(c)
	if !ok {
		return
	}

	sess, err := h.gameService.CallScrew(sessionCode(c), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// EndGame ends a playing session immediately.
func (h *GameHandler) EndGame(c *gin.Context) {
	playerID, _, ok := playerIdentity(c)
	if !ok {
		return
	}

	sess, err := h.gameService.EndSession(sessionCode(c), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// DeleteGame flags a session deleted. Only the host may delete.
func (h *GameHandler) DeleteGame(c *gin.Context) {
	playerID, _, ok := playerIdentity(c)
	if !ok {
		return
	}

	sess, err := h.gameService.DeleteSession(sessionCode(c), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}
