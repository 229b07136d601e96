package handlers

import (
	"net/http"

	"screw/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	playerService *services.PlayerService
	authService   *services.AuthService
}

func NewAuthHandler(playerService *services.PlayerService, authService *services.AuthService) *AuthHandler {
	return &AuthHandler{playerService: playerService, authService: authService}
}

type RegisterGuestRequest struct {
	Name string `json:"name" binding:"required,max=36"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=36"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=36"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // name or email
	Password   string `json:"password" binding:"required,min=8,max=36"`
}

type UpdateNameRequest struct {
	Name string `json:"name" binding:"required,max=36"`
}

type UpgradeRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=36"`
}

const tokenCookieMaxAge = 60 * 60 * 24 * 30 // one month, full accounts only

func (h *AuthHandler) setTokenCookie(c *gin.Context, token string, guest bool) {
	maxAge := 0
	if !guest {
		maxAge = tokenCookieMaxAge
	}
	c.SetCookie("token", token, maxAge, "/", "", true, true)
}

// RegisterGuest creates a name-only guest account and logs it in.
func (h *AuthHandler) RegisterGuest(c *gin.Context) {
	var req RegisterGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := h.playerService.CreateGuest(req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.authService.GenerateAccessToken(player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	h.setTokenCookie(c, token, true)

	c.JSON(http.StatusCreated, gin.H{"message": "Guest player created", "player": player, "token": token})
}

// Register creates a full account and logs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := h.playerService.CreateFull(req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.authService.GenerateAccessToken(player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	h.setTokenCookie(c, token, false)

	c.JSON(http.StatusCreated, gin.H{"message": "Player created", "player": player, "token": token})
}

// Login authenticates by name or email plus password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := h.playerService.GetByEmail(req.Identifier)
	if err != nil {
		player, err = h.playerService.GetByName(req.Identifier)
	}
	if err != nil || !h.playerService.CheckPassword(player, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.authService.GenerateAccessToken(player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	h.setTokenCookie(c, token, player.Guest)

	c.JSON(http.StatusOK, gin.H{"message": "Logged in", "player": player, "token": token})
}

// Logout clears the token cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie("token", "", -1, "/", "", true, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Profile returns the authenticated player's account.
func (h *AuthHandler) Profile(c *gin.Context) {
	playerID, _, ok := playerIdentity(c)
	if !ok {
		return
	}

	player, err := h.playerService.GetByPlayerID(playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

// UpdateName renames the authenticated player's account. The new name
// only shows in sessions joined after the change; seated names are
// part of the session aggregate.
func (h *AuthHandler) UpdateName(c *gin.Context) {
	playerID, _, ok := playerIdentity(c)
	if !ok {
		return
	}

	var req UpdateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := h.playerService.SetName(playerID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.authService.GenerateAccessToken(player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	h.setTokenCookie(c, token, player.Guest)

	c.JSON(http.StatusOK, player)
}

// Upgrade converts a guest account into a full one.
func (h *AuthHandler) Upgrade(c *gin.Context) {
	playerID, _, ok := playerIdentity(c)
	if !ok {
		return
	}

	var req UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := h.playerService.UpgradeToFullAccount(playerID, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.authService.GenerateAccessToken(player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	h.setTokenCookie(c, token, false)

	c.JSON(http.StatusOK, gin.H{"message": "Account upgraded", "player": player})
}
