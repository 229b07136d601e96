package handlers

import (
	"errors"
	"log"
	"net/http"

	"screw/services"

	"github.com/gin-gonic/gin"
)

// respondError maps engine failures onto HTTP statuses. Store failures
// are logged and surfaced as a generic message; everything else keeps
// its text so clients can show it.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorizedMove):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrIllegalState), errors.Is(err, services.ErrResourceExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrStoreFailure):
		log.Printf("Store failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error, please try again later"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// playerIdentity pulls the authenticated identity set by the auth
// middleware.
func playerIdentity(c *gin.Context) (playerID, name string, ok bool) {
	id, exists := c.Get("player_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Player not authenticated"})
		return "", "", false
	}
	n, _ := c.Get("player_name")
	name, _ = n.(string)
	return id.(string), name, true
}
