package routes

import (
	"log"
	"net/http"
	"strings"

	"screw/handlers"
	"screw/middleware"
	"screw/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	gameHandler *handlers.GameHandler,
	cardHandler *handlers.CardHandler,
	hub *services.Hub,
	gameService *services.GameService,
	authService *services.AuthService,
) {
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/guest", middleware.NotLoggedIn(authService), authHandler.RegisterGuest)
			auth.POST("/register", middleware.NotLoggedIn(authService), authHandler.Register)
			auth.POST("/login", middleware.NotLoggedIn(authService), authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(authService))
		{
			protected.GET("/auth/profile", authHandler.Profile)
			protected.PUT("/auth/name", authHandler.UpdateName)
			protected.POST("/auth/upgrade", authHandler.Upgrade)

			games := protected.Group("/games")
			{
				games.POST("", gameHandler.CreateGame)
				games.GET("/:code", gameHandler.GetGame)
				games.POST("/:code/join", gameHandler.JoinGame)
				games.POST("/:code/leave", gameHandler.LeaveGame)
				games.POST("/:code/ready", gameHandler.Ready)
				games.POST("/:code/start", gameHandler.StartGame)
				games.POST("/:code/move", gameHandler.Move)
				games.POST("/:code/screw", gameHandler.Screw)
				games.POST("/:code/end", gameHandler.EndGame)
				games.DELETE("/:code", gameHandler.DeleteGame)
			}

			cards := protected.Group("/cards")
			{
				cards.GET("", cardHandler.ListCards)
				cards.POST("", cardHandler.AddCard)
				cards.DELETE("/:cardId", cardHandler.RemoveCard)
				cards.POST("/refresh", cardHandler.RefreshCatalog)
			}
		}
	}

	// WebSocket endpoint for real-time session events
	router.GET("/ws/:code/:playerID", func(c *gin.Context) {
		code := strings.ToLower(c.Param("code"))
		playerID := c.Param("playerID")
		playerName := c.Query("playerName")

		log.Printf("WebSocket connection attempt - Session: %s, PlayerID: %s, PlayerName: %s", code, playerID, playerName)

		// Only seated players get a socket
		seat, err := validatePlayerAccess(gameService, code, playerID)
		if err != nil {
			log.Printf("Player access validation failed for session %s, player %s: %v", code, playerID, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Player not found in session"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for session %s, player %s: %v", code, playerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
			return
		}

		if playerName == "" {
			playerName = seat
		}

		log.Printf("WebSocket connection established for session %s, player %s (%s)", code, playerID, playerName)

		hub.RegisterClient(conn, code, playerID, playerName)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// validatePlayerAccess checks that the player is seated in the session
// and returns the seat's display name.
func validatePlayerAccess(gameService *services.GameService, code, playerID string) (string, error) {
	sess, err := gameService.GetSession(code)
	if err != nil {
		return "", err
	}

	seat, _ := sess.FindPlayer(playerID)
	if seat == nil {
		return "", services.ErrUnauthorizedMove
	}
	return seat.Name, nil
}
