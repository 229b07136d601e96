package main

import (
	"log"

	"screw/config"
	"screw/handlers"
	"screw/middleware"
	"screw/models"
	"screw/routes"
	"screw/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.Player{},
		&models.Card{},
		&models.Game{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize services
	authService := services.NewAuthService(cfg.JWTSecret)
	playerService := services.NewPlayerService(db)
	cardService := services.NewCardService(db)
	if err := cardService.LoadCatalog(); err != nil {
		log.Printf("Card catalog not loaded yet: %v", err)
	}
	gameService := services.NewGameService(db, redisClient, cardService, playerService)

	// Initialize WebSocket hub
	hub := services.NewHub(gameService)
	gameService.AttachHub(hub)
	go hub.Run()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(playerService, authService)
	gameHandler := handlers.NewGameHandler(gameService, playerService)
	cardHandler := handlers.NewCardHandler(cardService)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, gameHandler, cardHandler, hub, gameService, authService)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
