package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	api.Get("/games", s.listGamesHandler)
	s.RegisterGameRoutes(api)

	fair := api.Group("/fairness")
	fair.Get("/:game/:playerId", s.commitmentHandler)
	fair.Post("/:game/:playerId/rotate", s.rotateHandler)
	fair.Post("/verify", s.verifyHandler)

	players := api.Group("/players/:playerId")
	players.Get("/balance", s.getBalanceHandler)
	players.Post("/balance", s.setBalanceHandler)
	players.Get("/history", s.historyHandler)

	admin := api.Group("/admin")
	admin.Put("/games/:game", s.updateGameSettingsHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

// RegisterGameRoutes mounts the round endpoints shared by every game.
func (s *FiberServer) RegisterGameRoutes(api fiber.Router) {
	games := api.Group("/games/:game")
	games.Post("/rounds", s.startRoundHandler)
	games.Get("/rounds/active", s.activeRoundHandler)

	api.Get("/rounds/:roundId", s.getRoundHandler)
	api.Post("/rounds/:roundId/actions", s.actionHandler)
}
