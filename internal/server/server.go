package server

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"instantwin/internal/cache"
	"instantwin/internal/database"
	"instantwin/internal/game"
	"instantwin/internal/logger"
	"instantwin/internal/settings"
	"instantwin/internal/wallet"
)

const (
	RATE_LIMIT_MAX    = 100
	RATE_LIMIT_WINDOW = 1 * time.Minute
	HISTORY_LIMIT     = 50
)

// Deps are the collaborators the HTTP layer serves. DB and Cache are optional
// and only feed the health report.
type Deps struct {
	DB       database.Service
	Cache    cache.Service
	Games    *game.Orchestrator
	Hub      *game.Hub
	Settings settings.IntensityProvider
	Wallet   wallet.Wallet
	// AdminBalance enables the balance override endpoint.
	AdminBalance bool
	// RateLimit disables the per-IP limiter when false.
	RateLimit bool
}

type FiberServer struct {
	*fiber.App

	db           database.Service
	cache        cache.Service
	games        *game.Orchestrator
	gameHub      *game.Hub
	settings     settings.IntensityProvider
	wallet       wallet.Wallet
	adminBalance bool
	validate     *validator.Validate
	log          *slog.Logger
}

func New(deps Deps) *FiberServer {
	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "instantwin",
			AppName:       "instantwin",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
			// Route params become wallet, session and lock keys that outlive
			// the request buffer.
			Immutable: true,
		}),

		db:           deps.DB,
		cache:        deps.Cache,
		games:        deps.Games,
		gameHub:      deps.Hub,
		settings:     deps.Settings,
		wallet:       deps.Wallet,
		adminBalance: deps.AdminBalance,
		validate:     validator.New(),
		log:          logger.Component("server"),
	}

	server.App.Use(recover.New())
	if deps.RateLimit {
		server.App.Use(limiter.New(limiter.Config{
			Max:        RATE_LIMIT_MAX,
			Expiration: RATE_LIMIT_WINDOW,
		}))
	}

	return server
}

// Shutdown stops the HTTP listener and closes the shared connections.
func (s *FiberServer) Shutdown() error {
	s.log.Info("shutting down")

	err := s.App.Shutdown()

	if s.gameHub != nil {
		s.gameHub.Stop()
	}
	if s.cache != nil {
		if cerr := s.cache.Close(); cerr != nil {
			s.log.Warn("closing redis", logger.Err(cerr))
		}
	}
	if s.db != nil {
		if derr := s.db.Close(); derr != nil {
			s.log.Warn("closing database", logger.Err(derr))
		}
	}

	return err
}
