package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"instantwin/internal/cache"
	"instantwin/internal/database"
	"instantwin/internal/fairness"
	"instantwin/internal/game"
	"instantwin/internal/ledger"
	"instantwin/internal/logger"
	"instantwin/internal/server"
	"instantwin/internal/settings"
	"instantwin/internal/wallet"
)

func main() {
	cfg, err := settings.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init(&logger.Options{
		Level:      logger.ParseLevel(cfg.LogLevel),
		TimeFormat: time.RFC3339,
	})
	log := logger.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisService := cache.New(cfg.Redis)
	if redisService == nil && cfg.IsProduction() {
		log.Error("redis is required in production")
		os.Exit(1)
	}
	var client *redis.Client
	if redisService != nil {
		client = redisService.GetClient()
	}

	db, store := openLedger(ctx, cfg)
	retrying := ledger.NewRetrying(store, ledger.RetryConfig{MaxRetries: cfg.LedgerRetryMax})

	publisher := openPublisher(cfg)
	defer publisher.Close()

	edgeSettings, err := openSettings(cfg, client)
	if err != nil {
		log.Error("load house edge settings", logger.Err(err))
		os.Exit(1)
	}

	games, err := gameFactory(cfg)
	if err != nil {
		log.Error("load slots paytable", logger.Err(err))
		os.Exit(1)
	}

	var (
		wallets  wallet.Wallet
		sessions fairness.SessionStore
		rounds   game.RoundStore
	)
	if client != nil {
		wallets = wallet.NewRedis(client)
		sessions = fairness.NewRedisStore(client)
		rounds = game.NewRedisRoundStore(client)
	} else {
		log.Warn("using in-memory wallets, sessions and rounds")
		wallets = wallet.NewMemory()
		sessions = fairness.NewMemoryStore()
		rounds = game.NewMemoryRoundStore()
	}
	if !cfg.IsProduction() {
		demo, err := decimal.NewFromString(cfg.DemoBalance)
		if err != nil {
			log.Error("invalid DEMO_BALANCE", "value", cfg.DemoBalance, logger.Err(err))
			os.Exit(1)
		}
		wallets = wallet.NewDemo(wallets, demo)
	}

	hub := game.NewHub()
	go hub.Run()

	orchestrator, err := game.NewOrchestrator(game.Config{
		Games:     games,
		Wallet:    wallets,
		Ledger:    retrying,
		Settings:  edgeSettings,
		Sessions:  fairness.NewManager(sessions),
		Rounds:    rounds,
		Publisher: publisher,
		Hub:       hub,
	})
	if err != nil {
		log.Error("build orchestrator", logger.Err(err))
		os.Exit(1)
	}

	srv := server.New(server.Deps{
		DB:           db,
		Cache:        redisService,
		Games:        orchestrator,
		Hub:          hub,
		Settings:     edgeSettings,
		Wallet:       wallets,
		AdminBalance: !cfg.IsProduction(),
		RateLimit:    true,
	})
	srv.RegisterFiberRoutes()

	go reconcileLoop(ctx, orchestrator, cfg.ReconcileInterval)
	if file, ok := edgeSettings.(*settings.FileIntensity); ok {
		go reloadOnHangup(ctx, file)
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		log.Info("listening", "addr", addr, "env", cfg.AppEnv, "games", games.Types())
		if err := srv.Listen(addr); err != nil {
			log.Error("http server stopped", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	if err := srv.Shutdown(); err != nil {
		log.Error("shutdown", logger.Err(err))
	}
	log.Info("server exited")
}

// openLedger prefers Postgres. Outside production an unreachable database
// falls back to an in-memory ledger.
func openLedger(ctx context.Context, cfg settings.Config) (database.Service, ledger.Ledger) {
	log := logger.Component("main")

	db := database.New(cfg.DB)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Pool().Ping(pingCtx); err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production", logger.Err(err))
			os.Exit(1)
		}
		log.Warn("postgres unavailable, settlements are kept in memory", logger.Err(err))
		db.Close()
		return nil, ledger.NewMemory()
	}

	if err := database.RunMigrations(db.DB(), cfg.MigrationsPath); err != nil {
		log.Error("run migrations", logger.Err(err))
		os.Exit(1)
	}
	return db, ledger.NewPostgres(db.Pool())
}

func openPublisher(cfg settings.Config) ledger.Publisher {
	if cfg.NATSURL == "" {
		return ledger.NopPublisher{}
	}
	conn, err := ledger.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Component("main").Warn("nats unavailable, settlements are not published", logger.Err(err))
		return ledger.NopPublisher{}
	}
	return ledger.NewNATSPublisher(conn)
}

func openSettings(cfg settings.Config, client *redis.Client) (settings.IntensityProvider, error) {
	switch {
	case cfg.IntensityFile != "":
		return settings.NewFileIntensity(cfg.IntensityFile)
	case client != nil:
		return settings.NewRedisIntensity(client, cfg.DefaultIntensity), nil
	default:
		return settings.NewStatic(cfg.DefaultIntensity), nil
	}
}

func gameFactory(cfg settings.Config) (*game.GameFactory, error) {
	games := game.DefaultFactory()
	if cfg.PaytableFile == "" {
		return games, nil
	}
	f, err := os.Open(cfg.PaytableFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	paytable, err := game.LoadPaytable(f)
	if err != nil {
		return nil, err
	}
	games.RegisterEngine(game.NewSlotsEngine(paytable))
	return games, nil
}

// reconcileLoop finishes pending settlements and interrupted rounds.
func reconcileLoop(ctx context.Context, o *game.Orchestrator, every time.Duration) {
	log := logger.Component("reconcile")
	if every <= 0 {
		log.Warn("reconcile loop disabled", "interval", every)
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.Reconcile(ctx); err != nil {
				log.Warn("reconcile incomplete", logger.Err(err))
			}
		}
	}
}

func reloadOnHangup(ctx context.Context, f *settings.FileIntensity) {
	log := logger.Component("settings")
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := f.Reload(); err != nil {
				log.Warn("reload failed, keeping previous settings", logger.Err(err))
				continue
			}
			log.Info("house edge settings reloaded")
		}
	}
}
