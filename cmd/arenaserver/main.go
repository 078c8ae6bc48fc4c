package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/zombiearena/internal/api"
	"github.com/udisondev/zombiearena/internal/auth"
	"github.com/udisondev/zombiearena/internal/config"
	"github.com/udisondev/zombiearena/internal/db"
	"github.com/udisondev/zombiearena/internal/game/room"
	"github.com/udisondev/zombiearena/internal/game/spawn"
	"github.com/udisondev/zombiearena/internal/gameserver"
	"github.com/udisondev/zombiearena/internal/ledger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfgPath := flag.String("config", "", "path to config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	memory := flag.Bool("memory", false, "run without PostgreSQL (in-memory ledger, no stats)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, config.ResolvePath(*cfgPath), *memory); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string, memory bool) error {
	// Load config FIRST to determine log level
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("arena server starting",
		"config", cfgPath,
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"log_level", cfg.LogLevel)

	// Storage: PostgreSQL, or in-memory when disabled
	var (
		store ledger.Store
		hist  api.LedgerReader
		stats *db.StatsRepository
		ready func(context.Context) error
	)
	if memory || cfg.Database.Host == "" {
		mem := ledger.NewMemoryStore()
		store, hist = mem, mem
		slog.Warn("database disabled, balances are kept in memory")
	} else {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		if err := db.RunMigrationsPool(ctx, database.Pool()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		repo := db.NewLedgerRepository(database.Pool())
		store, hist = repo, repo
		stats = db.NewStatsRepository(database.Pool())
		ready = database.Ping
	}

	issuer, err := newIssuer(cfg.Auth)
	if err != nil {
		return fmt.Errorf("creating ticket issuer: %w", err)
	}

	dispatcher := ledger.NewDispatcher(store, ledger.DispatcherConfig{
		Workers:       cfg.Ledger.Workers,
		QueueSize:     cfg.Ledger.QueueSize,
		SettleTimeout: cfg.Ledger.SettleTimeout,
	})

	clients := gameserver.NewClientManager()
	rooms := room.NewManager(room.Config{
		MaxPlayers:        cfg.Room.MaxPlayers,
		MinPlayersToStart: cfg.Room.MinPlayersToStart,
		RestartDelay:      cfg.Room.RoundRestartDelay,
		Spawn: spawn.Config{
			PoolSize: cfg.Room.PoolSize,
			Interval: cfg.Room.SpawnInterval,
		},
		Catalog: room.CatalogFromPrices(cfg.Economy.PerkPrices),
	}, clients, dispatcher)

	handlerCfg := gameserver.HandlerConfig{
		Rooms:          rooms,
		Clients:        clients,
		Ledger:         store,
		Verifier:       issuer,
		Registry:       auth.NewRegistry(),
		MysteryBoxCost: cfg.Economy.MysteryBoxCost,
	}
	if stats != nil {
		handlerCfg.Stats = stats
	}
	handler := gameserver.NewHandler(handlerCfg)
	dispatcher.OnSettled(handler.OnSettled)

	gameServer := gameserver.NewServer(cfg, clients, handler)

	apiDeps := api.Deps{
		Ledger:      hist,
		Rooms:       rooms,
		Settlements: dispatcher,
		WS:          gameServer,
		Ready:       ready,
	}
	if stats != nil {
		apiDeps.Stats = stats
	}

	addr := net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           api.SetupRoutes(apiDeps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := dispatcher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := rooms.Run(gctx, cfg.Room.GCInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		slog.Info("http server started", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown", "error", err)
		}
		gameServer.Shutdown(shutdownTimeout)
		rooms.Shutdown()
		slog.Info("arena server stopped")
		return nil
	})

	// Wait for all servers to finish
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// newIssuer builds the ticket issuer. An empty secret gets a random one so
// that development runs work; tickets from cmd/ticketgen won't verify then.
func newIssuer(cfg config.AuthConfig) (*auth.Issuer, error) {
	secret := cfg.TicketSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generating ticket secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		slog.Warn("auth.ticket_secret is empty, using an ephemeral secret")
	}
	return auth.NewIssuer(secret, cfg.TicketTTL)
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
