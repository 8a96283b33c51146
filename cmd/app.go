package main

import (
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/auth"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/session"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// App is the wired auth core and Spotify client shared by every command.
type App struct {
	DB      *sql.DB
	Store   *session.Store
	Tokens  *auth.Coordinator
	Flow    *auth.Flow
	Client  *services.Client
	Spotify *services.SpotifyService
	Backend string
}

// Wire opens the database, hydrates the session store and connects the token, flow and API layers.
//
// Pending PKCE verifiers always live in the database; the session itself goes to the configured backend.
func Wire(cfg *shared.Config, logger *log.Logger) (*App, error) {
	db, err := shared.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Database.Path != ":memory:" {
		shared.ConfigureDatabase(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	namespace := cfg.Session.Namespace
	if namespace == "" {
		namespace = session.DefaultNamespace
	}

	var persister session.Persister
	switch cfg.Session.Backend {
	case "keyring":
		persister = session.NewKeyringPersister(namespace)
	case "sqlite", "":
		persister = repositories.NewSessionRepository(db, namespace)
	default:
		db.Close()
		return nil, fmt.Errorf("%w: unknown session backend %q", shared.ErrInvalidConfig, cfg.Session.Backend)
	}

	store := session.NewStore(persister, session.StoreOpts{Namespace: namespace, Logger: logger})
	tokenClient := auth.NewTokenClientFromConfig(cfg, logger)

	tokens := auth.NewCoordinator(store, tokenClient, auth.CoordinatorOpts{
		Margin:  cfg.Session.RefreshMargin(),
		Timeout: cfg.HTTP.Timeout(),
		Logger:  logger,
	})

	flow := auth.NewFlow(tokenClient, repositories.NewVerifierRepository(db), store, auth.FlowOpts{
		VerifierLength: cfg.Session.VerifierLength,
		Logger:         logger,
	})

	client := services.NewClient(tokens, services.ClientOpts{
		BaseURL: cfg.Spotify.APIURL,
		Timeout: cfg.HTTP.Timeout(),
		Limiter: services.NewLimiter(cfg.HTTP),
		Revoker: store,
		Logger:  logger,
	})

	backend := cfg.Session.Backend
	if backend == "" {
		backend = "sqlite"
	}

	return &App{
		DB:      db,
		Store:   store,
		Tokens:  tokens,
		Flow:    flow,
		Client:  client,
		Spotify: services.NewSpotifyService(client),
		Backend: backend,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
