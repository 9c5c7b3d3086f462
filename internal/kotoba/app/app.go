// Package app wires the Kotoba engine together from a config.Config: the
// database, the stores over it, the gateway, the generation controller and
// the background retention sweep.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bdobrica/Kotoba/common/redact"
	"github.com/bdobrica/Kotoba/internal/kotoba/chat"
	"github.com/bdobrica/Kotoba/internal/kotoba/config"
	"github.com/bdobrica/Kotoba/internal/kotoba/generation"
	"github.com/bdobrica/Kotoba/internal/kotoba/kv"
	"github.com/bdobrica/Kotoba/internal/kotoba/matrix"
	"github.com/bdobrica/Kotoba/internal/kotoba/memory"
	"github.com/bdobrica/Kotoba/internal/kotoba/nlp"
	"github.com/bdobrica/Kotoba/internal/kotoba/settings"
	"github.com/bdobrica/Kotoba/internal/kotoba/store"
)

// Options adjust how New builds the engine.
type Options struct {
	// Ephemeral keeps all state in memory; nothing is read from or written
	// to the database.
	Ephemeral bool
	// Gateway replaces the OpenAI-compatible gateway built from config.
	Gateway nlp.Gateway
}

// App is a running engine.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *store.Store // nil when ephemeral

	KV         kv.Store
	Chats      *chat.Store
	Memory     *memory.Store
	Settings   *settings.Store
	Controller *generation.Controller
	Retention  *chat.RetentionRunner
}

// New opens storage, loads persisted state and builds the controller.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger}

	var backend kv.Store
	if opts.Ephemeral {
		logger.Info("using in-memory storage; nothing will be saved")
		backend = kv.NewMemory()
	} else {
		logger.Info("opening database", "path", cfg.DatabasePath)
		db, err := store.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("app: open database: %w", err)
		}
		a.db = db
		backend = kv.NewSQLite(db)
	}

	key, err := cfg.MasterKeyBytes()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	if key != nil {
		if backend, err = kv.NewSealed(backend, key); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: sealed storage: %w", err)
		}
		logger.Info("stored documents are sealed at rest")
	}
	a.KV = backend

	a.Chats = chat.NewStore(backend, logger)
	a.Memory = memory.NewStore(backend, logger)
	a.Settings = settings.NewStore(backend, logger)
	for _, load := range []func(context.Context) error{a.Chats.Load, a.Memory.Load, a.Settings.Load} {
		if err := load(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: load state: %w", err)
		}
	}
	logger.Info("state loaded", "conversations", a.Chats.Len())

	gw := opts.Gateway
	if gw == nil {
		if cfg.Gateway.APIKey == "" {
			logger.Warn("no API key configured; set KOTOBA_API_KEY or every reply will fail")
		}
		gw = nlp.NewOpenAI(nlp.Config{
			APIKey:  cfg.Gateway.APIKey,
			BaseURL: cfg.Gateway.BaseURL,
			Timeout: cfg.Gateway.Timeout,
		})
		logger.Info("gateway ready",
			"base_url", cfg.Gateway.BaseURL,
			"model", cfg.Gateway.Model,
			"api_key", redact.Secret(cfg.Gateway.APIKey))
	}

	var limiter *nlp.RateLimiter
	if cfg.Generation.SubmitsPerMinute > 0 {
		limiter = nlp.NewRateLimiter(cfg.Generation.SubmitsPerMinute)
	}
	a.Controller = generation.New(generation.Config{
		Chats:    a.Chats,
		Memory:   a.Memory,
		Settings: a.Settings,
		Gateway:  gw,
		Params:   cfg.Params(),
		Limiter:  limiter,
		Timeout:  cfg.Generation.Timeout,
		Logger:   logger,
	})

	a.Retention = &chat.RetentionRunner{
		Store:    a.Chats,
		Max:      cfg.Retention.MaxConversations,
		Schedule: cfg.Retention.Schedule,
		Exempt:   a.Controller.InFlight,
		Logger:   logger,
	}
	return a, nil
}

// Ping checks the database. It implements the health server's status
// provider, as do ConversationCount and GenerationStatus.
func (a *App) Ping(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Ping(ctx)
}

func (a *App) ConversationCount() int {
	return a.Chats.Len()
}

func (a *App) GenerationStatus() generation.Status {
	return a.Controller.Status()
}

// Serve runs the Matrix binding, the health server (when HTTPAddr is set)
// and the retention sweep until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	if err := a.cfg.ValidateMatrix(); err != nil {
		return err
	}

	if err := a.Retention.Start(); err != nil {
		return err
	}
	defer a.Retention.Stop()
	a.Retention.RunOnce(ctx)

	if a.cfg.HTTPAddr != "" {
		hs := NewHealthServer(a.cfg.HTTPAddr, a, a.logger)
		if err := hs.Start(ctx); err != nil {
			a.logger.Warn("health server failed to start; continuing without it", "err", err)
		}
	}

	rooms := matrix.NewRoomMap(a.KV)
	if err := rooms.Load(ctx); err != nil {
		return err
	}
	client, err := matrix.New(matrix.Config{
		Homeserver:  a.cfg.Matrix.Homeserver,
		UserID:      a.cfg.Matrix.UserID,
		AccessToken: a.cfg.Matrix.AccessToken,
		Rooms:       a.cfg.Matrix.Rooms,
		SyncStore:   matrix.NewKVSyncStore(a.KV),
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	bot := &matrix.Bot{
		Controller:    a.Controller,
		Chats:         a.Chats,
		Memory:        a.Memory,
		Settings:      a.Settings,
		Rooms:         rooms,
		Sender:        client,
		EnhancedUsers: a.cfg.Matrix.EnhancedUsers,
		Logger:        a.logger,
	}

	a.logger.Info("connecting to Matrix", "homeserver", a.cfg.Matrix.Homeserver, "rooms", len(a.cfg.Matrix.Rooms))
	if err := client.Start(ctx, bot.HandleEvent); err != nil {
		return err
	}
	a.logger.Info("Kotoba is running; press Ctrl+C to stop")

	<-ctx.Done()
	a.logger.Info("shutting down")
	client.Stop()
	a.Controller.Cancel()
	bot.Wait()
	return nil
}

// Close releases the database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return fmt.Errorf("app: close database: %w", err)
	}
	return nil
}
