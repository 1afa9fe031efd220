package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cronchat/internal/api"
	"cronchat/internal/chat"
	"cronchat/internal/config"
	"cronchat/internal/db"
	"cronchat/internal/messaging"
	"cronchat/internal/relay"
	"cronchat/internal/repository"
	"cronchat/internal/store"
	"cronchat/internal/tasks"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const seedHistory = 20

func newLogger(env string) zerolog.Logger {
	if env == "production" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
}

func main() {
	logger := newLogger(os.Getenv("APP_ENV"))

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = newLogger(cfg.Env).With().Str("instance", cfg.InstanceID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis backs both the latest-message store and the redis relay.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rdb.Close()
		logger.Info().Msg("connected to Redis")
	}

	var latest store.LatestStore = store.NewMemoryStore()
	if rdb != nil {
		latest = store.NewRedisStore(rdb, cfg.PubSubChannel)
	}

	archive, err := openArchive(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("archive setup failed")
	}
	if archive != nil {
		defer archive.Close()
	}

	hub := chat.NewHub(logger)
	if archive != nil {
		recent, err := archive.Recent(ctx, seedHistory)
		if err != nil {
			logger.Warn().Err(err).Msg("could not seed history from archive")
		} else {
			hub.Seed(recent)
		}
	}
	go hub.Run()

	var rel relay.Relay
	switch cfg.Transport {
	case config.TransportRedis:
		rel = relay.NewRedis(rdb, cfg.PubSubChannel, cfg.InstanceID, hub, logger)
	default:
		rel = relay.NewLocal(hub, logger)
	}

	relayCtx, cancelRelay := context.WithCancel(context.Background())
	var relayDone sync.WaitGroup
	relayDone.Add(1)
	go func() {
		defer relayDone.Done()
		if err := rel.Run(relayCtx); err != nil {
			logger.Error().Err(err).Str("relay", rel.Name()).Msg("relay stopped")
		}
	}()

	svc := messaging.NewService(latest, archive, rel, logger)

	bot, err := tasks.NewBotScheduler(svc, cfg.BotSchedule, cfg.BotSender, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid bot schedule")
	}
	if cfg.BotAutostart {
		if _, err := bot.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start bot")
		}
	}

	var pruner *tasks.ArchivePruner
	if archive != nil {
		pruner = tasks.NewArchivePruner(archive, cfg.ArchiveRetention, logger)
		if err := pruner.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start archive pruner")
		}
	}

	checks := map[string]api.Pinger{"latest": latest, "archive": nil, "relay": rel}
	if archive != nil {
		checks["archive"] = archive
	}

	router := api.NewRouter(logger, api.Deps{
		Service:        svc,
		Hub:            hub,
		Bot:            bot,
		AuthKey:        []byte(cfg.AuthKey),
		AllowedOrigins: cfg.AllowedOrigins,
		AppEnv:         cfg.Env,
		Health: api.HealthDeps{
			Instance: cfg.InstanceID,
			Relay:    rel.Name(),
			Online:   func() int { return len(hub.Online()) },
			Checks:   checks,
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("relay", rel.Name()).
			Msg("starting chat server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server...")

	lc := lifecycle{
		server: srv,
		bot:    bot,
		stopRelay: func() {
			cancelRelay()
			relayDone.Wait()
		},
		hub:    hub,
		logger: logger,
	}
	if pruner != nil {
		lc.pruner = pruner
	}
	lc.shutdown(10 * time.Second)

	logger.Info().Msg("server stopped")
}

type lifecycle struct {
	server interface {
		Shutdown(ctx context.Context) error
	}
	bot interface{ Stop() bool }
	// pruner is nil without an archive.
	pruner    interface{ Stop() }
	stopRelay func()
	hub       interface{ Close() }
	logger    zerolog.Logger
}

// shutdown drains HTTP first so no request can restart the bot after it is
// stopped, then stops background work and closes the sockets.
func (l lifecycle) shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := l.server.Shutdown(ctx); err != nil {
		l.logger.Error().Err(err).Msg("server forced to shutdown")
	}

	l.bot.Stop()
	if l.pruner != nil {
		l.pruner.Stop()
	}

	l.stopRelay()
	l.hub.Close()
}

// openArchive returns nil when neither DATABASE_URL nor SQLITE_PATH is set.
func openArchive(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.MessageRepo, error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, err
		}
		repo := repository.NewPostgresMessagesRepo(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().
			Str("database", config.MaskDSN(cfg.DatabaseURL)).
			Int32("max_conns", cfg.DBMaxConns).
			Msg("connected to PostgreSQL archive")
		return repo, nil

	case cfg.SQLitePath != "":
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo := repository.NewSQLiteMessagesRepo(conn)
		if err := repo.Migrate(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite archive")
		return repo, nil
	}

	logger.Info().Msg("no archive configured, history is in-memory only")
	return nil, nil
}
