package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"conference-webapp/auth"
	"conference-webapp/config"
	"conference-webapp/handlers"
	"conference-webapp/logger"
	"conference-webapp/metrics"
	"conference-webapp/middleware"
	"conference-webapp/photo"
	"conference-webapp/repository"
	"conference-webapp/router"
)

const shutdownTimeout = 10 * time.Second

func NewServeCmd() *cobra.Command {
	var (
		addr    string
		localDB string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Configuration is read from the environment;
SESSION_SECRET_KEY is required. Without MONGODB_CONNSTRING the service
stores its data in a local JSON file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}
			if cmd.Flags().Changed("local-db") {
				cfg.LocalDBPath = localDB
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides LISTEN_ADDR)")
	cmd.Flags().StringVar(&localDB, "local-db", "", "local database file (overrides LOCAL_DB_PATH)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	hasher, err := auth.NewHasher(cfg.PasswordPepper)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokens(cfg.SessionSecret)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, &cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			log.Warn("closing database", zap.Error(err))
		}
	}()

	var photos photo.Lookup = photo.Noop{}
	if cfg.PexelsAPIKey != "" {
		photos = photo.NewPexels(cfg.PexelsAPIKey, cfg.PhotoCacheTTL, photo.WithLogger(log))
	} else {
		log.Info("PEXELS_API_KEY not set, new locations get no picture")
	}

	m := metrics.New()
	repo := repository.New(store, repository.WithLogger(log), repository.WithMetrics(m))

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	router.SetupRoutes(app,
		handlers.New(repo, hasher, tokens, photos),
		middleware.Session(tokens, m),
		router.Options{CORSOrigins: cfg.CORSOrigins, Metrics: m.Handler(), AccessLog: true})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		return app.Listen(cfg.ListenAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
