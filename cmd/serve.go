package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/redhat-data-and-ai/hookbot/internal/config"
	"github.com/redhat-data-and-ai/hookbot/internal/delivery"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
	"github.com/redhat-data-and-ai/hookbot/internal/matrix"
	"github.com/redhat-data-and-ai/hookbot/internal/render"
	"github.com/redhat-data-and-ai/hookbot/internal/rooms"
	"github.com/redhat-data-and-ai/hookbot/internal/store"
	"github.com/redhat-data-and-ai/hookbot/internal/supervisor"
	"github.com/redhat-data-and-ai/hookbot/internal/webhook"
)

const serverShutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Receive GitLab webhooks and post them to Matrix",
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logging.InitLogger(cfg.LogLevel, "hookbot")
	logger := logging.GetLogger()
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.HasWebhookSecret() {
		logger.Warn("WEBHOOK_SECRET not set: only per-room hook tokens will be accepted")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messages, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer messages.Close()

	client, err := matrix.NewClient(matrix.ClientConfig{
		HomeserverURL:         cfg.Matrix.HomeserverURL,
		AccessToken:           cfg.Matrix.AccessToken,
		UserID:                cfg.Matrix.UserID,
		MaxConcurrentRequests: cfg.Matrix.MaxConcurrentRequests,
	})
	if err != nil {
		return err
	}
	botUserID, err := client.EnsureUserID(ctx)
	if err != nil {
		return err
	}

	joined := rooms.NewCache(client, cfg.Matrix.AutoJoin)
	if err := joined.Load(ctx); err != nil {
		return err
	}

	renderer := render.NewRenderer(render.Options{
		SendAsNotice: cfg.Messages.SendAsNotice,
		TimeFormat:   cfg.Messages.TimeFormat,
		HideDetails:  cfg.Messages.HideDetails,
	})
	processor := delivery.NewProcessor(renderer, messages, client)
	tasks := supervisor.New(cfg.Tasks.TaskTimeout)

	app := webhook.NewApp(cfg,
		webhook.NewHandler(cfg, botUserID, messages, joined, tasks, processor),
		webhook.NewHealthHandler(cfg, joined, messages, tasks),
		webhook.NewManagementHandler(cfg, tasks, joined, renderer),
	)

	logger.Info("Starting hookbot",
		zap.String("port", cfg.Server.Port),
		zap.String("webhook_path", cfg.Server.WebhookPath),
		zap.String("user_id", botUserID),
		zap.String("store_backend", cfg.StoreBackend()),
		zap.Int("joined_rooms", joined.Len()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(":" + cfg.Server.Port)
	})
	g.Go(func() error {
		return client.RunSync(gctx, joined.HandleMembership)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down, no longer accepting webhooks")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})
	runErr := g.Wait()

	abandoned := tasks.Shutdown(cfg.Tasks.ShutdownTimeout)
	logger.Info("Shutdown complete", zap.Int("abandoned_tasks", abandoned))
	return runErr
}

// openStore selects the message store. Postgres reads go through a
// ristretto cache when cache_max_cost is positive.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if !cfg.UsesDatabase() {
		return store.NewMemory(), nil
	}

	pg, err := store.OpenPostgres(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Database.CacheMaxCost <= 0 {
		return pg, nil
	}

	cached, err := store.NewCached(pg, cfg.Database.CacheMaxCost)
	if err != nil {
		pg.Close()
		return nil, err
	}
	return cached, nil
}
