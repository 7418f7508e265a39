package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"tensionmonitor/internal/alert"
	"tensionmonitor/internal/config"
	"tensionmonitor/internal/fetcher"
	"tensionmonitor/internal/infrastructure/gnews"
	"tensionmonitor/internal/infrastructure/llm"
	"tensionmonitor/internal/infrastructure/newsapi"
	"tensionmonitor/internal/infrastructure/scheduler"
	"tensionmonitor/internal/infrastructure/storage"
	"tensionmonitor/internal/infrastructure/telegram"
	"tensionmonitor/internal/logging"
	"tensionmonitor/internal/ports"
	"tensionmonitor/internal/usecase"
)

const providerTimeout = 10 * time.Second

// Application wires configuration to adapters, the ingestion cycle, and its
// scheduler.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	scheduler *usecase.Scheduler
}

// New connects the database, applies the schema, and assembles the cycle.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	repo := storage.NewPostgresRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	providers := []ports.SearchProvider{
		newsapi.NewClient(cfg.Providers.NewsAPI.BaseURL, cfg.Providers.NewsAPI.APIKey, providerTimeout),
		gnews.NewClient(cfg.Providers.GNews.BaseURL, cfg.Providers.GNews.APIKey, providerTimeout),
	}
	source := fetcher.New(providers, cfg.Keywords, baseLogger.With("component", "fetcher"))

	gateway := llm.NewGateway(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model)

	var notifier ports.Notifier
	if token := cfg.Notifications.Telegram.BotToken; token != "" {
		bot, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			baseLogger.Warn("telegram bot unavailable, alerts will only be persisted", "error", err)
		} else {
			notifier = telegram.NewNotifier(bot)
		}
	}

	dispatcher := alert.NewDispatcher(repo, notifier,
		cfg.Notifications.Telegram.ChannelID, baseLogger.With("component", "alerts"))

	cycle := usecase.NewCycle(usecase.CycleDeps{
		Source:     source,
		Repository: repo,
		Classifier: gateway,
		Translator: gateway,
		Dispatcher: dispatcher,
		Logger:     baseLogger.With("component", "cycle"),
	})

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval)

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		scheduler: usecase.NewScheduler(driver, cycle),
	}, nil
}

// Run starts the scheduler (which fires the first cycle immediately) and
// blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.logger.Info("monitor running", "interval", a.cfg.Scheduler.Interval)
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler stop failed", "error", err)
	}

	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", "error", err)
	}

	return nil
}
