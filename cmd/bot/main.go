package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"switchBotTrade/internal/config"
	"switchBotTrade/internal/finance"
	"switchBotTrade/internal/logging"
	"switchBotTrade/internal/openai"
	"switchBotTrade/internal/server"
	"switchBotTrade/internal/service"
	"switchBotTrade/internal/storage"
	"switchBotTrade/internal/telegram"
)

func main() {
	if err := config.LoadDotEnvIfPresent(".env"); err != nil {
		logging.New("info").Fatal(err)
	}
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logging.New("info").Fatal(err)
	}
	logger := logging.New(cfg.Log.Level)
	if err := cfg.RequireBot(); err != nil {
		logger.Fatal(err)
	}

	db, err := storage.OpenFile(cfg.Output.DBPath)
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()
	logger.Infof("db: opened sqlite at %s, schema ensured (runs, daily_results, switches, signals)", cfg.Output.DBPath)
	store := storage.NewStore(db)

	provider, err := service.NewProvider(cfg.Data, logger.WithField("component", "finance"))
	if err != nil {
		logger.Fatal(err)
	}
	charts := finance.NewChartCache(0)
	backtests := service.NewBacktester(provider, store, logger.WithField("component", "backtest"))
	deps := telegram.Deps{
		Backtester: backtests,
		Signaler:   service.NewSignaler(provider, store, nil, logger.WithField("component", "signal")),
		Provider:   provider,
		Charts:     charts,
		Config:     cfg,
		Log:        logger.WithField("component", "telegram"),
	}
	if cfg.Bot.OpenAIKey != "" {
		deps.Commenter = openai.NewCommentator(cfg.Bot.OpenAIKey, cfg.Bot.OpenAIModel)
	}

	tg, err := telegram.NewBot(cfg.Bot.TelegramToken, cfg.Bot.WebhookPublicURL, deps)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("telegram: bot initialized, webhook target %s", cfg.Bot.WebhookPublicURL)

	srv := server.NewServer(backtests, charts, tg.WebhookHandler, logger.WithField("component", "http"))
	addr := ":" + cfg.Bot.Port
	logger.Info("http: listening on ", addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.ListenAndServe(ctx, addr, srv.Handler(), logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("server error")
		os.Exit(1)
	}
}
