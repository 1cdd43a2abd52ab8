package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"switchBotTrade/internal/config"
	"switchBotTrade/internal/logging"
	"switchBotTrade/internal/notify"
	"switchBotTrade/internal/service"
	"switchBotTrade/internal/storage"
	"switchBotTrade/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath string
		dbPath  string
		dryRun  bool
	)
	flag.StringVar(&cfgPath, "config", "", "optional YAML config file")
	flag.StringVar(&dbPath, "db", "", "sqlite file remembering past signals (needed for -holding auto)")
	flag.BoolVar(&dryRun, "dry-run", false, "print the signal without posting it")
	flag.String("ticker_a", "", "ticker A (e.g. VFV.TO)")
	flag.String("ticker_b", "", "ticker B (e.g. VEQT.TO)")
	flag.String("label_a", "", "label for A")
	flag.String("label_b", "", "label for B")
	flag.String("holding", "", "what you hold now: A | B | auto")
	flag.Float64("delta_bps", 0, "hysteresis in bps")
	flag.Bool("guard", false, "only run inside the configured window after the open")
	flag.Int("retries", 0, "attempts to read today's open")
	flag.Int("delay", 0, "seconds between attempts")
	flag.String("webhook", "", "Discord webhook URL")
	flag.String("log-level", "", "debug | info | warn | error")
	flag.Parse()

	if err := config.LoadDotEnvIfPresent(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	log := logging.New(cfg.Log.Level).WithField("component", "signal")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := service.NewProvider(cfg.Data, log)
	if err != nil {
		return err
	}
	var store service.SignalStore
	if dbPath != "" {
		db, err := storage.OpenFile(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		store = storage.NewStore(db)
	} else if _, ok := cfg.SignalHolding(); !ok {
		log.Warn("signal: holding is auto but no -db given, assuming A")
	}

	var sender notify.Sender
	if !dryRun {
		if sender, err = senders(cfg, log); err != nil {
			return err
		}
	}

	req := service.SignalRequestFromConfig(cfg)
	req.Notify = !dryRun
	out, err := service.NewSignaler(provider, store, sender, log).Evaluate(ctx, req)
	if errors.Is(err, service.ErrOutsideWindow) {
		log.Debug("signal: outside the window, nothing to do")
		return nil
	}
	if out != nil {
		fmt.Println(out.Message)
	}
	return err
}

// senders builds the configured destinations. Discord is required unless Telegram is set.
func senders(cfg *config.Config, log logrus.FieldLogger) (notify.Sender, error) {
	var out notify.Multi
	if cfg.Notify.DiscordWebhookURL != "" {
		out = append(out, notify.NewDiscord(cfg.Notify.DiscordWebhookURL, nil))
	}
	if cfg.Bot.TelegramToken != "" && cfg.Notify.TelegramChatID != 0 {
		n, err := telegram.NewNotifierFromToken(cfg.Bot.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("DISCORD_WEBHOOK_URL not set (or -webhook not provided)")
	}
	log.Debugf("signal: posting to %d destination(s)", len(out))
	return out, nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cfg *config.Config) error {
	var err error
	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "ticker_a":
			cfg.Signal.TickerA = v
		case "ticker_b":
			cfg.Signal.TickerB = v
		case "label_a":
			cfg.Signal.LabelA = v
		case "label_b":
			cfg.Signal.LabelB = v
		case "holding":
			cfg.Signal.Holding = v
		case "delta_bps":
			cfg.Signal.DeltaBps, err = strconv.ParseFloat(v, 64)
		case "guard":
			cfg.Signal.TimeGuard, err = strconv.ParseBool(v)
		case "retries":
			cfg.Signal.OpenRetries, err = strconv.Atoi(v)
		case "delay":
			cfg.Signal.OpenRetryDelaySec, err = strconv.Atoi(v)
		case "webhook":
			cfg.Notify.DiscordWebhookURL = v
		case "log-level":
			cfg.Log.Level = v
		}
	})
	return err
}
