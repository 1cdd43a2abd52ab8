package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"switchBotTrade/internal/config"
	"switchBotTrade/internal/finance"
	"switchBotTrade/internal/logging"
	"switchBotTrade/internal/report"
	"switchBotTrade/internal/service"
	"switchBotTrade/internal/storage"
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
		noPlot  bool
	)
	flag.StringVar(&cfgPath, "config", "", "optional YAML config file")
	flag.StringVar(&dbPath, "db", "", "optional sqlite file to persist the run")
	flag.BoolVar(&noPlot, "no-plot", false, "do not render the equity chart")
	flag.String("start", "", "start date (YYYY-MM-DD)")
	flag.String("end", "", "end date (YYYY-MM-DD, inclusive)")
	flag.String("ticker1", "", "first ticker (initially held)")
	flag.String("ticker2", "", "second ticker")
	flag.Int64("shares1", 0, "initial shares of ticker1")
	flag.Int64("shares2", 0, "initial shares of ticker2")
	flag.Float64("cash", 0, "initial cash")
	flag.Float64("hysteresis_bps", 0, "switch only if the other asset's overnight return beats the held one by more than this")
	flag.Int("cooldown", 0, "minimum calendar days between switches")
	flag.Float64("fee_bps", 0, "fee per leg in bps of notional")
	flag.Float64("slippage_bps", 0, "adverse slippage per leg in bps")
	flag.Float64("risk_free", 0, "annual risk-free rate for Sharpe")
	flag.String("export_csv", "", "write daily results to this CSV")
	flag.String("switches_csv", "", "write executed switches to this CSV")
	flag.String("chart", "", "write the equity chart PNG here")
	flag.String("provider", "", "market data provider: yahoo | alpaca")
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
	log := logging.New(cfg.Log.Level).WithField("component", "backtest")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := service.NewProvider(cfg.Data, log)
	if err != nil {
		return err
	}
	var store service.RunStore
	if dbPath != "" {
		db, err := storage.OpenFile(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Infof("db: opened sqlite at %s", dbPath)
		store = storage.NewStore(db)
	}

	req, err := service.RequestFromConfig(cfg)
	if err != nil {
		return err
	}
	rep, err := service.NewBacktester(provider, store, log).Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(rep.Summary)

	if path := cfg.Output.ExportCSV; path != "" {
		if err := writeFile(path, func(f *os.File) error { return report.WriteCSV(f, rep.Run.Result.Rows) }); err != nil {
			return err
		}
		fmt.Printf("Saved daily results → %s\n", path)
	}
	if path := cfg.Output.SwitchesCSV; path != "" {
		if err := writeFile(path, func(f *os.File) error {
			return report.WriteSwitchesCSV(f, rep.Run.Ticker1, rep.Run.Ticker2, rep.Run.Result.Switches)
		}); err != nil {
			return err
		}
		fmt.Printf("Saved switches → %s\n", path)
	}
	if path := cfg.Output.Chart; path != "" && !noPlot {
		img, err := finance.RenderEquityChart(rep.Chart())
		if err != nil {
			return fmt.Errorf("chart: %w", err)
		}
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return err
		}
		fmt.Printf("Saved chart → %s\n", path)
	}
	if store != nil {
		fmt.Printf("Run id: %s\n", rep.Run.ID)
	}
	return nil
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
		case "start":
			cfg.Backtest.Start = v
		case "end":
			cfg.Backtest.End = v
		case "ticker1":
			cfg.Backtest.Ticker1 = v
		case "ticker2":
			cfg.Backtest.Ticker2 = v
		case "shares1":
			cfg.Backtest.Shares1, err = strconv.ParseInt(v, 10, 64)
		case "shares2":
			cfg.Backtest.Shares2, err = strconv.ParseInt(v, 10, 64)
		case "cash":
			cfg.Backtest.Cash, err = strconv.ParseFloat(v, 64)
		case "hysteresis_bps":
			cfg.Trade.HysteresisBps, err = strconv.ParseFloat(v, 64)
		case "cooldown":
			cfg.Trade.CooldownDays, err = strconv.Atoi(v)
		case "fee_bps":
			cfg.Trade.FeeBps, err = strconv.ParseFloat(v, 64)
		case "slippage_bps":
			cfg.Trade.SlippageBps, err = strconv.ParseFloat(v, 64)
		case "risk_free":
			cfg.Trade.RiskFree, err = strconv.ParseFloat(v, 64)
		case "export_csv":
			cfg.Output.ExportCSV = v
		case "switches_csv":
			cfg.Output.SwitchesCSV = v
		case "chart":
			cfg.Output.Chart = v
		case "provider":
			cfg.Data.Provider = v
		case "log-level":
			cfg.Log.Level = v
		}
	})
	return err
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
