package telegram

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"switchBotTrade/internal/backtest"
	"switchBotTrade/internal/config"
	"switchBotTrade/internal/finance"
	"switchBotTrade/internal/logging"
	"switchBotTrade/internal/service"
)

var (
	// /backtest T1 T2 [start] [end] [hysteresis_bps] [cooldown_days]
	reBacktest = regexp.MustCompile(`^/backtest(?:@[\w_]+)?\s+([A-Za-z0-9\.^_=+-]+)\s+([A-Za-z0-9\.^_=+-]+)(?:\s+(\d{4}-\d{2}-\d{2}))?(?:\s+(\d{4}-\d{2}-\d{2}))?(?:\s+(\d+(?:\.\d+)?))?(?:\s+(\d+))?$`)
	// /signal T1 T2 [A|B] [delta_bps]
	reSignal = regexp.MustCompile(`^/signal(?:@[\w_]+)?\s+([A-Za-z0-9\.^_=+-]+)\s+([A-Za-z0-9\.^_=+-]+)(?:\s+([ABab]))?(?:\s+(\d+(?:\.\d+)?))?$`)
	// /pair T1 T2 [start] [end]
	rePair = regexp.MustCompile(`^/pair(?:@[\w_]+)?\s+([A-Za-z0-9\.^_=+-]+)\s+([A-Za-z0-9\.^_=+-]+)(?:\s+(\d{4}-\d{2}-\d{2}))?(?:\s+(\d{4}-\d{2}-\d{2}))?$`)
	// /runs [n]
	reRuns = regexp.MustCompile(`^/runs(?:@[\w_]+)?(?:\s+(\d+))?$`)
	// /help
	reHelp = regexp.MustCompile(`^/(help|start)(?:@[\w_]+)?$`)
)

const dateLayout = "2006-01-02"

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Commenter adds a narrative to a backtest summary
type Commenter interface {
	Comment(ctx context.Context, summary string) (string, error)
}

// Deps are the services the handlers call into
type Deps struct {
	Backtester *service.Backtester
	Signaler   *service.Signaler
	Provider   finance.Provider
	Charts     *finance.ChartCache
	Commenter  Commenter // optional
	Config     *config.Config
	Log        logrus.FieldLogger
}

type Handlers struct {
	api       sender
	backtests *service.Backtester
	signals   *service.Signaler
	provider  finance.Provider
	charts    *finance.ChartCache
	comment   Commenter
	cfg       *config.Config
	log       logrus.FieldLogger
	timeout   time.Duration
}

func NewHandlers(api sender, deps Deps) *Handlers {
	h := &Handlers{
		api:       api,
		backtests: deps.Backtester,
		signals:   deps.Signaler,
		provider:  deps.Provider,
		charts:    deps.Charts,
		comment:   deps.Commenter,
		cfg:       deps.Config,
		log:       deps.Log,
		timeout:   90 * time.Second,
	}
	if h.log == nil {
		h.log = logging.Discard()
	}
	if h.charts == nil {
		h.charts = finance.NewChartCache(0)
	}
	if h.cfg == nil {
		def := config.Default()
		h.cfg = &def
	}
	return h
}

func (h *Handlers) HandleMessage(m *tgbotapi.Message) {
	txt := strings.TrimSpace(m.Text)
	chatID := m.Chat.ID
	switch {
	case reBacktest.MatchString(txt):
		req, err := parseBacktest(reBacktest.FindStringSubmatch(txt), h.cfg)
		if err != nil {
			h.reply(chatID, "Usage: /backtest T1 T2 [start] [end] [hysteresis_bps] [cooldown_days]\n"+err.Error())
			return
		}
		h.handleBacktest(chatID, req)

	case reSignal.MatchString(txt):
		req, err := parseSignal(reSignal.FindStringSubmatch(txt), h.cfg)
		if err != nil {
			h.reply(chatID, err.Error())
			return
		}
		h.handleSignal(chatID, req)

	case rePair.MatchString(txt):
		g := rePair.FindStringSubmatch(txt)
		start, end, err := parseRange(g[3], g[4], h.cfg)
		if err != nil {
			h.reply(chatID, err.Error())
			return
		}
		h.handlePair(chatID, strings.ToUpper(g[1]), strings.ToUpper(g[2]), start, end)

	case reRuns.MatchString(txt):
		n := 10
		if g := reRuns.FindStringSubmatch(txt); g[1] != "" {
			n, _ = strconv.Atoi(g[1])
			if n < 1 {
				n = 1
			}
			if n > 50 {
				n = 50
			}
		}
		h.handleRuns(chatID, n)

	case reHelp.MatchString(txt):
		h.handleHelp(chatID)
	}
}

// parseRange fills missing dates from the configured backtest range.
func parseRange(startStr, endStr string, cfg *config.Config) (time.Time, time.Time, error) {
	start, end, err := cfg.Range()
	if err != nil {
		return start, end, err
	}
	if startStr != "" {
		if start, err = time.Parse(dateLayout, startStr); err != nil {
			return start, end, fmt.Errorf("start must be YYYY-MM-DD")
		}
	}
	if endStr != "" {
		if end, err = time.Parse(dateLayout, endStr); err != nil {
			return start, end, fmt.Errorf("end must be YYYY-MM-DD")
		}
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end %s is before start %s", end.Format(dateLayout), start.Format(dateLayout))
	}
	return start, end, nil
}

func parseBacktest(g []string, cfg *config.Config) (service.Request, error) {
	req, err := service.RequestFromConfig(cfg)
	if err != nil {
		return req, err
	}
	req.Ticker1, req.Ticker2 = strings.ToUpper(g[1]), strings.ToUpper(g[2])
	if req.Start, req.End, err = parseRange(g[3], g[4], cfg); err != nil {
		return req, err
	}
	if g[5] != "" {
		if req.Trade.HysteresisBps, err = strconv.ParseFloat(g[5], 64); err != nil {
			return req, err
		}
	}
	if g[6] != "" {
		if req.Trade.CooldownDays, err = strconv.Atoi(g[6]); err != nil {
			return req, err
		}
	}
	return req, nil
}

func parseSignal(g []string, cfg *config.Config) (service.SignalRequest, error) {
	req := service.SignalRequestFromConfig(cfg)
	req.TickerA, req.TickerB = strings.ToUpper(g[1]), strings.ToUpper(g[2])
	req.LabelA, req.LabelB = req.TickerA, req.TickerB
	if req.TickerA == req.TickerB {
		return req, errors.New("tickers must differ")
	}
	switch strings.ToUpper(g[3]) {
	case "A":
		req.Holding = backtest.Asset1
	case "B":
		req.Holding = backtest.Asset2
	default:
		// the configured holding only applies to the configured pair
		req.Holding = backtest.Asset1
	}
	if g[4] != "" {
		d, err := strconv.ParseFloat(g[4], 64)
		if err != nil {
			return req, err
		}
		req.DeltaBps = d
	}
	// interactive: no time guard, no broadcast, no waiting for the open
	req.Guard = nil
	req.Notify = false
	req.Retries = 1
	return req, nil
}

func (h *Handlers) handleBacktest(chatID int64, req service.Request) {
	if h.backtests == nil {
		h.reply(chatID, "Backtests are not available.")
		return
	}
	h.reply(chatID, fmt.Sprintf("Backtesting %s vs %s from %s to %s…", req.Ticker1, req.Ticker2,
		req.Start.Format(dateLayout), req.End.Format(dateLayout)))
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	rep, err := h.backtests.Run(ctx, req)
	if err != nil {
		h.reply(chatID, "Backtest failed: "+err.Error())
		return
	}
	img, err := h.charts.GetOrRender(rep.Run.ID, func() ([]byte, error) { return finance.RenderEquityChart(rep.Chart()) })
	if err != nil {
		h.log.WithError(err).Warn("telegram: chart render failed")
	} else {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: req.Ticker1 + "_" + req.Ticker2 + ".png", Bytes: img})
		photo.Caption = fmt.Sprintf("%s vs %s • run %s", req.Ticker1, req.Ticker2, shortID(rep.Run.ID))
		h.send(photo)
	}
	h.reply(chatID, rep.Summary)

	if h.comment == nil {
		return
	}
	out, err := h.comment.Comment(ctx, rep.Summary)
	if err != nil {
		h.log.WithError(err).Warn("telegram: commentary failed")
		return
	}
	msg := tgbotapi.NewMessage(chatID, out)
	msg.ParseMode = "Markdown"
	h.send(msg)
}

func (h *Handlers) handleSignal(chatID int64, req service.SignalRequest) {
	if h.signals == nil {
		h.reply(chatID, "Signals are not available.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	out, err := h.signals.Evaluate(ctx, req)
	if err != nil {
		if errors.Is(err, finance.ErrNotAvailable) {
			h.reply(chatID, "Today's open is not available yet for "+req.TickerA+" / "+req.TickerB+".")
			return
		}
		h.reply(chatID, "Signal failed: "+err.Error())
		return
	}
	h.reply(chatID, out.Message)
}

func (h *Handlers) handlePair(chatID int64, t1, t2 string, start, end time.Time) {
	if h.provider == nil {
		h.reply(chatID, "Market data is not available.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	pair, err := finance.FetchPair(ctx, h.provider, t1, t2, start, end)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Couldn’t fetch %s/%s: %v", t1, t2, err))
		return
	}
	table, err := backtest.AlignTwo(pair.Asset1, pair.Asset2)
	if err != nil {
		h.reply(chatID, "Pair failed: "+err.Error())
		return
	}
	img, err := finance.RenderIndexedPair(t1, t2, table)
	if err != nil {
		h.reply(chatID, "Indexed plot failed: "+err.Error())
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: t1 + "_" + t2 + "_indexed.png", Bytes: img})
	photo.Caption = fmt.Sprintf("Indexed: %s, %s • %s → %s", t1, t2, start.Format(dateLayout), end.Format(dateLayout))
	h.send(photo)
}

func (h *Handlers) handleRuns(chatID int64, n int) {
	if h.backtests == nil {
		h.reply(chatID, "No runs stored.")
		return
	}
	runs, err := h.backtests.Recent(n)
	if err != nil {
		h.reply(chatID, "Listing runs failed: "+err.Error())
		return
	}
	if len(runs) == 0 {
		h.reply(chatID, "No runs stored.")
		return
	}
	var b strings.Builder
	b.WriteString("Recent runs\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "\n%s %s/%s %s→%s switches %d | active $%s | passive $%s",
			shortID(r.ID), r.Ticker1, r.Ticker2, r.Start.Format(dateLayout), r.End.Format(dateLayout),
			r.SwitchCount, humanize.Comma(int64(math.Round(r.FinalActive))), humanize.Comma(int64(math.Round(r.FinalPassive))))
	}
	h.reply(chatID, b.String())
}

func (h *Handlers) handleHelp(chatID int64) {
	help := "Commands\n\n" +
		"- /backtest T1 T2 [start] [end] [hysteresis_bps] [cooldown_days] - Switching vs buy&hold backtest with chart\n" +
		"- /signal T1 T2 [A|B] [delta_bps] - Today's overnight-gap switch signal, holding A (T1) or B (T2)\n" +
		"- /pair T1 T2 [start] [end] - Both closes indexed to base 100\n" +
		"- /runs [n] - Recently stored backtests\n" +
		"\nDates are YYYY-MM-DD; defaults come from the server configuration."
	h.reply(chatID, help)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (h *Handlers) send(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		h.log.WithError(err).Warn("telegram: send failed")
	}
}

func (h *Handlers) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}
