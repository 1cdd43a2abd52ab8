package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"switchBotTrade/internal/finance"
	"switchBotTrade/internal/logging"
	"switchBotTrade/internal/service"
	"switchBotTrade/internal/storage"
)

// RunReader reads persisted backtests
type RunReader interface {
	Load(id string) (storage.Run, error)
	Recent(limit int) ([]storage.RunSummary, error)
}

type Server struct {
	router  *chi.Mux
	runs    RunReader
	charts  *finance.ChartCache
	webhook http.HandlerFunc
	log     logrus.FieldLogger
}

// NewServer builds the router. webhook may be nil when the bot is disabled.
func NewServer(runs RunReader, charts *finance.ChartCache, webhook http.HandlerFunc, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	if charts == nil {
		charts = finance.NewChartCache(0)
	}
	s := &Server{router: chi.NewRouter(), runs: runs, charts: charts, webhook: webhook, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	if s.webhook != nil {
		s.router.Post("/telegram/webhook", s.webhook)
	}
	s.router.Get("/runs", s.handleListRuns)
	s.router.Get("/runs/{id}", s.handleGetRun)
	s.router.Get("/runs/{id}/chart.png", s.handleRunChart)
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then drains for up to ten seconds.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("http: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.runs.Recent(limit)
	if err != nil {
		s.log.WithError(err).Error("http: listing runs failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	views := make([]summaryView, 0, len(runs))
	for _, run := range runs {
		views = append(views, toSummaryView(run))
	}
	s.writeJSON(w, views)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	s.writeJSON(w, toRunView(run))
}

func (s *Server) handleRunChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	img, err := s.charts.GetOrRender(id, func() ([]byte, error) {
		run, err := s.runs.Load(id)
		if err != nil {
			return nil, err
		}
		return finance.RenderEquityChart(service.ChartOf(run))
	})
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("run_id", id).Error("http: chart failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Write(img)
}

func (s *Server) loadRun(w http.ResponseWriter, id string) (storage.Run, bool) {
	run, err := s.runs.Load(id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return run, false
	}
	if err != nil {
		s.log.WithError(err).WithField("run_id", id).Error("http: loading run failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return run, false
	}
	return run, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("http: encoding response failed")
	}
}
