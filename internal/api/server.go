// Package api exposes stored history and risk state over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"perp-risk-monitor/internal/domain"
	"perp-risk-monitor/internal/observability"
	"perp-risk-monitor/internal/query"
	"perp-risk-monitor/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultWindow     = 24 * time.Hour
	defaultResolution = time.Minute
)

// MarketSource serves live listed-market info. Nil disables the
// markets endpoint.
type MarketSource interface {
	Markets(ctx context.Context) ([]domain.MarketInfo, error)
}

// Server wires query handlers onto a mux router.
type Server struct {
	queries *query.Service
	markets MarketSource
	logger  *zap.Logger
	router  *mux.Router
}

// NewServer creates the HTTP API over the given query service.
func NewServer(queries *query.Service, markets MarketSource, logger *zap.Logger) *Server {
	s := &Server{
		queries: queries,
		markets: markets,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/positions/open", s.handleOpenPositions).Methods(http.MethodGet)
	api.HandleFunc("/positions/history", s.handlePositionHistory).Methods(http.MethodGet)
	api.HandleFunc("/metrics/history", s.handleMetricsHistory).Methods(http.MethodGet)
	api.HandleFunc("/pnl/realized", s.handleRealizedPnl).Methods(http.MethodGet)
	if s.markets != nil {
		api.HandleFunc("/markets", s.handleMarkets).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleOpenPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.queries.GetOpenPositions(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		s.writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handlePositionHistory(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r, defaultWindow)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	resolution, err := parseDurationParam(r, "resolution", defaultResolution)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	points, err := s.queries.GetReconciledHistory(r.Context(), window, resolution)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r, defaultWindow)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	points, err := s.queries.GetMetricsHistory(r.Context(), window)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleRealizedPnl(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r, defaultWindow)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	total, err := s.queries.GetTotalRealizedPnl(r.Context(), window)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"window":       window.String(),
		"realized_pnl": total.String(),
	})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.markets.Markets(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, markets)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseWindow reads the ?window= query parameter as a Go duration.
func parseWindow(r *http.Request, fallback time.Duration) (time.Duration, error) {
	return parseDurationParam(r, "window", fallback)
}

func parseDurationParam(r *http.Request, name string, fallback time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("invalid " + name + " duration: " + raw)
	}
	if d <= 0 {
		return 0, errors.New(name + " must be positive")
	}
	return d, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
