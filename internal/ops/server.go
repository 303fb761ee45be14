// Package ops serves the operational HTTP surface: health, open positions,
// and Prometheus metrics.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"tendbot/internal/metrics"
	"tendbot/ledger"
)

type Server struct {
	book    *ledger.Ledger
	metrics *metrics.Registry
	router  *mux.Router
	log     zerolog.Logger
	started time.Time
}

func NewServer(book *ledger.Ledger, reg *metrics.Registry, log zerolog.Logger) *Server {
	s := &Server{
		book:    book,
		metrics: reg,
		router:  mux.NewRouter(),
		log:     log.With().Str("component", "ops").Logger(),
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/positions", s.handlePositions).Methods("GET")
	s.router.HandleFunc("/positions/{id}", s.handlePosition).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
}

// Handler exposes the routed mux, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("ops server listening")

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// PositionView is the wire form of one tracked position.
type PositionView struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	State         string    `json:"state"`
	Confidence    string    `json:"confidence"`
	SizeOpened    float64   `json:"size_opened"`
	SizeRemaining float64   `json:"size_remaining"`
	EntryPrice    float64   `json:"entry_price"`
	TargetPrice   float64   `json:"target_price"`
	StopLoss      float64   `json:"stop_loss"`
	EntryTime     time.Time `json:"entry_time"`
	TimeWarned    bool      `json:"time_warned"`
	PartialPnL    float64   `json:"partial_pnl"`
	RealizedPnL   float64   `json:"realized_pnl"`
}

func viewOf(p ledger.Position) PositionView {
	return PositionView{
		ID:            p.ID,
		Symbol:        p.Candidate.Symbol,
		Side:          p.Candidate.Side.String(),
		State:         p.State.String(),
		Confidence:    p.Candidate.Confidence.String(),
		SizeOpened:    p.SizeOpened,
		SizeRemaining: p.SizeRemaining,
		EntryPrice:    p.Candidate.EntryPrice,
		TargetPrice:   p.Candidate.TargetPrice,
		StopLoss:      p.StopLoss,
		EntryTime:     p.EntryTime,
		TimeWarned:    p.TimeWarned,
		PartialPnL:    p.RealizedPnLPartial,
		RealizedPnL:   p.RealizedPnL,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, map[string]any{
		"status":         "ok",
		"uptime":         time.Since(s.started).Round(time.Second).String(),
		"open_positions": len(s.book.AllOpen()),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	open := s.book.AllOpen()
	views := make([]PositionView, len(open))
	for i, p := range open {
		views[i] = viewOf(p)
	}
	respondJSON(w, views)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := s.book.Get(id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respondError(w, http.StatusNotFound, "position not found", id)
			return
		}
		respondError(w, http.StatusInternalServerError, "lookup failed", err.Error())
		return
	}
	respondJSON(w, viewOf(p))
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errText, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errText, Message: message})
}
