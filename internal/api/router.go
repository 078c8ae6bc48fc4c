// Package api exposes the HTTP surface of the arena server: health, the
// leaderboard, per-account stats and balances, room listings and the
// WebSocket endpoint.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/udisondev/zombiearena/internal/game/room"
	"github.com/udisondev/zombiearena/internal/ledger"
	"github.com/udisondev/zombiearena/internal/model"
)

// Limits for list endpoints.
const (
	DefaultLeaderboardLimit = 10
	DefaultHistoryLimit     = 50
	MaxListLimit            = 100
)

// StatsReader serves aggregated round statistics.
type StatsReader interface {
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	PlayerStats(ctx context.Context, account string) (*model.PlayerStats, error)
}

// LedgerReader serves balances and ledger history.
type LedgerReader interface {
	Balance(ctx context.Context, account string) (int64, error)
	History(ctx context.Context, account string, limit int) ([]ledger.Entry, error)
}

// RoomLister lists live rooms.
type RoomLister interface {
	List() []room.Info
}

// SettlementMonitor reports settlement queue counters.
type SettlementMonitor interface {
	Stats() ledger.Stats
	Pending() int
}

// Deps wires the router. Stats, Settlements and Ready are optional.
type Deps struct {
	Stats       StatsReader
	Ledger      LedgerReader
	Rooms       RoomLister
	Settlements SettlementMonitor
	WS          http.Handler
	Ready       func(ctx context.Context) error
	Now         func() time.Time
}

type handler struct {
	deps Deps
}

// SetupRoutes configures all routes and returns the router.
func SetupRoutes(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handler{deps: deps}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", h.leaderboard)
		r.Get("/player/{account}", h.playerStats)
		r.Get("/balance/{account}", h.balance)
		r.Get("/history/{account}", h.history)
		r.Get("/rooms", h.rooms)
	})

	if deps.WS != nil {
		r.Handle("/ws", deps.WS)
	}

	return r
}

type healthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Settlements *settlementHealth `json:"settlements,omitempty"`
}

type settlementHealth struct {
	ledger.Stats
	Pending int `json:"pending"`
}

// health handles GET /health
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Timestamp: h.deps.Now().UTC()}
	if h.deps.Settlements != nil {
		resp.Settlements = &settlementHealth{
			Stats:   h.deps.Settlements.Stats(),
			Pending: h.deps.Settlements.Pending(),
		}
	}
	if h.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Ready(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			resp.Status = "degraded"
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// leaderboard handles GET /api/leaderboard?limit=N
func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if h.deps.Stats == nil {
		respondError(w, http.StatusServiceUnavailable, "stats unavailable")
		return
	}
	limit, ok := parseLimit(r, DefaultLeaderboardLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	entries, err := h.deps.Stats.Leaderboard(r.Context(), limit)
	if err != nil {
		slog.Error("leaderboard query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// playerStats handles GET /api/player/{account}
func (h *handler) playerStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Stats == nil {
		respondError(w, http.StatusServiceUnavailable, "stats unavailable")
		return
	}
	account := chi.URLParam(r, "account")

	stats, err := h.deps.Stats.PlayerStats(r.Context(), account)
	if err != nil {
		slog.Error("player stats query failed", "account", account, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load player stats")
		return
	}
	if stats == nil {
		respondError(w, http.StatusNotFound, "player not found")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// balance handles GET /api/balance/{account}
func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	balance, err := h.deps.Ledger.Balance(r.Context(), account)
	if err != nil {
		slog.Error("balance query failed", "account", account, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load balance")
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{Account: account, Balance: balance})
}

// history handles GET /api/history/{account}?limit=N
func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	limit, ok := parseLimit(r, DefaultHistoryLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	entries, err := h.deps.Ledger.History(r.Context(), account, limit)
	if err != nil {
		slog.Error("history query failed", "account", account, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// rooms handles GET /api/rooms
func (h *handler) rooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.deps.Rooms.List())
}

// parseLimit reads ?limit, clamped to MaxListLimit. Returns false on garbage.
func parseLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, MaxListLimit), true
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
