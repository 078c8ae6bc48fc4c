package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/udisondev/zombiearena/internal/auth"
	"github.com/udisondev/zombiearena/internal/game/room"
	"github.com/udisondev/zombiearena/internal/ledger"
	"github.com/udisondev/zombiearena/internal/model"
)

const defaultLedgerTimeout = 3 * time.Second

// StatsRecorder persists cleared-round summaries.
type StatsRecorder interface {
	SaveRoundStats(ctx context.Context, s model.RoundStats) error
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Rooms    *room.Manager
	Clients  *ClientManager
	Ledger   ledger.Store
	Verifier auth.Verifier
	Registry *auth.Registry
	Stats    StatsRecorder // optional

	MysteryBoxCost int
	LedgerTimeout  time.Duration
}

// Handler dispatches inbound client events.
type Handler struct {
	rooms    *room.Manager
	clients  *ClientManager
	ledger   ledger.Store
	verifier auth.Verifier
	registry *auth.Registry
	stats    StatsRecorder

	mysteryBoxCost int
	ledgerTimeout  time.Duration
}

// NewHandler creates a new event handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Registry == nil {
		cfg.Registry = auth.NewRegistry()
	}
	if cfg.MysteryBoxCost <= 0 {
		cfg.MysteryBoxCost = room.DefaultMysteryBoxCost
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = defaultLedgerTimeout
	}
	return &Handler{
		rooms:          cfg.Rooms,
		clients:        cfg.Clients,
		ledger:         cfg.Ledger,
		verifier:       cfg.Verifier,
		registry:       cfg.Registry,
		stats:          cfg.Stats,
		mysteryBoxCost: cfg.MysteryBoxCost,
		ledgerTimeout:  cfg.LedgerTimeout,
	}
}

// HandleMessage decodes one frame and dispatches it by type. Malformed frames
// and unknown types are answered with an error event; the connection stays open.
func (h *Handler) HandleMessage(ctx context.Context, client *GameClient, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Type == "" {
		slog.Debug("discarding malformed message", "client", client.ID(), "error", err)
		h.reply(client, EventError, errorResponse{Message: "malformed message"})
		return
	}

	var err error
	switch env.Type {
	case EventAuthenticate:
		err = h.handleAuthenticate(ctx, client, env.Data)
	case EventFindMatch:
		err = h.handleFindMatch(client, env.Data)
	case EventLeaveRoom:
		h.rooms.Leave(client.ID())
	case EventPlayerMove:
		err = h.handleMove(client, env.Data)
	case EventPlayerShoot:
		err = h.handleShoot(client, env.Data)
	case EventZombieKilled:
		err = h.handleZombieKilled(client, env.Data)
	case EventDamage:
		err = h.handleDamage(client, env.Data)
	case EventBuyPerk:
		err = h.handleBuyPerk(ctx, client, env.Data)
	case EventMysteryBox:
		err = h.handleMysteryBox(ctx, client)
	case EventRoundComplete:
		err = h.handleRoundComplete(ctx, client, env.Data)
	default:
		slog.Debug("unknown event", "client", client.ID(), "type", env.Type)
		h.reply(client, EventError, errorResponse{Message: "unknown event " + env.Type})
		return
	}

	if err != nil {
		slog.Debug("event rejected", "client", client.ID(), "type", env.Type, "error", err)
		h.reply(client, EventError, errorResponse{Message: "invalid " + env.Type})
	}
}

// OnDisconnect removes the client from its room and releases its account.
func (h *Handler) OnDisconnect(client *GameClient) {
	if h.rooms.Leave(client.ID()) {
		slog.Debug("participant left on disconnect", "client", client.ID())
	}
	if account := client.Account(); account != "" {
		h.registry.Unbind(account, client.ID())
	}
}

// OnSettled notifies the earning participant that a reward was credited.
// Registered with ledger.Dispatcher.OnSettled.
func (h *Handler) OnSettled(s ledger.Settled) {
	client := h.clients.GetClient(s.ParticipantID)
	if client == nil {
		return
	}
	h.reply(client, EventTokensEarned, tokensEarnedResponse{
		TokensEarned: s.Amount,
		Reason:       s.Reason,
		Balance:      s.Balance,
	})
}

func (h *Handler) handleAuthenticate(ctx context.Context, client *GameClient, data json.RawMessage) error {
	var req authenticateRequest
	if err := decode(data, &req); err != nil {
		return err
	}

	if client.IsAuthenticated() {
		h.reply(client, EventAuthError, errorResponse{Message: "already authenticated"})
		return nil
	}

	id, err := h.verifier.Verify(req.Ticket)
	if err != nil {
		slog.Warn("authentication failed", "client", client.ID(), "ip", client.IP(), "error", err)
		h.reply(client, EventAuthError, errorResponse{Message: "authentication failed"})
		return nil
	}

	// Один аккаунт — одно соединение: старое закрываем.
	if prev, replaced := h.registry.Bind(id, client.ID()); replaced {
		if old := h.clients.GetClient(prev); old != nil {
			h.reply(old, EventAuthError, errorResponse{Message: "session replaced"})
			old.CloseAsync()
		}
		slog.Info("session replaced", "account", id.Account, "previous", prev, "client", client.ID())
	}
	client.Authenticate(id.Account, id.ExpiresAt)

	lctx, cancel := context.WithTimeout(ctx, h.ledgerTimeout)
	defer cancel()
	balance, err := h.ledger.Balance(lctx, id.Account)
	if err != nil {
		slog.Error("loading balance", "account", id.Account, "error", err)
	}

	slog.Info("client authenticated", "client", client.ID(), "account", id.Account)

	h.reply(client, EventAuthenticated, authenticatedResponse{
		Account:   id.Account,
		Balance:   balance,
		ExpiresAt: id.ExpiresAt,
	})
	return nil
}

func (h *Handler) handleFindMatch(client *GameClient, data json.RawMessage) error {
	var req findMatchRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if !h.requireAuth(client) {
		return nil
	}

	r, err := h.rooms.FindMatch(req.Mode, client.ID(), client.Account())
	if err != nil {
		msg := "failed to find match"
		if errors.Is(err, room.ErrAlreadyJoined) {
			msg = "already in a room"
		}
		slog.Warn("matchmaking failed", "client", client.ID(), "mode", req.Mode, "error", err)
		h.reply(client, EventMatchmakingError, errorResponse{Message: msg})
		return nil
	}

	h.reply(client, EventMatchFound, matchFoundResponse{RoomID: r.ID(), Mode: r.Mode()})
	return nil
}

func (h *Handler) handleMove(client *GameClient, data json.RawMessage) error {
	var req moveRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if r := h.rooms.RoomOf(client.ID()); r != nil {
		r.HandleMove(client.ID(), req.Position, req.Rotation)
	}
	return nil
}

func (h *Handler) handleShoot(client *GameClient, data json.RawMessage) error {
	var shot room.Shot
	if err := decode(data, &shot); err != nil {
		return err
	}
	if r := h.rooms.RoomOf(client.ID()); r != nil {
		r.HandleShoot(client.ID(), shot)
	}
	return nil
}

func (h *Handler) handleZombieKilled(client *GameClient, data json.RawMessage) error {
	var kill room.Kill
	if err := decode(data, &kill); err != nil {
		return err
	}
	if !h.requireAuth(client) {
		return nil
	}
	// tokensEarned приходит из OnSettled после зачисления.
	if r := h.rooms.RoomOf(client.ID()); r != nil {
		r.HandleKill(client.ID(), kill)
	}
	return nil
}

func (h *Handler) handleDamage(client *GameClient, data json.RawMessage) error {
	var req damageRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if r := h.rooms.RoomOf(client.ID()); r != nil {
		r.HandleDamage(client.ID(), req.Amount)
	}
	return nil
}

func (h *Handler) handleBuyPerk(ctx context.Context, client *GameClient, data json.RawMessage) error {
	var req buyPerkRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if !h.requireAuth(client) {
		return nil
	}

	r := h.rooms.RoomOf(client.ID())
	if r == nil {
		h.reply(client, EventPerkError, errorResponse{Message: "not in a room"})
		return nil
	}

	cost, err := r.PerkPrice(req.PerkType)
	if err == nil {
		err = r.CanActivatePerk(client.ID(), req.PerkType)
	}
	if err != nil {
		h.reply(client, EventPerkError, errorResponse{Message: perkErrorMessage(err)})
		return nil
	}

	entry := ledger.Entry{
		Account: client.Account(),
		Amount:  int64(cost),
		Reason:  ledger.PerkReason(string(req.PerkType)),
		RoomID:  r.ID(),
		Round:   r.Round().Round,
	}
	balance, err := h.spend(ctx, entry)
	if err != nil {
		h.reply(client, EventPerkError, errorResponse{Message: spendErrorMessage(err, "failed to purchase perk")})
		return nil
	}

	if err := r.ActivatePerk(client.ID(), req.PerkType); err != nil {
		// Участник мог выйти или купить перк параллельно.
		balance = h.refund(ctx, entry, balance)
		h.reply(client, EventPerkError, errorResponse{Message: perkErrorMessage(err)})
		return nil
	}

	h.reply(client, EventPerkPurchased, perkPurchasedResponse{
		PerkType: req.PerkType,
		Cost:     cost,
		Balance:  balance,
	})
	return nil
}

func (h *Handler) handleMysteryBox(ctx context.Context, client *GameClient) error {
	if !h.requireAuth(client) {
		return nil
	}

	r := h.rooms.RoomOf(client.ID())
	if r == nil {
		h.reply(client, EventMysteryBoxError, errorResponse{Message: "not in a room"})
		return nil
	}

	entry := ledger.Entry{
		Account: client.Account(),
		Amount:  int64(h.mysteryBoxCost),
		Reason:  ledger.ReasonMysteryBox,
		RoomID:  r.ID(),
		Round:   r.Round().Round,
	}
	balance, err := h.spend(ctx, entry)
	if err != nil {
		h.reply(client, EventMysteryBoxError, errorResponse{Message: spendErrorMessage(err, "failed to roll mystery box")})
		return nil
	}

	weapon, err := r.RollMysteryBox(client.ID())
	if err != nil {
		h.refund(ctx, entry, balance)
		h.reply(client, EventMysteryBoxError, errorResponse{Message: "failed to roll mystery box"})
		return nil
	}

	slog.Debug("mystery box rolled",
		"client", client.ID(),
		"weapon", weapon.Type,
		"rarity", weapon.Rarity)

	h.reply(client, EventMysteryBoxResult, mysteryBoxResponse{
		Weapon:  weapon,
		Cost:    h.mysteryBoxCost,
		Balance: balance,
	})
	return nil
}

func (h *Handler) handleRoundComplete(ctx context.Context, client *GameClient, data json.RawMessage) error {
	var req roundCompleteRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if !h.requireAuth(client) {
		return nil
	}

	r := h.rooms.RoomOf(client.ID())
	if r == nil {
		return nil
	}

	survival := req.SurvivalTime
	if math.IsNaN(survival) || math.IsInf(survival, 0) || survival < 0 {
		survival = 0
	}

	summary, err := r.CompleteRound(client.ID(), survival)
	if err != nil {
		return fmt.Errorf("completing round: %w", err)
	}

	if summary.Claimed && h.stats != nil {
		sctx, cancel := context.WithTimeout(ctx, h.ledgerTimeout)
		defer cancel()
		stats := model.RoundStats{
			Account:      client.Account(),
			RoomID:       r.ID(),
			Round:        summary.Round,
			Kills:        summary.Kills,
			Score:        summary.Score,
			SurvivalTime: summary.SurvivalTime,
			Bonus:        summary.Bonus,
		}
		if err := h.stats.SaveRoundStats(sctx, stats); err != nil {
			slog.Error("saving round stats",
				"account", stats.Account,
				"room", stats.RoomID,
				"round", stats.Round,
				"error", err)
		}
	}

	h.reply(client, EventRoundStats, summary)
	return nil
}

func (h *Handler) requireAuth(client *GameClient) bool {
	if client.IsAuthenticated() {
		return true
	}
	h.reply(client, EventAuthError, errorResponse{Message: "not authenticated"})
	return false
}

func (h *Handler) spend(ctx context.Context, e ledger.Entry) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, h.ledgerTimeout)
	defer cancel()

	balance, err := h.ledger.Spend(ctx, e)
	if err != nil {
		if !errors.Is(err, ledger.ErrInsufficientFunds) {
			slog.Error("spend failed",
				"account", e.Account,
				"amount", e.Amount,
				"reason", e.Reason,
				"error", err)
		}
		return 0, fmt.Errorf("spending %d for %s: %w", e.Amount, e.Reason, err)
	}
	return balance, nil
}

// refund credits back a spend whose purchase could not be applied and
// returns the resulting balance (or the old one if the refund failed).
func (h *Handler) refund(ctx context.Context, e ledger.Entry, balance int64) int64 {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.ledgerTimeout)
	defer cancel()

	e.Reason = ledger.ReasonRefund
	refunded, err := h.ledger.Credit(ctx, e)
	if err != nil {
		slog.Error("refund failed",
			"account", e.Account,
			"amount", e.Amount,
			"room", e.RoomID,
			"error", err)
		return balance
	}
	return refunded
}

func (h *Handler) reply(client *GameClient, event string, data any) {
	if err := client.SendEvent(event, data); err != nil {
		slog.Debug("reply dropped", "client", client.ID(), "event", event, "error", err)
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}

func perkErrorMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrUnknownPerk):
		return "unknown perk"
	case errors.Is(err, room.ErrPerkOwned):
		return "perk already owned"
	case errors.Is(err, room.ErrPlayerNotFound):
		return "not in a room"
	default:
		return "failed to purchase perk"
	}
}

func spendErrorMessage(err error, fallback string) string {
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		return "insufficient funds"
	}
	return fallback
}
