package gameserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/zombiearena/internal/auth"
	"github.com/udisondev/zombiearena/internal/config"
	"github.com/udisondev/zombiearena/internal/game/formula"
	"github.com/udisondev/zombiearena/internal/game/reward"
	"github.com/udisondev/zombiearena/internal/game/room"
	"github.com/udisondev/zombiearena/internal/game/spawn"
	"github.com/udisondev/zombiearena/internal/ledger"
	"github.com/udisondev/zombiearena/internal/model"
)

type mockStats struct {
	mu    sync.Mutex
	saved []model.RoundStats
}

func (m *mockStats) SaveRoundStats(_ context.Context, s model.RoundStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, s)
	return nil
}

func (m *mockStats) all() []model.RoundStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.RoundStats(nil), m.saved...)
}

type testEnv struct {
	http    *httptest.Server
	server  *Server
	store   *ledger.MemoryStore
	issuer  *auth.Issuer
	rooms   *room.Manager
	stats   *mockStats
	clients *ClientManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	store := ledger.NewMemoryStore()
	dispatcher := ledger.NewDispatcher(store, ledger.DispatcherConfig{Workers: 1})

	clients := NewClientManager()
	rooms := room.NewManager(room.Config{
		RestartDelay: time.Hour,
		Spawn:        spawn.Config{Interval: time.Hour},
	}, clients, dispatcher)

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	stats := &mockStats{}
	handler := NewHandler(HandlerConfig{
		Rooms:    rooms,
		Clients:  clients,
		Ledger:   store,
		Verifier: issuer,
		Stats:    stats,
	})
	dispatcher.OnSettled(handler.OnSettled)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Run(ctx)
	}()

	srv := NewServer(config.DefaultServer(), clients, handler)
	hs := httptest.NewServer(srv)

	t.Cleanup(func() {
		srv.Shutdown(time.Second)
		hs.Close()
		rooms.Shutdown()
		cancel()
		<-done
	})

	return &testEnv{
		http:    hs,
		server:  srv,
		store:   store,
		issuer:  issuer,
		rooms:   rooms,
		stats:   stats,
		clients: clients,
	}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *testEnv) login(t *testing.T, conn *websocket.Conn, account string) {
	t.Helper()
	ticket, _, err := e.issuer.Issue(account)
	require.NoError(t, err)
	send(t, conn, EventAuthenticate, authenticateRequest{Ticket: ticket})
	expect(t, conn, EventAuthenticated)
}

func (e *testEnv) credit(t *testing.T, account string, amount int64) {
	t.Helper()
	_, err := e.store.Credit(context.Background(), ledger.Entry{Account: account, Amount: amount, Reason: "grant"})
	require.NoError(t, err)
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(envelope{Type: event, Data: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// expect reads frames until one of the given type arrives and returns its data.
func expect(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)

		var env envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		if env.Type == event {
			return env.Data
		}
	}
}

func decodeData[T any](t *testing.T, data json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestServer_Authenticate(t *testing.T) {
	env := newTestEnv(t)
	env.credit(t, "wallet1", 120)

	conn := env.dial(t)
	ticket, _, err := env.issuer.Issue("wallet1")
	require.NoError(t, err)

	send(t, conn, EventAuthenticate, authenticateRequest{Ticket: ticket})
	resp := decodeData[authenticatedResponse](t, expect(t, conn, EventAuthenticated))

	assert.Equal(t, "wallet1", resp.Account)
	assert.Equal(t, int64(120), resp.Balance)
}

func TestServer_AuthenticateBadTicket(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, EventAuthenticate, authenticateRequest{Ticket: "garbage"})
	resp := decodeData[errorResponse](t, expect(t, conn, EventAuthError))
	assert.Equal(t, "authentication failed", resp.Message)
}

func TestServer_FindMatchRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, EventFindMatch, findMatchRequest{Mode: "classic"})
	resp := decodeData[errorResponse](t, expect(t, conn, EventAuthError))
	assert.Equal(t, "not authenticated", resp.Message)
	assert.Equal(t, 0, env.rooms.Count())
}

func TestServer_FindMatch(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	env.login(t, conn, "wallet1")

	send(t, conn, EventFindMatch, findMatchRequest{})
	state := decodeData[room.GameState](t, expect(t, conn, room.EventGameState))
	found := decodeData[matchFoundResponse](t, expect(t, conn, EventMatchFound))

	assert.Equal(t, found.RoomID, state.RoomID)
	assert.Equal(t, room.DefaultMode, found.Mode)
	assert.Len(t, state.Players, 1)
	assert.Equal(t, 1, env.rooms.Count())

	send(t, conn, EventFindMatch, findMatchRequest{})
	resp := decodeData[errorResponse](t, expect(t, conn, EventMatchmakingError))
	assert.Equal(t, "already in a room", resp.Message)
}

func TestServer_DisconnectLeavesRoom(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	env.login(t, conn, "wallet1")

	send(t, conn, EventFindMatch, findMatchRequest{})
	expect(t, conn, EventMatchFound)
	require.Equal(t, 1, env.rooms.Count())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return env.rooms.Count() == 0 && env.clients.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_SessionReplaced(t *testing.T) {
	env := newTestEnv(t)

	first := env.dial(t)
	env.login(t, first, "wallet1")

	second := env.dial(t)
	env.login(t, second, "wallet1")

	resp := decodeData[errorResponse](t, expect(t, first, EventAuthError))
	assert.Equal(t, "session replaced", resp.Message)

	assert.Eventually(t, func() bool { return env.clients.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_BuyPerk(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	env.login(t, conn, "wallet1")

	send(t, conn, EventFindMatch, findMatchRequest{})
	expect(t, conn, EventMatchFound)

	send(t, conn, EventBuyPerk, buyPerkRequest{PerkType: model.PerkJuggernog})
	resp := decodeData[errorResponse](t, expect(t, conn, EventPerkError))
	assert.Equal(t, "insufficient funds", resp.Message)

	env.credit(t, "wallet1", 3000)

	send(t, conn, EventBuyPerk, buyPerkRequest{PerkType: model.PerkJuggernog})
	activated := decodeData[room.PerkActivated](t, expect(t, conn, room.EventPerkActivated))
	purchased := decodeData[perkPurchasedResponse](t, expect(t, conn, EventPerkPurchased))

	assert.Equal(t, model.PerkJuggernog, activated.PerkType)
	assert.Equal(t, room.DefaultJuggernogPrice, purchased.Cost)
	assert.Equal(t, int64(3000-room.DefaultJuggernogPrice), purchased.Balance)

	send(t, conn, EventBuyPerk, buyPerkRequest{PerkType: model.PerkJuggernog})
	resp = decodeData[errorResponse](t, expect(t, conn, EventPerkError))
	assert.Equal(t, "perk already owned", resp.Message)

	send(t, conn, EventBuyPerk, buyPerkRequest{PerkType: "double_tap"})
	resp = decodeData[errorResponse](t, expect(t, conn, EventPerkError))
	assert.Equal(t, "unknown perk", resp.Message)

	balance, err := env.store.Balance(context.Background(), "wallet1")
	require.NoError(t, err)
	assert.Equal(t, int64(3000-room.DefaultJuggernogPrice), balance, "failed purchases are not charged")
}

func TestServer_MysteryBox(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	env.login(t, conn, "wallet1")

	send(t, conn, EventMysteryBox, nil)
	resp := decodeData[errorResponse](t, expect(t, conn, EventMysteryBoxError))
	assert.Equal(t, "not in a room", resp.Message)

	send(t, conn, EventFindMatch, findMatchRequest{})
	expect(t, conn, EventMatchFound)
	env.credit(t, "wallet1", 1000)

	send(t, conn, EventMysteryBox, nil)
	result := decodeData[mysteryBoxResponse](t, expect(t, conn, EventMysteryBoxResult))

	assert.NotEmpty(t, result.Weapon.Type)
	assert.NotEmpty(t, result.Weapon.Rarity)
	assert.Equal(t, room.DefaultMysteryBoxCost, result.Cost)
	assert.Equal(t, int64(1000-room.DefaultMysteryBoxCost), result.Balance)

	send(t, conn, EventMysteryBox, nil)
	resp = decodeData[errorResponse](t, expect(t, conn, EventMysteryBoxError))
	assert.Equal(t, "insufficient funds", resp.Message)
}

func TestServer_ZombieKilledEarnsTokens(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	env.login(t, conn, "wallet1")

	send(t, conn, EventFindMatch, findMatchRequest{})
	expect(t, conn, EventMatchFound)

	zombie := 3
	send(t, conn, EventZombieKilled, room.Kill{ZombieID: &zombie, IsHeadshot: true})
	killed := decodeData[room.ZombieKilled](t, expect(t, conn, room.EventZombieKilled))
	earned := decodeData[tokensEarnedResponse](t, expect(t, conn, EventTokensEarned))

	require.NotNil(t, killed.ZombieID)
	assert.Equal(t, 3, *killed.ZombieID)
	assert.Equal(t, formula.KillReward(0, true), earned.TokensEarned)
	assert.Equal(t, reward.ReasonHeadshot, earned.Reason)
	assert.Equal(t, int64(earned.TokensEarned), earned.Balance)
}

func TestServer_RoundCompleteSavesStats(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t)
	env.login(t, a, "wallet-a")
	send(t, a, EventFindMatch, findMatchRequest{})
	expect(t, a, EventMatchFound)

	b := env.dial(t)
	env.login(t, b, "wallet-b")
	send(t, b, EventFindMatch, findMatchRequest{})
	expect(t, b, EventMatchFound)

	start := decodeData[room.RoundStart](t, expect(t, a, room.EventRoundStart))
	require.Equal(t, 1, start.Round)

	for range start.ZombieCount {
		send(t, a, EventZombieKilled, room.Kill{})
	}
	complete := decodeData[room.RoundComplete](t, expect(t, a, room.EventRoundComplete))
	assert.Equal(t, 1, complete.Round)

	send(t, a, EventRoundComplete, roundCompleteRequest{SurvivalTime: 42.5})
	summary := decodeData[room.RoundSummary](t, expect(t, a, EventRoundStats))

	assert.Equal(t, 1, summary.Round)
	assert.Equal(t, formula.ZombieCount(1), summary.Kills)
	assert.Equal(t, formula.RoundBonus(1), summary.Bonus)

	saved := env.stats.all()
	require.Len(t, saved, 1)
	assert.Equal(t, "wallet-a", saved[0].Account)
	assert.Equal(t, 1, saved[0].Round)
	assert.InDelta(t, 42.5, saved[0].SurvivalTime, 1e-9)

	// Повторный claim не платит и не сохраняется.
	send(t, a, EventRoundComplete, roundCompleteRequest{SurvivalTime: 43})
	again := decodeData[room.RoundSummary](t, expect(t, a, EventRoundStats))
	assert.Zero(t, again.Bonus)
	assert.Len(t, env.stats.all(), 1)
}

func TestServer_UnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)))
	resp := decodeData[errorResponse](t, expect(t, conn, EventError))
	assert.Equal(t, "unknown event teleport", resp.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	resp = decodeData[errorResponse](t, expect(t, conn, EventError))
	assert.Equal(t, "malformed message", resp.Message)
}

func TestServer_CheckOrigin(t *testing.T) {
	cfg := config.DefaultServer()
	cfg.AllowedOrigins = []string{"game.example.com"}
	srv := NewServer(cfg, NewClientManager(), nil)

	req := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, srv.checkOrigin(req), "no origin header")

	req.Header.Set("Origin", "https://game.example.com")
	assert.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, srv.checkOrigin(req))
}
