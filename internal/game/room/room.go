// Package room is the session boundary: it owns participant soft state, wires
// the round machine, wave spawner and reward arbiter together, and turns
// inbound events into mutations and outbound notifications.
package room

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/zombiearena/internal/game/formula"
	"github.com/udisondev/zombiearena/internal/game/reward"
	"github.com/udisondev/zombiearena/internal/game/round"
	"github.com/udisondev/zombiearena/internal/game/spawn"
	"github.com/udisondev/zombiearena/internal/model"
)

// Room defaults.
const (
	DefaultMode              = "classic"
	DefaultMaxPlayers        = 4
	DefaultMinPlayersToStart = 2
)

// Config configures a Room.
type Config struct {
	ID                string
	Mode              string
	MaxPlayers        int
	MinPlayersToStart int
	RestartDelay      time.Duration
	// Scheduler runs the post-round restart. Callbacks are wrapped with the
	// room lock before they reach the round machine.
	Scheduler   round.Scheduler
	Spawn       spawn.Config
	WeaponTable reward.WeaponTable
	WeaponRand  reward.Rand
	Catalog     Catalog
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = DefaultMode
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = DefaultMaxPlayers
	}
	if c.MinPlayersToStart <= 0 {
		c.MinPlayersToStart = DefaultMinPlayersToStart
	}
	if c.Scheduler == nil {
		c.Scheduler = round.TimeScheduler{}
	}
	if len(c.WeaponTable) == 0 {
		c.WeaponTable = reward.DefaultWeaponTable()
	}
	if c.Catalog == nil {
		c.Catalog = DefaultCatalog()
	}
}

// Room is one game session with up to MaxPlayers participants.
// Thread-safe: every mutation happens under mu, one event at a time.
type Room struct {
	id         string
	mode       string
	maxPlayers int
	minPlayers int
	catalog    Catalog
	notifier   Notifier
	settler    Settler
	createdAt  time.Time

	mu             sync.Mutex
	players        map[string]*model.Player
	order          []string
	machine        *round.Machine
	spawner        *spawn.Spawner
	arbiter        *reward.Arbiter
	completedRound int
	closed         bool
}

// New creates an empty room. settler may be nil, in which case rewards are
// computed but never credited.
func New(cfg Config, notifier Notifier, settler Settler) *Room {
	cfg.applyDefaults()

	r := &Room{
		id:         cfg.ID,
		mode:       cfg.Mode,
		maxPlayers: cfg.MaxPlayers,
		minPlayers: cfg.MinPlayersToStart,
		catalog:    cfg.Catalog,
		notifier:   notifier,
		settler:    settler,
		createdAt:  time.Now(),
		players:    make(map[string]*model.Player, cfg.MaxPlayers),
		arbiter:    reward.NewArbiter(cfg.WeaponTable, cfg.WeaponRand),
	}

	spawnCfg := cfg.Spawn
	spawnCfg.Observer = r
	r.spawner = spawn.NewSpawner(spawnCfg)

	r.machine = round.NewMachine(round.Config{
		RestartDelay: cfg.RestartDelay,
		SpawnLimit:   r.spawner.Capacity(),
		Scheduler:    lockedScheduler{room: r, base: cfg.Scheduler},
		Alive:        func() bool { return len(r.players) > 0 },
		Observer:     r,
	})
	return r
}

// lockedScheduler serializes the deferred restart with room events.
type lockedScheduler struct {
	room *Room
	base round.Scheduler
}

func (s lockedScheduler) AfterFunc(d time.Duration, f func()) round.Timer {
	return s.base.AfterFunc(d, func() {
		s.room.mu.Lock()
		defer s.room.mu.Unlock()
		f()
	})
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Mode returns the matchmaking mode.
func (r *Room) Mode() string { return r.mode }

// MaxPlayers returns the participant cap.
func (r *Room) MaxPlayers() int { return r.maxPlayers }

// CreatedAt returns the creation time.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Catalog returns the perk price list.
func (r *Room) Catalog() Catalog { return r.catalog }

// Join adds a participant. A full room declines with a roomFull notification
// and no state change.
func (r *Room) Join(participantID, account string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("joining room %s: %w", r.id, ErrRoomClosed)
	}
	if _, exists := r.players[participantID]; exists {
		return fmt.Errorf("joining room %s: %w", r.id, ErrAlreadyJoined)
	}
	if len(r.players) >= r.maxPlayers {
		r.send(participantID, EventRoomFull, RoomFull{RoomID: r.id, MaxPlayers: r.maxPlayers})
		return fmt.Errorf("joining room %s: %w", r.id, ErrRoomFull)
	}

	p := model.NewPlayer(participantID, account)
	r.players[participantID] = p
	r.order = append(r.order, participantID)

	slog.Info("player joined room",
		"room", r.id,
		"participant", participantID,
		"players", len(r.players))

	r.broadcastExcept(participantID, EventPlayerJoined, PlayerJoined{
		PlayerID: participantID,
		Position: p.Position(),
	})
	r.send(participantID, EventGameState, r.gameStateLocked())

	// Первый раунд стартует, когда набралось достаточно игроков.
	if len(r.players) >= r.minPlayers && r.machine.State() == round.StateIdle {
		if _, err := r.machine.Start(); err != nil {
			slog.Warn("auto-start failed", "room", r.id, "error", err)
		}
	}
	return nil
}

// Leave removes a participant and notifies the rest. Returns false for an
// unknown participant. The spawner is reset once the room is empty.
func (r *Room) Leave(participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[participantID]; !ok {
		return false
	}
	delete(r.players, participantID)
	for i, id := range r.order {
		if id == participantID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	slog.Info("player left room",
		"room", r.id,
		"participant", participantID,
		"players", len(r.players))

	r.broadcast(EventPlayerLeft, PlayerLeft{PlayerID: participantID})

	if len(r.players) == 0 {
		r.spawner.Reset()
	}
	return true
}

// HandleMove records a position update and relays it to the others.
func (r *Room) HandleMove(participantID string, position, rotation model.Vec3) bool {
	if !position.IsFinite() || !rotation.IsFinite() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[participantID]
	if !ok {
		return false
	}
	p.MoveTo(position, rotation)

	r.broadcastExcept(participantID, EventPlayerMoved, PlayerMoved{
		PlayerID: participantID,
		Position: position,
		Rotation: rotation,
	})
	return true
}

// HandleShoot relays a shot to the others.
func (r *Room) HandleShoot(participantID string, shot Shot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[participantID]; !ok {
		return false
	}

	r.broadcastExcept(participantID, EventPlayerShot, PlayerShot{
		PlayerID:  participantID,
		Origin:    shot.Origin,
		Direction: shot.Direction,
		Weapon:    shot.Weapon,
	})
	return true
}

// HandleKill applies a confirmed kill: score, kill count, slot release, round
// progress, then settlement of the reward. An unknown participant yields a
// zero result and no state change.
func (r *Room) HandleKill(participantID string, kill Kill) reward.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[participantID]
	if !ok {
		return reward.Result{}
	}

	points := formula.KillPoints(kill.IsHeadshot)
	p.RecordKill(points)
	if kill.ZombieID != nil {
		r.spawner.Release(*kill.ZombieID)
	}

	res := r.arbiter.Kill(r.machine.Round(), kill.IsHeadshot)

	r.broadcast(EventZombieKilled, ZombieKilled{
		PlayerID:   participantID,
		ZombieID:   kill.ZombieID,
		IsHeadshot: kill.IsHeadshot,
		Points:     points,
	})

	out := r.machine.OnZombieKilled()
	slog.Debug("zombie killed",
		"room", r.id,
		"participant", participantID,
		"round", out.Round,
		"remaining", out.Remaining,
		"headshot", kill.IsHeadshot)

	r.settle(p, out.Round, res)
	return res
}

// HandleDamage applies zombie damage. Health is floored at zero and a player
// at zero is downed. Returns the resulting health and false for an unknown
// participant.
func (r *Room) HandleDamage(participantID string, amount int) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[participantID]
	if !ok {
		return 0, false
	}
	if amount <= 0 || !p.IsAlive() {
		return p.Health(), true
	}

	downed := p.TakeDamage(amount)
	if downed {
		slog.Debug("player downed", "room", r.id, "participant", participantID)
	}

	r.broadcast(EventPlayerDamaged, PlayerDamaged{
		PlayerID: participantID,
		Health:   p.Health(),
		Downed:   downed,
	})
	return p.Health(), true
}

// PerkPrice returns the price of perk k.
func (r *Room) PerkPrice(k model.Perk) (int, error) {
	return r.catalog.Price(k)
}

// CanActivatePerk reports why perk k could not be activated for the
// participant right now, or nil. Used before charging for the perk.
func (r *Room) CanActivatePerk(participantID string, k model.Perk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.perkCheckLocked(participantID, k)
	return err
}

func (r *Room) perkCheckLocked(participantID string, k model.Perk) (*model.Player, error) {
	p, ok := r.players[participantID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if _, err := r.catalog.Price(k); err != nil {
		return nil, err
	}
	if p.HasPerk(k) {
		return nil, fmt.Errorf("activating %q: %w", k, ErrPerkOwned)
	}
	return p, nil
}

// ActivatePerk grants perk k and announces it to the room. A perk is owned
// at most once.
func (r *Room) ActivatePerk(participantID string, k model.Perk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.perkCheckLocked(participantID, k)
	if err != nil {
		return err
	}
	p.AddPerk(k)

	slog.Debug("perk activated", "room", r.id, "participant", participantID, "perk", k)

	r.broadcast(EventPerkActivated, PerkActivated{PlayerID: participantID, PerkType: k})
	return nil
}

// RollMysteryBox draws a weapon for the participant.
func (r *Room) RollMysteryBox(participantID string) (reward.WeaponDraw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[participantID]; !ok {
		return reward.WeaponDraw{}, ErrPlayerNotFound
	}
	return r.arbiter.RollMysteryBox(), nil
}

// CompleteRound returns the participant's summary for the most recently
// cleared round and settles the round bonus. The bonus is paid once per
// participant per cleared round and only to a surviving participant; later
// calls return the summary with a zero bonus.
func (r *Room) CompleteRound(participantID string, survivalTime float64) (RoundSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[participantID]
	if !ok {
		return RoundSummary{}, ErrPlayerNotFound
	}

	summary := RoundSummary{
		Round:        r.machine.Round(),
		Kills:        p.Kills(),
		Score:        p.Score(),
		SurvivalTime: survivalTime,
	}

	cleared := r.completedRound
	if cleared == 0 || p.ClaimedRound() >= cleared || !p.IsAlive() {
		return summary, nil
	}

	// Бонус за раунд начисляется один раз.
	res := r.arbiter.RoundComplete(cleared)
	p.SetClaimedRound(cleared)
	summary.Round = cleared
	summary.Bonus = res.TokensEarned
	summary.Claimed = true

	r.settle(p, cleared, res)
	return summary, nil
}

// HasParticipant reports whether the participant is in this room.
func (r *Room) HasParticipant(participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[participantID]
	return ok
}

// IsEmpty reports whether the room has no participants.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) == 0
}

// Len returns the participant count.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// HasCapacity reports whether the room can accept another participant.
func (r *Room) HasCapacity() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && len(r.players) < r.maxPlayers
}

// Round returns the round machine snapshot.
func (r *Room) Round() round.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.Snapshot()
}

// GameState returns the full public snapshot.
func (r *Room) GameState() GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gameStateLocked()
}

// Player returns the public view of a participant.
func (r *Room) Player(participantID string) (PlayerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[participantID]
	if !ok {
		return PlayerState{}, false
	}
	return playerState(p), true
}

// Info returns the listing entry for the room.
func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.machine.Snapshot()
	return Info{
		ID:         r.id,
		Mode:       r.mode,
		Players:    len(r.players),
		MaxPlayers: r.maxPlayers,
		Round:      snap.Round,
		Active:     snap.Active,
	}
}

// Close stops the spawner and invalidates any pending restart. A closed room
// rejects joins.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.machine.Close()
	r.spawner.Reset()

	slog.Info("room closed", "room", r.id, "round", r.machine.Round())
}

// RoundStarted implements round.Observer. Runs under the room lock.
func (r *Room) RoundStarted(ev round.Started) {
	r.broadcast(EventRoundStart, RoundStart{Round: ev.Round, ZombieCount: ev.ZombieCount})
	limit := r.spawner.StartWave(ev.Round, ev.ZombieCount)

	slog.Info("wave started",
		"room", r.id,
		"round", ev.Round,
		"target", ev.ZombieCount,
		"limit", limit)
}

// RoundEnded implements round.Observer. Runs under the room lock.
func (r *Room) RoundEnded(ev round.Ended) {
	r.spawner.Reset()
	r.completedRound = ev.Round

	msg := RoundComplete{
		Round:       ev.Round,
		Bonus:       ev.Bonus,
		NextRoundIn: int(ev.NextRoundIn / time.Second),
	}
	// Только выжившие получают уведомление.
	for _, id := range r.order {
		if p := r.players[id]; p != nil && p.IsAlive() {
			r.send(id, EventRoundComplete, msg)
		}
	}
}

// ZombieSpawned implements spawn.Observer. Runs on the wave goroutine.
func (r *Room) ZombieSpawned(roundNum int, slot spawn.Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.machine.Round() != roundNum || !r.machine.Active() {
		return
	}
	r.broadcast(EventZombieSpawned, ZombieSpawned{Round: roundNum, Slot: slot})
}

func (r *Room) settle(p *model.Player, roundNum int, res reward.Result) {
	if res.TokensEarned <= 0 || r.settler == nil {
		return
	}
	if p.Account() == "" {
		slog.Debug("reward not settled, no account bound",
			"room", r.id,
			"participant", p.ID(),
			"amount", res.TokensEarned)
		return
	}

	s := Settlement{
		ParticipantID: p.ID(),
		Account:       p.Account(),
		RoomID:        r.id,
		Round:         roundNum,
		Amount:        res.TokensEarned,
		Reason:        res.Reason,
	}
	if err := r.settler.Settle(s); err != nil {
		slog.Error("settlement rejected",
			"room", r.id,
			"participant", p.ID(),
			"amount", s.Amount,
			"reason", s.Reason,
			"error", err)
	}
}

func (r *Room) gameStateLocked() GameState {
	snap := r.machine.Snapshot()
	players := make([]PlayerState, 0, len(r.players))
	for _, id := range r.order {
		players = append(players, playerState(r.players[id]))
	}
	return GameState{
		RoomID:           r.id,
		Players:          players,
		Round:            snap.Round,
		Active:           snap.Active,
		ZombiesRemaining: snap.ZombiesRemaining,
		Zombies:          r.spawner.Active(),
	}
}

func playerState(p *model.Player) PlayerState {
	return PlayerState{
		ID:        p.ID(),
		Position:  p.Position(),
		Health:    p.Health(),
		MaxHealth: p.MaxHealth(),
		MoveSpeed: p.MoveSpeed(),
		Score:     p.Score(),
		Kills:     p.Kills(),
		Perks:     p.Perks(),
	}
}

func (r *Room) send(participantID, event string, data any) {
	if r.notifier == nil {
		return
	}
	r.notifier.Send(participantID, Message{Event: event, Data: data})
}

func (r *Room) broadcast(event string, data any) {
	r.broadcastExcept("", event, data)
}

func (r *Room) broadcastExcept(exclude, event string, data any) {
	for _, id := range r.order {
		if id != exclude {
			r.send(id, event, data)
		}
	}
}
