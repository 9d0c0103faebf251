package core

import (
	"cmp"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/automoto/hoopjam-mp/archetypes"
	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/courtdata"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/automoto/hoopjam-mp/systems"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
)

var (
	ErrMatchFull     = errors.New("match is full")
	ErrUnknownPlayer = errors.New("unknown player")
)

// AuthorityConfig configures an Authority.
type AuthorityConfig struct {
	Name  string
	Court *courtdata.Court
	// World is shared with an in-process client in the coordinator role.
	// Nil creates a private world.
	World donburi.World
	Net   config.NetConfig
	Seed  uint64
}

// AuthorityStats counts what the authority did over the match.
type AuthorityStats struct {
	Frames    uint32
	Inputs    int // Inputs applied
	Rejected  int // Inputs for the wrong player or with unknown keys
	Blocked   int // Moves rejected by the collision guard
	Ignored   int // Inputs the current phase does not accept
	Snapshots int
}

type player struct {
	id    esync.NetworkId
	entry *donburi.Entry
	name  string
	slot  int
}

type queuedInput struct {
	rec   messages.InputRecord
	order uint64
}

// Authority owns the match simulation. It applies inputs at the frame they
// were stamped with and produces one snapshot per Step. All methods are safe
// for concurrent use.
type Authority struct {
	mu sync.Mutex

	name    string
	session string
	cfg     config.NetConfig
	court   *courtdata.Court
	world   donburi.World
	shared  bool
	rng     *rand.Rand

	movement   *systems.CourtMovement
	collisions *systems.CollisionGuard

	roster  map[esync.NetworkId]*player
	members sync.Map // esync.NetworkId -> struct{}, readable without mu
	nextID  esync.NetworkId
	inputs  []queuedInput
	arrived uint64

	ball  *donburi.Entry
	match *donburi.Entry
	frame uint32
	rules rules

	hints  outbox[messages.HintRecord]
	anims  outbox[messages.AnimationRecord]
	events outbox[messages.EventRecord]
	forced map[esync.NetworkId]bool
	seq    uint64

	stats AuthorityStats
}

func NewAuthority(cfg AuthorityConfig) (*Authority, error) {
	court := cfg.Court
	if court == nil {
		var err error
		if court, err = courtdata.LoadDefault(); err != nil {
			return nil, fmt.Errorf("load court: %w", err)
		}
	}
	world := cfg.World
	shared := world != nil
	if !shared {
		world = donburi.NewWorld()
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x2545f4914f6cdd1d))
	a := &Authority{
		name:       cfg.Name,
		session:    fmt.Sprintf("%08x", rng.Uint32()),
		cfg:        cfg.Net,
		court:      court,
		world:      world,
		shared:     shared,
		rng:        rng,
		movement:   systems.NewCourtMovement(court, config.Movement),
		collisions: systems.NewCollisionGuard(court, config.Prediction.CollisionEpsilonX, config.Prediction.CollisionEpsilonY, nil),
		roster:     make(map[esync.NetworkId]*player),
		forced:     make(map[esync.NetworkId]bool),
		hints:      newOutbox[messages.HintRecord](cfg.Net.ResendFrames),
		anims:      newOutbox[messages.AnimationRecord](cfg.Net.ResendFrames),
		events:     newOutbox[messages.EventRecord](cfg.Net.ResendFrames),
	}
	a.ball, a.match = archetypes.SpawnMatch(world)
	m := components.Match.Get(a.match)
	m.Half = 1
	m.TimeRemaining = cfg.Net.HalfLength
	m.ShotClock = cfg.Net.ShotClock
	return a, nil
}

func (a *Authority) Name() string { return a.name }

func (a *Authority) Session() string { return a.session }

// World is the world the authority simulates in.
func (a *Authority) World() donburi.World { return a.world }

// AddPlayer puts a new sprite on the smaller team.
func (a *Authority) AddPlayer(name string) (esync.NetworkId, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.roster) >= a.cfg.MaxPlayers {
		return 0, 0, ErrMatchFull
	}

	var counts [2]int
	for _, p := range a.roster {
		counts[components.Sprite.Get(p.entry).Team]++
	}
	team := 0
	if counts[1] < counts[0] {
		team = 1
	}
	slot := a.freeSlot(team)
	spawn := a.court.SpawnFor(team, slot)

	a.nextID++
	id := a.nextID
	bearing := netconfig.BearingE
	if team == 1 {
		bearing = netconfig.BearingW
	}
	entry := archetypes.SpawnSprite(a.world, id, components.SpriteData{
		ControlledBy: id,
		Team:         team,
		X:            spawn.X,
		Y:            spawn.Y,
		Bearing:      bearing,
		Turbo:        config.Movement.TurboMax,
	})
	a.roster[id] = &player{id: id, entry: entry, name: name, slot: slot}
	a.members.Store(id, struct{}{})
	log.Printf("[authority] %s joined as %d (team %d, slot %d)", name, id, team, slot)
	return id, team, nil
}

func (a *Authority) freeSlot(team int) int {
	used := map[int]bool{}
	for _, p := range a.roster {
		if components.Sprite.Get(p.entry).Team == team {
			used[p.slot] = true
		}
	}
	slot := 0
	for used[slot] {
		slot++
	}
	return slot
}

// RemovePlayer drops a sprite and its queued inputs. A carried ball is
// left loose where the carrier stood.
func (a *Authority) RemovePlayer(id esync.NetworkId) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.roster[id]
	if !ok {
		return
	}
	b := components.Ball.Get(a.ball)
	if b.CarrierID == id {
		s := components.Sprite.Get(p.entry)
		b.CarrierID = 0
		b.X, b.Y = s.X, s.Y
	}
	a.world.Remove(p.entry.Entity())
	delete(a.roster, id)
	a.members.Delete(id)
	delete(a.forced, id)
	a.inputs = slices.DeleteFunc(a.inputs, func(q queuedInput) bool { return q.rec.PlayerID == id })
	log.Printf("[authority] %s (%d) left", p.name, id)
}

// Team returns the team of id, or -1 when id is not on the roster.
func (a *Authority) Team(id esync.NetworkId) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.roster[id]; ok {
		return components.Sprite.Get(p.entry).Team
	}
	return -1
}

// HasPlayer reports whether id is on the roster.
func (a *Authority) HasPlayer(id esync.NetworkId) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.roster[id]
	return ok
}

// PlayerCount returns the number of players on the roster.
func (a *Authority) PlayerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.roster)
}

// SimulatesLocally reports whether the authority moves id itself. A client
// sharing the authority's world must not reconcile such sprites. It does not
// take the authority lock, so it may be called from inside Exclusive.
func (a *Authority) SimulatesLocally(id esync.NetworkId) bool {
	if !a.shared {
		return false
	}
	_, ok := a.members.Load(id)
	return ok
}

// Exclusive runs fn while holding the authority lock. A client sharing the
// world runs its systems through it so joins and steps cannot interleave.
// fn must not call other Authority methods except SimulatesLocally.
func (a *Authority) Exclusive(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn()
}

// SubmitInputs queues a packet from player. Records naming another player or
// carrying an unknown key are dropped.
func (a *Authority) SubmitInputs(id esync.NetworkId, packet messages.InputPacket) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.roster[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
	}
	for _, rec := range packet.Inputs {
		if rec.PlayerID != id || !rec.Key.Valid() {
			a.stats.Rejected++
			continue
		}
		a.arrived++
		a.inputs = append(a.inputs, queuedInput{rec: rec, order: a.arrived})
	}
	return nil
}

// Step advances the match by one frame and returns its snapshot.
func (a *Authority) Step() messages.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.frame++
	a.stats.Frames = a.frame
	if !a.rules.started && len(a.roster) > 0 {
		a.rules.started = true
		a.beginInbound(0)
	}
	a.applyDueInputs()
	a.tickTimers()
	a.advancePhase()

	snap := a.snapshot()
	clear(a.forced)
	a.stats.Snapshots++
	return snap
}

// applyDueInputs applies every queued input stamped at or before the current
// frame, in frame then arrival order. Movement beyond a player's per-frame
// budget waits for the next frame.
func (a *Authority) applyDueInputs() {
	slices.SortFunc(a.inputs, func(x, y queuedInput) int {
		if c := cmp.Compare(x.rec.Frame, y.rec.Frame); c != 0 {
			return c
		}
		return cmp.Compare(x.order, y.order)
	})
	for _, p := range a.roster {
		components.Sprite.Get(p.entry).TurboActive = false
	}

	moves := map[esync.NetworkId]int{}
	var later []queuedInput
	for _, q := range a.inputs {
		if q.rec.Frame > a.frame {
			later = append(later, q)
			continue
		}
		p, ok := a.roster[q.rec.PlayerID]
		if !ok {
			continue
		}
		sprite := components.Sprite.Get(p.entry)
		if q.rec.Key.IsMovement() {
			if moves[q.rec.PlayerID] >= max(a.movement.Budget(*sprite, q.rec.Turbo), 1) {
				later = append(later, q)
				continue
			}
			moves[q.rec.PlayerID]++
		}
		a.applyInput(p, q.rec)
	}
	a.inputs = later
}

func (a *Authority) applyInput(p *player, rec messages.InputRecord) {
	if !config.Phases[a.rules.phase].PredictionEnabled {
		a.stats.Ignored++
		return
	}
	if !rec.Key.IsMovement() {
		a.stats.Inputs++
		a.action(p, rec.Key)
		return
	}

	sprite := components.Sprite.Get(p.entry)
	nx, ny, ok := a.movement.Preview(*sprite, rec.Key, rec.Turbo)
	if !ok {
		a.stats.Ignored++
		return
	}
	if nx != sprite.X || ny != sprite.Y {
		if _, blocked := a.collisions.Blocked(a.world, p.entry, nx, ny); blocked {
			a.stats.Blocked++
			return
		}
	}
	hadTurbo := sprite.Turbo >= config.Movement.TurboDrainPerMove
	a.movement.Apply(sprite, rec.Key, rec.Turbo)
	a.stats.Inputs++
	if hadTurbo && sprite.Turbo < config.Movement.TurboDrainPerMove {
		a.emitEvent(messages.EventRecord{Type: netconfig.EventTurboUpdate, Actor: rec.PlayerID, Value: sprite.Turbo})
	}
}

func (a *Authority) tickTimers() {
	for id, p := range a.roster {
		s := components.Sprite.Get(p.entry)
		if s.KnockdownTimer > 0 {
			s.KnockdownTimer--
		}
		if s.StealRecoverFrames > 0 {
			s.StealRecoverFrames--
		}
		if !s.TurboActive && s.Turbo < config.Movement.TurboMax {
			s.Turbo = min(s.Turbo+config.Movement.TurboRegenPerTick, config.Movement.TurboMax)
			if s.Turbo == config.Movement.TurboMax {
				a.emitEvent(messages.EventRecord{Type: netconfig.EventTurboUpdate, Actor: id, Value: s.Turbo})
			}
		}
	}
	m := components.Match.Get(a.match)
	if m.AnnouncerTimer > 0 {
		m.AnnouncerTimer--
		if m.AnnouncerTimer == 0 {
			m.Announcer = ""
		}
	}
}

func (a *Authority) nextRecordID() uint64 {
	a.seq++
	return a.seq
}

func (a *Authority) emitHint(h messages.HintRecord) {
	a.hints.add(a.frame, h)
}

func (a *Authority) emitAnimation(anim messages.AnimationRecord) {
	anim.ID = a.nextRecordID()
	a.anims.add(a.frame, anim)
}

func (a *Authority) emitEvent(ev messages.EventRecord) {
	ev.ID = a.nextRecordID()
	a.events.add(a.frame, ev)
}

func (a *Authority) announce(text string) {
	m := components.Match.Get(a.match)
	m.Announcer = text
	m.AnnouncerTimer = 2 * a.tickRate()
	a.emitEvent(messages.EventRecord{Type: netconfig.EventAnnouncer, Text: text, Frames: m.AnnouncerTimer})
}

func (a *Authority) tickRate() int {
	return max(a.cfg.TickRate, 1)
}

// sortedIDs lists the roster in id order.
func (a *Authority) sortedIDs() []esync.NetworkId {
	ids := make([]esync.NetworkId, 0, len(a.roster))
	for id := range a.roster {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (a *Authority) snapshot() messages.Snapshot {
	ids := a.sortedIDs()
	players := make([]messages.PositionRecord, 0, len(ids))
	for _, id := range ids {
		s := components.Sprite.Get(a.roster[id].entry)
		players = append(players, messages.PositionRecord{
			ID:                  id,
			Team:                s.Team,
			X:                   s.X,
			Y:                   s.Y,
			Bearing:             s.Bearing,
			HasDribble:          s.HasDribble,
			KnockdownTimer:      s.KnockdownTimer,
			StealRecoverFrames:  s.StealRecoverFrames,
			TurboActive:         s.TurboActive,
			Turbo:               s.Turbo,
			OnFire:              s.OnFire,
			ForcedPositionReset: a.forced[id],
		})
	}
	snap := messages.NewSnapshot(a.frame, players)

	b := components.Ball.Get(a.ball)
	if p, ok := a.roster[b.CarrierID]; ok {
		s := components.Sprite.Get(p.entry)
		b.X, b.Y = s.X, s.Y
	}
	snap.Ball = messages.BallState{
		X:             b.X,
		Y:             b.Y,
		CarrierID:     b.CarrierID,
		ReboundActive: b.ReboundActive,
		ReboundX:      b.ReboundX,
		ReboundY:      b.ReboundY,
	}

	m := components.Match.Get(a.match)
	m.Phase = a.rules.phase
	m.Frame = a.frame
	snap.Game = messages.GameState{
		Score:                 m.Score,
		ShotClock:             m.ShotClock,
		TimeRemaining:         m.TimeRemaining,
		CurrentTeam:           m.CurrentTeam,
		Inbounding:            m.Inbounding,
		FrontcourtEstablished: m.FrontcourtEstablished,
		ShotInProgress:        m.ShotInProgress,
		Half:                  m.Half,
		IsHalftime:            m.IsHalftime,
		DeadDribbleTimer:      m.DeadDribbleTimer,
		Phase:                 a.rules.phase.String(),
	}
	snap.AnimationHints = a.hints.live(a.frame)
	snap.Animations = a.anims.live(a.frame)
	snap.Events = a.events.live(a.frame)
	return snap
}

// Frame returns the last simulated frame.
func (a *Authority) Frame() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frame
}

// Phase returns the current phase.
func (a *Authority) Phase() netconfig.Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rules.phase
}

func (a *Authority) Stats() AuthorityStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// outbox repeats records in every snapshot for a few frames so a client that
// misses one snapshot still sees them. Clients deduplicate by id or key.
type outbox[T any] struct {
	frames uint32
	items  []outboxItem[T]
}

type outboxItem[T any] struct {
	item  T
	until uint32
}

func newOutbox[T any](frames uint32) outbox[T] {
	return outbox[T]{frames: max(frames, 1)}
}

func (o *outbox[T]) add(frame uint32, item T) {
	o.items = append(o.items, outboxItem[T]{item: item, until: frame + o.frames - 1})
}

// live drops expired records and returns the rest.
func (o *outbox[T]) live(frame uint32) []T {
	o.items = slices.DeleteFunc(o.items, func(it outboxItem[T]) bool { return it.until < frame })
	if len(o.items) == 0 {
		return nil
	}
	out := make([]T, len(o.items))
	for i, it := range o.items {
		out[i] = it.item
	}
	return out
}
