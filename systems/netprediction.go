package systems

import (
	"log"
	"time"

	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/network"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/yohamta/donburi"
)

// PositionCommit is a position change with its provenance.
type PositionCommit struct {
	X, Y    float64
	Bearing netconfig.Bearing
	Source  netconfig.CommitSource
	Tick    uint64
}

// PredictionStats counts what the engine did over the match.
type PredictionStats struct {
	Predicted    int // Inputs applied locally
	Dropped      int // Inputs dropped for lock or ownership
	Blocked      int // Inputs rejected by the collision guard
	Snapshots    int // Snapshots applied
	Stale        int // Snapshots ignored for their frame
	Suppressed   int
	Blends       int
	Snaps        int // authority_snap commits
	DriftSnaps   int
	ForcedResets int
	Replayed     int // Inputs re-applied after reconciliation
	Anomalies    int // Invalid local authority records

	LastPredictionError float64
}

type queuedInput struct {
	key   netconfig.Key
	turbo bool
}

// PredictionEngine predicts the local sprite and reconciles it, and every
// other sprite, against authoritative snapshots. It is driven from the tick
// loop and is not safe for concurrent use.
type PredictionEngine struct {
	ctx *MatchContext
	cfg config.PredictionConfig

	collisions *CollisionGuard
	pending    *network.PendingInputs
	history    network.ReplayHistory
	guard      visualGuard
	drift      *DriftMonitor
	phase      *PhaseController
	interp     *RemoteInterpolator
	hints      *HintCache
	anims      *AnimationDispatcher
	events     *EventDispatcher

	queue []queuedInput
	local *donburi.Entry

	lastServerFrame     uint32
	hasServerFrame      bool
	framesSinceSnapshot uint32
	leadFrames          uint32

	catchUp      int
	lastStrength float64
	staged       PositionCommit
	hasStaged    bool
	lastCommit   PositionCommit
	tick         uint64

	now   func() time.Time
	stats PredictionStats
}

// NewPredictionEngine wires an engine for one match. Missing collaborators
// are replaced by their no-op versions.
func NewPredictionEngine(ctx MatchContext, cfg config.PredictionConfig) *PredictionEngine {
	ctx.withDefaults()
	c := &ctx
	ttl := config.Hints.DefaultTTL
	return &PredictionEngine{
		ctx:        c,
		cfg:        cfg,
		collisions: NewCollisionGuard(c.Court, cfg.CollisionEpsilonX, cfg.CollisionEpsilonY, c.Teams),
		pending:    network.NewPendingInputs(cfg.PendingInputLimit),
		guard:      newVisualGuard(cfg),
		drift:      NewDriftMonitor(cfg),
		phase:      NewPhaseController(config.Phases),
		interp:     NewRemoteInterpolator(config.Interp),
		hints:      NewHintCache(c, config.Hints),
		anims:      NewAnimationDispatcher(c, config.Hints.LedgerCapacity, ttl),
		events:     NewEventDispatcher(c, config.Hints.LedgerCapacity, ttl),
		now:        time.Now,
	}
}

// HandleInput queues a key press for the next ApplyQueuedInputs.
func (e *PredictionEngine) HandleInput(key netconfig.Key, turbo bool) {
	if !key.Valid() {
		return
	}
	e.queue = append(e.queue, queuedInput{key: key, turbo: turbo})
}

// ApplyQueuedInputs applies queued inputs for this tick. Movement inputs
// beyond the movement budget carry over to the next tick.
func (e *PredictionEngine) ApplyQueuedInputs(tick uint64) {
	e.tick = tick
	e.framesSinceSnapshot++
	if len(e.queue) == 0 {
		return
	}
	queue := e.queue
	e.queue = nil

	budget := 1
	if entry, ok := e.localEntry(); ok {
		sprite := components.Sprite.Get(entry)
		budget = max(e.ctx.Movement.Budget(*sprite, queue[0].turbo), 1)
	}
	moves := 0
	for i, in := range queue {
		if in.key.IsMovement() {
			if moves >= budget {
				e.queue = append(e.queue, queue[i:]...)
				return
			}
			moves++
		}
		e.applyInput(tick, in)
	}
}

func (e *PredictionEngine) applyInput(tick uint64, in queuedInput) {
	entry, ok := e.ownedEntry()
	if !ok {
		e.stats.Dropped++
		return
	}
	sprite := components.Sprite.Get(entry)
	if sprite.AnimationLocked {
		e.stats.Dropped++
		return
	}

	frame := e.InputFrame()
	meta := network.InputMeta{PlayerID: e.ctx.LocalID, Turbo: in.turbo}
	if e.ctx.coordinator(e.ctx.LocalID) {
		// The in-process authority applies it from the relayed packet.
		e.ctx.Inputs.AddInput(in.key, frame, meta)
		return
	}

	if in.key.IsMovement() {
		nx, ny, moves := e.ctx.Movement.Preview(*sprite, in.key, in.turbo)
		if moves && (nx != sprite.X || ny != sprite.Y) {
			if other, blocked := e.collisions.Blocked(e.ctx.World, entry, nx, ny); blocked {
				e.stats.Blocked++
				if config.Debug.Prediction {
					log.Printf("[netpredict] %s blocked by %d", in.key, other)
				}
				return
			}
		}
	}

	preX, preY := sprite.X, sprite.Y
	applied := false
	if e.predicting(frame) {
		if in.key.IsMovement() {
			next := *sprite
			if e.ctx.Movement.Apply(&next, in.key, in.turbo) {
				*sprite = next
				e.stage(sprite.X, sprite.Y, sprite.Bearing, netconfig.SourcePrediction)
				e.flush(sprite)
				applied = true
			}
		} else {
			e.ctx.Actions.HandleAction(entry, in.key)
		}
	}

	rec := messages.InputRecord{PlayerID: e.ctx.LocalID, Key: in.key, Frame: frame, Turbo: in.turbo}
	e.ctx.Inputs.AddInput(in.key, frame, meta)
	e.pending.Add(network.PendingInput{
		Record:  rec,
		PreX:    preX,
		PreY:    preY,
		PostX:   sprite.X,
		PostY:   sprite.Y,
		Applied: applied,
	})
	e.history.Store(rec, sprite.X, sprite.Y)

	if applied {
		e.stats.Predicted++
		e.guard.recordPrediction(tick, sprite.X, sprite.Y, sprite.Bearing)
	}
}

// predicting reports whether an input issued on frame is applied locally.
func (e *PredictionEngine) predicting(frame uint32) bool {
	if !e.phase.PredictionEnabled() {
		return false
	}
	window := e.ctx.Quality.PredictionWindow()
	return window <= 0 || !e.hasServerFrame || frame-e.lastServerFrame <= uint32(window)
}

// InputFrame is the frame stamped on an input issued now: the authority's
// last frame plus the ticks since it arrived plus the latency lead.
func (e *PredictionEngine) InputFrame() uint32 {
	return e.lastServerFrame + e.framesSinceSnapshot + e.leadFrames
}

// SetLeadFrames sets how many frames ahead of the authority inputs are
// stamped, usually the round trip in ticks plus the flush delay.
func (e *PredictionEngine) SetLeadFrames(n uint32) { e.leadFrames = n }

// ResetPrediction drops every pending input and all guard, drift and stage
// state. With dropServerFrame the next snapshot is accepted whatever its
// frame. Calling it repeatedly is harmless.
func (e *PredictionEngine) ResetPrediction(dropServerFrame bool) {
	e.pending.Clear()
	e.history.Reset()
	e.guard.reset()
	e.drift.Reset()
	e.queue = nil
	e.catchUp = 0
	e.hasStaged = false
	if dropServerFrame {
		e.lastServerFrame = 0
		e.hasServerFrame = false
		e.framesSinceSnapshot = 0
	}
}

func (e *PredictionEngine) stage(x, y float64, b netconfig.Bearing, src netconfig.CommitSource) {
	e.staged = PositionCommit{X: x, Y: y, Bearing: b, Source: src, Tick: e.tick}
	e.hasStaged = true
}

// flush writes the staged commit to the sprite.
func (e *PredictionEngine) flush(sprite *components.SpriteData) {
	if !e.hasStaged {
		return
	}
	c := e.staged
	sprite.X, sprite.Y, sprite.Bearing = c.X, c.Y, c.Bearing
	e.lastCommit = c
	e.hasStaged = false
	if config.Debug.Prediction && c.Source != netconfig.SourcePrediction {
		log.Printf("[netpredict] commit (%.2f, %.2f) %s source=%s tick=%d", c.X, c.Y, c.Bearing, c.Source, c.Tick)
	}
}

// localEntry resolves the local sprite, caching it.
func (e *PredictionEngine) localEntry() (*donburi.Entry, bool) {
	if e.local != nil && e.ctx.World.Valid(e.local.Entity()) {
		return e.local, true
	}
	entry, ok := e.ctx.entryFor(e.ctx.LocalID)
	if ok {
		e.local = entry
	}
	return entry, ok
}

// ownedEntry returns the local sprite when this client owns it. The cached
// entry is refreshed once before giving up.
func (e *PredictionEngine) ownedEntry() (*donburi.Entry, bool) {
	entry, ok := e.localEntry()
	if ok && components.Sprite.Get(entry).ControlledBy == e.ctx.LocalID {
		return entry, true
	}
	e.local = nil
	entry, ok = e.localEntry()
	if !ok || components.Sprite.Get(entry).ControlledBy != e.ctx.LocalID {
		return nil, false
	}
	return entry, true
}

func (e *PredictionEngine) PendingCount() int { return e.pending.Len() }

func (e *PredictionEngine) PendingInputs() []network.PendingInput { return e.pending.Items() }

func (e *PredictionEngine) CatchUpFrames() int { return e.catchUp }

// SuppressedCount is the number of corrections held back since the last
// prediction event.
func (e *PredictionEngine) SuppressedCount() int { return e.guard.suppressed }

func (e *PredictionEngine) LastCommit() PositionCommit { return e.lastCommit }

func (e *PredictionEngine) LastBlendStrength() float64 { return e.lastStrength }

func (e *PredictionEngine) LastServerFrame() uint32 { return e.lastServerFrame }

func (e *PredictionEngine) Phase() netconfig.Phase { return e.phase.Current() }

func (e *PredictionEngine) Hints() *HintCache { return e.hints }

func (e *PredictionEngine) Animations() *AnimationDispatcher { return e.anims }

func (e *PredictionEngine) Events() *EventDispatcher { return e.events }

func (e *PredictionEngine) Drift() *DriftMonitor { return e.drift }

func (e *PredictionEngine) Stats() PredictionStats { return e.stats }
