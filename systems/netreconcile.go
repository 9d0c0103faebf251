package systems

import (
	"log"
	"math/rand/v2"
	"time"

	"github.com/automoto/hoopjam-mp/archetypes"
	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/network"
	"github.com/automoto/hoopjam-mp/shared/gamemath"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
)

// Reconcile drains source and applies the newest snapshot. It reports
// whether a snapshot was applied.
func (e *PredictionEngine) Reconcile(tick uint64, source network.SnapshotSource) bool {
	if source == nil {
		return false
	}
	snaps := source.DrainSnapshots()
	if len(snaps) == 0 {
		return false
	}
	newest := snaps[0]
	for _, s := range snaps[1:] {
		if s.Frame > newest.Frame {
			newest = s
		}
	}
	return e.ApplySnapshot(tick, newest)
}

// ApplySnapshot runs one reconciliation pass. A snapshot at or before the
// last applied frame changes nothing.
func (e *PredictionEngine) ApplySnapshot(tick uint64, snap messages.Snapshot) bool {
	if e.hasServerFrame && snap.Frame <= e.lastServerFrame {
		e.stats.Stale++
		return false
	}
	e.tick = tick
	if dropped := snap.Sanitize(); dropped > 0 {
		log.Printf("[netpredict] frame %d: dropped %d unaddressable records", snap.Frame, dropped)
	}
	e.lastServerFrame = snap.Frame
	e.hasServerFrame = true
	e.framesSinceSnapshot = 0
	e.stats.Snapshots++

	if e.phase.Observe(snap.Game.Phase) && e.phase.Current() == netconfig.PhaseInboundSetup {
		e.ResetPrediction(false)
	}

	e.syncRoster(snap)
	e.interpolateRemotes(snap)
	if e.ctx.Authority == nil {
		e.applyBallAndGame(snap)
	}

	e.hints.Ingest(snap.Frame, snap.AnimationHints)
	for _, h := range e.hints.Apply(snap.Frame) {
		if h.Target == e.ctx.LocalID && h.Type == netconfig.HintInboundWalk {
			e.ResetPrediction(false)
		}
	}

	e.reconcileLocal(tick, snap)

	e.anims.Dispatch(snap.Frame, snap.Animations)
	e.events.Dispatch(snap.Frame, snap.Events)
	return true
}

// syncRoster spawns sprites for new ids and removes sprites the authority no
// longer reports. The in-process authority manages its own roster.
func (e *PredictionEngine) syncRoster(snap messages.Snapshot) {
	if e.ctx.Authority != nil {
		return
	}
	for _, rec := range snap.Players {
		if _, ok := e.ctx.entryFor(rec.ID); ok {
			continue
		}
		sprite := components.SpriteData{
			ControlledBy: rec.ID,
			Team:         rec.Team,
			Bearing:      rec.Bearing,
		}
		if rec.ValidCoords() {
			sprite.X, sprite.Y = rec.X, rec.Y
		}
		archetypes.SpawnSprite(e.ctx.World, rec.ID, sprite)
		log.Printf("[netpredict] spawned sprite %d (team %d)", rec.ID, rec.Team)
	}

	var gone []donburi.Entity
	for _, entry := range spriteEntries(e.ctx.World) {
		id := esync.GetNetworkId(entry)
		if id == nil || *id == e.ctx.LocalID {
			continue
		}
		if _, ok := snap.Lookup(*id); !ok {
			gone = append(gone, entry.Entity())
		}
	}
	for _, entity := range gone {
		e.ctx.World.Remove(entity)
	}
}

func (e *PredictionEngine) interpolateRemotes(snap messages.Snapshot) {
	blend := e.ctx.Quality.BlendFactor()
	for _, rec := range snap.Players {
		if rec.ID == e.ctx.LocalID || e.ctx.coordinator(rec.ID) {
			continue
		}
		entry, ok := e.ctx.entryFor(rec.ID)
		if !ok {
			continue
		}
		e.interp.Apply(entry, rec, blend)
	}
}

func (e *PredictionEngine) applyBallAndGame(snap messages.Snapshot) {
	if entry, ok := components.Ball.First(e.ctx.World); ok {
		b := components.Ball.Get(entry)
		b.X, b.Y = snap.Ball.X, snap.Ball.Y
		b.CarrierID = snap.Ball.CarrierID
		b.ReboundActive = snap.Ball.ReboundActive
		b.ReboundX, b.ReboundY = snap.Ball.ReboundX, snap.Ball.ReboundY
	}
	if entry, ok := components.Match.First(e.ctx.World); ok {
		m := components.Match.Get(entry)
		g := snap.Game
		m.Score = g.Score
		m.ShotClock = g.ShotClock
		m.TimeRemaining = g.TimeRemaining
		m.CurrentTeam = g.CurrentTeam
		m.Inbounding = g.Inbounding
		m.FrontcourtEstablished = g.FrontcourtEstablished
		m.ShotInProgress = g.ShotInProgress
		m.Half = g.Half
		m.IsHalftime = g.IsHalftime
		m.DeadDribbleTimer = g.DeadDribbleTimer
		m.Phase = e.phase.Current()
		m.Frame = snap.Frame
	}
}

// reconcileLocal corrects the local sprite against its authoritative record.
func (e *PredictionEngine) reconcileLocal(tick uint64, snap messages.Snapshot) {
	if e.ctx.coordinator(e.ctx.LocalID) {
		return
	}
	entry, ok := e.localEntry()
	if !ok {
		return
	}
	rec, ok := snap.Lookup(e.ctx.LocalID)
	if !ok {
		return
	}
	sprite := components.Sprite.Get(entry)
	copyDiscrete(sprite, rec)

	if !rec.ValidCoords() {
		e.stats.Anomalies++
		e.pending.Retire(snap.Frame)
		return
	}
	if sprite.AnimationLocked {
		// The scripted animation owns the position.
		sprite.SetAuthShadow(rec.X, rec.Y)
		if rec.ForcedPositionReset {
			e.ResetPrediction(false)
		} else {
			e.pending.Retire(snap.Frame)
		}
		return
	}
	sprite.SetAuthShadow(rec.X, rec.Y)

	if rec.ForcedPositionReset {
		e.ResetPrediction(false)
		e.snapTo(tick, sprite, rec, netconfig.SourceForcedPosition)
		e.stats.ForcedResets++
		return
	}

	if perr, ok := e.history.PredictionError(snap.Frame, rec.X, rec.Y); ok {
		e.stats.LastPredictionError = perr
	}

	// Unconfirmed inputs are replayed on top of the blend, so the blend
	// starts where they were predicted from.
	delta := gamemath.Distance(sprite.X, sprite.Y, rec.X, rec.Y)
	baseX, baseY := e.pending.Base(snap.Frame, sprite.X, sprite.Y)
	catchUp := e.catchUp > 0

	if e.guard.shouldSuppress(tick, delta, catchUp) {
		e.guard.suppress(rec.X, rec.Y)
		e.pending.Retire(snap.Frame)
		e.stats.Suppressed++
		return
	}

	if delta >= e.cfg.DriftSnapThreshold {
		e.drift.Observe(e.now(), delta, netconfig.SourceDriftSnap)
		e.ResetPrediction(false)
		e.catchUp = e.cfg.CatchUpFrames
		e.snapTo(tick, sprite, rec, netconfig.SourceDriftSnap)
		e.stats.DriftSnaps++
		log.Printf("[netpredict] drift snap delta=%.2f to (%.2f, %.2f)", delta, rec.X, rec.Y)
		return
	}

	strength := e.blendStrength(delta, catchUp)
	e.lastStrength = strength
	e.phase.AdvanceTaper()
	if catchUp {
		e.catchUp--
	}

	src := netconfig.SourceAuthorityBlend
	x := gamemath.Lerp(baseX, rec.X, strength)
	y := gamemath.Lerp(baseY, rec.Y, strength)
	if strength >= 1 {
		src = netconfig.SourceAuthoritySnap
		x, y = rec.X, rec.Y
		e.stats.Snaps++
	} else {
		e.stats.Blends++
	}
	e.drift.Observe(e.now(), delta, src)

	bearing := sprite.Bearing
	if catchUp || !e.guard.predictedAt(tick) || delta >= e.cfg.BearingOverrideDelta {
		bearing = rec.Bearing
	}
	e.stage(x, y, bearing, src)
	e.guard.authorityApplied(tick)
	e.pending.Retire(snap.Frame)
	e.replay(tick, entry, snap.Frame)
	e.flush(sprite)
}

func (e *PredictionEngine) snapTo(tick uint64, sprite *components.SpriteData, rec messages.PositionRecord, src netconfig.CommitSource) {
	e.lastStrength = 1
	e.stage(rec.X, rec.Y, rec.Bearing, src)
	e.flush(sprite)
	e.guard.authorityApplied(tick)
}

// blendStrength picks the correction strength for a delta. The gentler of
// the phase and quality strengths is clamped to the delta band and tapered.
func (e *PredictionEngine) blendStrength(delta float64, catchUp bool) float64 {
	s := min(e.phase.Strength(), e.ctx.Quality.Strength())
	band := e.cfg.LargeBand
	switch {
	case delta < e.cfg.SmallDelta:
		band = e.cfg.SmallBand
	case delta < e.cfg.MediumDelta:
		band = e.cfg.MediumBand
	}
	s = gamemath.Clamp(s, band.Min, band.Max) * e.phase.TaperMultiplier()
	if catchUp {
		s = max(s, e.cfg.CatchUpStrength)
	}
	return gamemath.Clamp(s, 0, 1)
}

// replay re-applies the inputs issued after frame on top of the staged
// position and rebases the pending list on the result.
func (e *PredictionEngine) replay(tick uint64, entry *donburi.Entry, frame uint32) {
	after := e.pending.After(frame)
	if len(after) == 0 {
		return
	}
	work := *components.Sprite.Get(entry)
	work.X, work.Y, work.Bearing = e.staged.X, e.staged.Y, e.staged.Bearing

	rebased := make([]network.PendingInput, 0, len(after))
	moved := false
	for _, in := range after {
		in.PreX, in.PreY = work.X, work.Y
		if in.Applied && in.Record.Key.IsMovement() && e.replayMove(entry, &work, in.Record) {
			moved = true
			e.stats.Replayed++
			e.stage(work.X, work.Y, work.Bearing, netconfig.SourcePredictionReplay)
		}
		in.PostX, in.PostY = work.X, work.Y
		e.history.Store(in.Record, work.X, work.Y)
		rebased = append(rebased, in)
	}
	e.pending.Replace(rebased)
	if moved {
		e.guard.recordPrediction(tick, work.X, work.Y, work.Bearing)
	}
}

func (e *PredictionEngine) replayMove(entry *donburi.Entry, work *components.SpriteData, rec messages.InputRecord) bool {
	nx, ny, ok := e.ctx.Movement.Preview(*work, rec.Key, rec.Turbo)
	if !ok {
		return false
	}
	if _, blocked := e.collisions.Blocked(e.ctx.World, entry, nx, ny); blocked {
		return false
	}
	return e.ctx.Movement.Apply(work, rec.Key, rec.Turbo)
}

// ReconcileScheduler spaces reconciliation passes at a base interval with a
// random offset so they do not lock step with the snapshot broadcast.
type ReconcileScheduler struct {
	interval time.Duration
	jitter   time.Duration
	next     time.Time
	rng      *rand.Rand
}

func NewReconcileScheduler(cfg config.PredictionConfig, seed uint64) *ReconcileScheduler {
	return &ReconcileScheduler{
		interval: cfg.ReconcileInterval,
		jitter:   cfg.ReconcileJitter,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Due reports whether a pass should run at now and, if so, schedules the
// next one.
func (s *ReconcileScheduler) Due(now time.Time) bool {
	if !s.next.IsZero() && now.Before(s.next) {
		return false
	}
	s.next = now.Add(s.nextDelay())
	return true
}

func (s *ReconcileScheduler) nextDelay() time.Duration {
	if s.jitter <= 0 {
		return s.interval
	}
	offset := time.Duration(s.rng.Int64N(int64(2*s.jitter)+1)) - s.jitter
	return s.interval + offset
}
