package core

import (
	"fmt"
	"log"
	"math"

	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/gamemath"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
)

const (
	dunkRange      = 4.0  // Shots from closer are dunks and always score
	threePointFrac = 0.3  // Shots from beyond this share of the court width score 3
	reboundSpread  = 3.0  // Max offset of a rebound from the hoop
	reboundReach   = 1.5  // Distance at which a sprite secures a loose rebound
	onFireStreak   = 3    // Consecutive baskets that set a sprite on fire
	onFireBonus    = 0.25 // Added make chance while on fire
)

type walk struct {
	fromX, fromY float64
	toX, toY     float64
}

type pendingShot struct {
	shooter esync.NetworkId
	team    int
	made    bool
	points  int
	frames  int
}

// rules is the authority's phase machine. Only the authority decides the
// phase; clients follow the name it puts in each snapshot.
type rules struct {
	started    bool
	phase      netconfig.Phase
	phaseTicks int
	clockTicks int
	possession int
	inbounder  esync.NetworkId
	walks      map[esync.NetworkId]walk
	shot       pendingShot
	streaks    map[esync.NetworkId]int
}

func (a *Authority) setPhase(p netconfig.Phase) {
	if a.rules.phase != p {
		log.Printf("[authority] frame %d phase %s -> %s", a.frame, a.rules.phase, p)
	}
	a.rules.phase = p
	a.rules.phaseTicks = 0
}

func livePhase(p netconfig.Phase) bool {
	switch p {
	case netconfig.PhaseNormalPlay, netconfig.PhaseShotInProgress, netconfig.PhaseRebound, netconfig.PhaseInboundReady:
		return true
	}
	return false
}

func (a *Authority) advancePhase() {
	r := &a.rules
	if !r.started {
		return
	}
	r.phaseTicks++
	m := components.Match.Get(a.match)

	if livePhase(r.phase) {
		m.TimeRemaining--
		if m.TimeRemaining <= 0 {
			m.TimeRemaining = 0
			a.endHalf()
			return
		}
	}

	switch r.phase {
	case netconfig.PhaseInboundSetup:
		a.walkToInbound()
	case netconfig.PhaseInboundReady:
		if r.phaseTicks >= a.cfg.InboundReadyTicks {
			if p, ok := a.roster[r.inbounder]; ok {
				if mate, ok := a.nearestTeammate(p); ok {
					a.passTo(p, mate)
					return
				}
			}
			a.startPlay()
		}
	case netconfig.PhaseNormalPlay:
		a.runShotClock()
		a.checkFrontcourt()
	case netconfig.PhaseShotInProgress:
		if r.phaseTicks >= r.shot.frames {
			a.resolveShot()
		}
	case netconfig.PhaseRebound:
		a.chaseRebound()
	case netconfig.PhaseDeadBall:
		if r.phaseTicks >= a.tickRate() {
			a.beginInbound(r.possession)
		}
	case netconfig.PhaseHalftime:
		if r.phaseTicks >= a.cfg.HalftimeTicks {
			m.IsHalftime = false
			m.Half++
			m.TimeRemaining = a.cfg.HalfLength
			a.beginInbound(1)
		}
	}
}

// beginInbound walks every sprite to its inbound position. The first sprite
// of the inbounding team takes the ball out.
func (a *Authority) beginInbound(team int) {
	a.setPhase(netconfig.PhaseInboundSetup)
	r := &a.rules
	r.possession = team
	r.inbounder = 0
	r.walks = make(map[esync.NetworkId]walk, len(a.roster))

	m := components.Match.Get(a.match)
	m.CurrentTeam = team
	m.Inbounding = true
	m.FrontcourtEstablished = false
	m.ShotInProgress = false
	m.ShotClock = a.cfg.ShotClock
	b := components.Ball.Get(a.ball)
	*b = components.BallData{X: b.X, Y: b.Y}

	frames := max(a.cfg.InboundSetupTicks, 1)
	for _, id := range a.sortedIDs() {
		p := a.roster[id]
		s := components.Sprite.Get(p.entry)
		s.HasDribble = false
		to := a.court.SpawnFor(s.Team, p.slot)
		if s.Team == team && r.inbounder == 0 {
			if spot, ok := a.court.InboundFor(team); ok {
				to = spot
			}
			r.inbounder = id
		}
		r.walks[id] = walk{fromX: s.X, fromY: s.Y, toX: to.X, toY: to.Y}
		a.emitHint(messages.HintRecord{
			Type:   netconfig.HintInboundWalk,
			Target: id,
			TTL:    uint32(frames) + a.cfg.ResendFrames,
			Meta:   messages.HintMeta{X: to.X, Y: to.Y, Frames: frames},
		})
	}
}

func (a *Authority) walkToInbound() {
	r := &a.rules
	frames := max(a.cfg.InboundSetupTicks, 1)
	t := min(float64(r.phaseTicks)/float64(frames), 1)
	for id, w := range r.walks {
		p, ok := a.roster[id]
		if !ok {
			continue
		}
		s := components.Sprite.Get(p.entry)
		s.X = gamemath.Lerp(w.fromX, w.toX, t)
		s.Y = gamemath.Lerp(w.fromY, w.toY, t)
		s.Bearing = netconfig.BearingToward(w.fromX, w.fromY, w.toX, w.toY)
	}
	if r.phaseTicks >= frames {
		a.inboundReady()
	}
}

// inboundReady pins every sprite to its inbound spot and hands the ball to
// the inbounder. Positions are flagged as forced so clients drop their
// prediction.
func (a *Authority) inboundReady() {
	a.setPhase(netconfig.PhaseInboundReady)
	r := &a.rules
	for _, id := range a.sortedIDs() {
		w, ok := r.walks[id]
		if !ok {
			continue
		}
		s := components.Sprite.Get(a.roster[id].entry)
		hoop := a.court.HoopFor(s.Team)
		s.X, s.Y = w.toX, w.toY
		s.Bearing = netconfig.BearingToward(s.X, s.Y, hoop.X, hoop.Y)
		a.forced[id] = true
		a.emitHint(messages.HintRecord{
			Type:   netconfig.HintInboundReady,
			Target: id,
			Meta:   messages.HintMeta{X: s.X, Y: s.Y, Bearing: s.Bearing},
		})
	}
	r.walks = nil

	inb, ok := a.roster[r.inbounder]
	if !ok {
		ids := a.sortedIDs()
		if len(ids) == 0 {
			return
		}
		inb = a.roster[ids[0]]
		r.inbounder = inb.id
		r.possession = components.Sprite.Get(inb.entry).Team
		components.Match.Get(a.match).CurrentTeam = r.possession
	}
	s := components.Sprite.Get(inb.entry)
	s.HasDribble = true
	components.Ball.Get(a.ball).CarrierID = inb.id

	if mate, ok := a.nearestTeammate(inb); ok {
		ms := components.Sprite.Get(mate.entry)
		s.Bearing = netconfig.BearingToward(s.X, s.Y, ms.X, ms.Y)
		a.emitHint(messages.HintRecord{
			Type:   netconfig.HintInboundTarget,
			Target: inb.id,
			Meta:   messages.HintMeta{TargetID: mate.id, Bearing: s.Bearing},
		})
	}
}

func (a *Authority) startPlay() {
	a.setPhase(netconfig.PhaseNormalPlay)
	a.rules.clockTicks = 0
	components.Match.Get(a.match).Inbounding = false
}

func (a *Authority) runShotClock() {
	r := &a.rules
	r.clockTicks++
	if r.clockTicks < a.tickRate() {
		return
	}
	r.clockTicks = 0
	m := components.Match.Get(a.match)
	m.ShotClock--
	if m.ShotClock <= 0 {
		a.announce("SHOT CLOCK VIOLATION")
		a.beginDeadBall(1 - r.possession)
	}
}

func (a *Authority) checkFrontcourt() {
	m := components.Match.Get(a.match)
	b := components.Ball.Get(a.ball)
	p, ok := a.roster[b.CarrierID]
	if !ok || m.FrontcourtEstablished {
		return
	}
	s := components.Sprite.Get(p.entry)
	hoop := a.court.HoopFor(s.Team)
	mid := a.court.Width / 2
	if (hoop.X > mid && s.X > mid) || (hoop.X < mid && s.X < mid) {
		m.FrontcourtEstablished = true
	}
}

func (a *Authority) action(p *player, key netconfig.Key) {
	switch key {
	case netconfig.KeyShoot:
		a.shoot(p)
	case netconfig.KeyPass:
		a.pass(p)
	case netconfig.KeyShove:
		a.shove(p)
	}
}

func (a *Authority) shoot(p *player) {
	b := components.Ball.Get(a.ball)
	if a.rules.phase != netconfig.PhaseNormalPlay || b.CarrierID != p.id {
		return
	}
	s := components.Sprite.Get(p.entry)
	hoop := a.court.HoopFor(s.Team)
	d := gamemath.Distance(s.X, s.Y, hoop.X, hoop.Y)

	chance := gamemath.Clamp(1-d/a.court.Width, 0.2, 0.9)
	if s.OnFire {
		chance = min(chance+onFireBonus, 0.95)
	}
	shot := pendingShot{
		shooter: p.id,
		team:    s.Team,
		made:    a.rng.Float64() < chance,
		points:  2,
		frames:  a.tickRate(),
	}
	anim := netconfig.AnimShot
	switch {
	case d <= dunkRange:
		anim = netconfig.AnimDunk
		shot.made = true
		shot.frames = a.tickRate() / 2
	case d > a.court.Width*threePointFrac:
		shot.points = 3
	}

	s.HasDribble = false
	b.CarrierID = 0
	b.X, b.Y = s.X, s.Y
	components.Match.Get(a.match).ShotInProgress = true
	a.rules.shot = shot
	a.emitAnimation(messages.AnimationRecord{
		Type:   anim,
		Actor:  p.id,
		FromX:  s.X,
		FromY:  s.Y,
		ToX:    hoop.X,
		ToY:    hoop.Y,
		Made:   shot.made,
		Frames: shot.frames,
	})
	a.setPhase(netconfig.PhaseShotInProgress)
}

func (a *Authority) resolveShot() {
	r := &a.rules
	shot := r.shot
	m := components.Match.Get(a.match)
	m.ShotInProgress = false
	if r.streaks == nil {
		r.streaks = make(map[esync.NetworkId]int)
	}

	if shot.made {
		m.Score[shot.team] += shot.points
		r.streaks[shot.shooter]++
		text := fmt.Sprintf("%d POINTS", shot.points)
		if p, ok := a.roster[shot.shooter]; ok {
			s := components.Sprite.Get(p.entry)
			if r.streaks[shot.shooter] >= onFireStreak && !s.OnFire {
				s.OnFire = true
				text = "HE'S ON FIRE!"
			}
		}
		for id, p := range a.roster {
			if components.Sprite.Get(p.entry).Team != shot.team {
				components.Sprite.Get(p.entry).OnFire = false
				delete(r.streaks, id)
			}
		}
		a.announce(text)
		a.beginDeadBall(1 - shot.team)
		return
	}

	delete(r.streaks, shot.shooter)
	if p, ok := a.roster[shot.shooter]; ok {
		components.Sprite.Get(p.entry).OnFire = false
	}
	hoop := a.court.HoopFor(shot.team)
	rx := gamemath.Clamp(hoop.X+(a.rng.Float64()*2-1)*reboundSpread, 0, a.court.Width)
	ry := gamemath.Clamp(hoop.Y+(a.rng.Float64()*2-1)*reboundSpread, 0, a.court.Height)
	b := components.Ball.Get(a.ball)
	*b = components.BallData{X: rx, Y: ry, ReboundActive: true, ReboundX: rx, ReboundY: ry}
	a.emitAnimation(messages.AnimationRecord{
		Type:   netconfig.AnimRebound,
		FromX:  hoop.X,
		FromY:  hoop.Y,
		ToX:    rx,
		ToY:    ry,
		Frames: a.tickRate() / 2,
	})
	a.emitEvent(messages.EventRecord{Type: netconfig.EventReboundCreated, X: rx, Y: ry})
	a.setPhase(netconfig.PhaseRebound)
}

// chaseRebound awards a loose rebound to the first sprite that reaches it,
// or to the closest one once the ball has been loose for a second.
func (a *Authority) chaseRebound() {
	b := components.Ball.Get(a.ball)
	p, d, ok := a.nearest(b.ReboundX, b.ReboundY, func(p *player) bool {
		return components.Sprite.Get(p.entry).KnockdownTimer == 0
	})
	if !ok {
		return
	}
	if d > reboundReach && a.rules.phaseTicks < a.tickRate() {
		return
	}
	s := components.Sprite.Get(p.entry)
	s.HasDribble = true
	b.CarrierID = p.id
	b.ReboundActive = false
	a.changePossession(s.Team)
	a.emitEvent(messages.EventRecord{Type: netconfig.EventReboundSecured, Actor: p.id, Team: s.Team})
	a.startPlay()
}

func (a *Authority) pass(p *player) {
	b := components.Ball.Get(a.ball)
	if b.CarrierID != p.id {
		return
	}
	if a.rules.phase != netconfig.PhaseNormalPlay && a.rules.phase != netconfig.PhaseInboundReady {
		return
	}
	if mate, ok := a.nearestTeammate(p); ok {
		a.passTo(p, mate)
	}
}

func (a *Authority) passTo(from, to *player) {
	fs := components.Sprite.Get(from.entry)
	ts := components.Sprite.Get(to.entry)
	fs.HasDribble = false
	ts.HasDribble = true
	components.Ball.Get(a.ball).CarrierID = to.id
	a.emitAnimation(messages.AnimationRecord{
		Type:   netconfig.AnimPass,
		Actor:  from.id,
		Target: to.id,
		FromX:  fs.X,
		FromY:  fs.Y,
		ToX:    ts.X,
		ToY:    ts.Y,
		Frames: max(a.tickRate()/4, 1),
	})
	if a.rules.phase == netconfig.PhaseInboundReady {
		a.startPlay()
	}
}

// shove knocks the closest opponent in range back and steals the ball if
// the opponent had it.
func (a *Authority) shove(p *player) {
	s := components.Sprite.Get(p.entry)
	if s.StealRecoverFrames > 0 || s.KnockdownTimer > 0 {
		return
	}
	target, d, ok := a.nearest(s.X, s.Y, func(o *player) bool {
		return components.Sprite.Get(o.entry).Team != s.Team
	})
	if !ok || d > a.cfg.ShoveRange {
		return
	}
	ts := components.Sprite.Get(target.entry)
	dx, dy := ts.X-s.X, ts.Y-s.Y
	if d == 0 {
		dx, dy, d = 1, 0, 1
	}
	k := config.Hints.KnockbackDistance
	toX := gamemath.Clamp(ts.X+dx/d*k, 0, a.court.Width)
	toY := gamemath.Clamp(ts.Y+dy/d*k, 0, a.court.Height)
	knockdown := a.tickRate()

	ts.X, ts.Y = toX, toY
	ts.KnockdownTimer = knockdown
	ts.HasDribble = false
	s.StealRecoverFrames = config.Movement.StealRecoverTicks

	b := components.Ball.Get(a.ball)
	if b.CarrierID == target.id {
		b.CarrierID = p.id
		s.HasDribble = true
		a.changePossession(s.Team)
		a.announce("STOLEN!")
	}
	a.emitHint(messages.HintRecord{
		Type:   netconfig.HintShoveKnockback,
		Target: target.id,
		Meta: messages.HintMeta{
			X:               toX,
			Y:               toY,
			Frames:          config.Hints.KnockbackFrames,
			KnockdownFrames: knockdown,
		},
	})
	a.emitEvent(messages.EventRecord{Type: netconfig.EventShoveResult, Actor: p.id, Target: target.id, Frames: knockdown})
	a.emitEvent(messages.EventRecord{Type: netconfig.EventCooldownSync, Actor: p.id, Frames: s.StealRecoverFrames})
}

func (a *Authority) changePossession(team int) {
	m := components.Match.Get(a.match)
	if a.rules.possession != team {
		m.FrontcourtEstablished = false
	}
	a.rules.possession = team
	a.rules.clockTicks = 0
	m.CurrentTeam = team
	m.ShotClock = a.cfg.ShotClock
}

// beginDeadBall clears the ball to center court. The next inbound goes to
// team.
func (a *Authority) beginDeadBall(team int) {
	a.setPhase(netconfig.PhaseDeadBall)
	a.rules.possession = team
	for _, p := range a.roster {
		components.Sprite.Get(p.entry).HasDribble = false
	}
	b := components.Ball.Get(a.ball)
	cx, cy := a.court.Width/2, a.court.Height/2
	a.emitAnimation(messages.AnimationRecord{
		Type:   netconfig.AnimBallClear,
		FromX:  b.X,
		FromY:  b.Y,
		ToX:    cx,
		ToY:    cy,
		Frames: a.tickRate(),
	})
	*b = components.BallData{X: cx, Y: cy}
}

func (a *Authority) endHalf() {
	m := components.Match.Get(a.match)
	m.ShotInProgress = false
	m.Inbounding = false
	for _, p := range a.roster {
		components.Sprite.Get(p.entry).HasDribble = false
	}
	b := components.Ball.Get(a.ball)
	*b = components.BallData{X: a.court.Width / 2, Y: a.court.Height / 2}

	if m.Half >= 2 {
		a.setPhase(netconfig.PhaseGameOver)
		a.announce(fmt.Sprintf("FINAL %d-%d", m.Score[0], m.Score[1]))
		return
	}
	a.setPhase(netconfig.PhaseHalftime)
	m.IsHalftime = true
	a.emitEvent(messages.EventRecord{Type: netconfig.EventHalftime})
	a.announce("HALFTIME")
}

// nearest returns the closest roster sprite to (x, y) accepted by keep.
func (a *Authority) nearest(x, y float64, keep func(*player) bool) (*player, float64, bool) {
	var best *player
	bestD := math.Inf(1)
	for _, id := range a.sortedIDs() {
		p := a.roster[id]
		if !keep(p) {
			continue
		}
		s := components.Sprite.Get(p.entry)
		if d := gamemath.Distance(x, y, s.X, s.Y); d < bestD {
			best, bestD = p, d
		}
	}
	return best, bestD, best != nil
}

func (a *Authority) nearestTeammate(p *player) (*player, bool) {
	s := components.Sprite.Get(p.entry)
	mate, _, ok := a.nearest(s.X, s.Y, func(o *player) bool {
		return o.id != p.id && components.Sprite.Get(o.entry).Team == s.Team
	})
	return mate, ok
}
