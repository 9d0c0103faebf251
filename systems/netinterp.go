package systems

import (
	"log"
	"math"

	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/gamemath"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/yohamta/donburi"
)

// RemoteInterpolator moves sprites the local player does not control toward
// their authoritative positions.
type RemoteInterpolator struct {
	cfg config.InterpConfig
}

func NewRemoteInterpolator(cfg config.InterpConfig) *RemoteInterpolator {
	return &RemoteInterpolator{cfg: cfg}
}

// Apply updates one remote sprite from its record. baseBlend is the network
// quality blend factor.
func (r *RemoteInterpolator) Apply(entry *donburi.Entry, rec messages.PositionRecord, baseBlend float64) {
	sprite := components.Sprite.Get(entry)
	stats := components.NetInterp.Get(entry)

	if sprite.AnimationLocked {
		return
	}
	copyDiscrete(sprite, rec)
	sprite.Bearing = rec.Bearing

	if !rec.ValidCoords() {
		// Keep the prior position.
		stats.Anomalies++
		if config.Debug.Interp {
			log.Printf("[netinterp] id=%d invalid coords (%v, %v)", rec.ID, rec.X, rec.Y)
		}
		return
	}

	unchanged := sprite.SetAuthShadow(rec.X, rec.Y)
	dx := math.Abs(rec.X - sprite.X)
	dy := math.Abs(rec.Y - sprite.Y)
	if unchanged || dx >= r.cfg.SnapDistance || dy >= r.cfg.SnapDistance {
		sprite.X, sprite.Y = rec.X, rec.Y
		stats.Snaps++
		return
	}

	f := r.BlendFactor(baseBlend, math.Hypot(dx, dy))
	sprite.X = gamemath.Lerp(sprite.X, rec.X, f)
	sprite.Y = gamemath.Lerp(sprite.Y, rec.Y, f)
	stats.Blends++
	stats.LastBlend = f
}

// BlendFactor scales the base factor by distance: gentler for noise-sized
// moves, faster for larger ones.
func (r *RemoteInterpolator) BlendFactor(base, dist float64) float64 {
	f := base
	switch {
	case dist < r.cfg.SmallDistance:
		f *= r.cfg.ScaleDown
	case dist > r.cfg.LargeDistance:
		f *= r.cfg.ScaleUp
	}
	return gamemath.Clamp(f, r.cfg.MinBlend, r.cfg.MaxBlend)
}

// copyDiscrete copies state that is never interpolated.
func copyDiscrete(sprite *components.SpriteData, rec messages.PositionRecord) {
	sprite.Team = rec.Team
	sprite.HasDribble = rec.HasDribble
	sprite.TurboActive = rec.TurboActive
	sprite.Turbo = rec.Turbo
	sprite.OnFire = rec.OnFire
	sprite.KnockdownTimer = rec.KnockdownTimer
	sprite.StealRecoverFrames = rec.StealRecoverFrames
}
