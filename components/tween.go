package components

import (
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/tanema/gween"
	"github.com/yohamta/donburi"
)

// ScriptedData is a hint-driven animation that owns a sprite's position until
// both axes finish. Durations are in ticks.
type ScriptedData struct {
	Kind       netconfig.HintType
	X, Y       *gween.Sequence
	EndX, EndY float64
	// Ticks the lock is held after the path ends (knockdown)
	Hold int
	// Called once when the animation completes
	OnDone func()

	xDone, yDone bool
}

var Tween = donburi.NewComponentType[ScriptedData]()

// Step advances the animation by dt ticks and returns the current position
// and whether the animation has fully finished. The final position is exact.
func (s *ScriptedData) Step(dt float32) (x, y float64, done bool) {
	if !s.xDone {
		fx, _, finished := s.X.Update(dt)
		x, s.xDone = float64(fx), finished
	}
	if !s.yDone {
		fy, _, finished := s.Y.Update(dt)
		y, s.yDone = float64(fy), finished
	}
	if s.xDone {
		x = s.EndX
	}
	if s.yDone {
		y = s.EndY
	}
	if !s.xDone || !s.yDone {
		return x, y, false
	}
	if s.Hold > 0 {
		s.Hold--
		return x, y, false
	}
	return x, y, true
}
