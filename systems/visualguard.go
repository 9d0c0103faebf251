package systems

import (
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
)

// visualGuard decides whether an authoritative correction that lands right
// after a local prediction should be held back. Without it the prediction is
// overwritten and then replayed, which shows as flicker.
type visualGuard struct {
	smallDelta  float64
	window      uint64
	maxSuppress int

	hasPrediction      bool
	lastPredictionTick uint64
	lastAuthorityTick  uint64
	suppressed         int

	// Authority held back by the last suppression
	pendingAuthX, pendingAuthY float64
	hasPendingAuth             bool

	predictedX, predictedY float64
	predictedBearing       netconfig.Bearing
}

func newVisualGuard(cfg config.PredictionConfig) visualGuard {
	return visualGuard{
		smallDelta:  cfg.VisualGuardSmallDelta,
		window:      uint64(max(cfg.VisualGuardWindowTicks, 0)),
		maxSuppress: cfg.VisualGuardMaxSuppress,
	}
}

// recordPrediction anchors the guard on a freshly predicted position and
// re-arms the suppression budget.
func (g *visualGuard) recordPrediction(tick uint64, x, y float64, b netconfig.Bearing) {
	g.hasPrediction = true
	g.lastPredictionTick = tick
	g.predictedX, g.predictedY = x, y
	g.predictedBearing = b
	g.suppressed = 0
	g.hasPendingAuth = false
}

func (g *visualGuard) predictedAt(tick uint64) bool {
	return g.hasPrediction && g.lastPredictionTick == tick
}

func (g *visualGuard) shouldSuppress(tick uint64, delta float64, catchUp bool) bool {
	if catchUp || !g.hasPrediction || delta >= g.smallDelta {
		return false
	}
	if tick < g.lastPredictionTick || tick-g.lastPredictionTick > g.window {
		return false
	}
	return g.suppressed < g.maxSuppress
}

func (g *visualGuard) suppress(x, y float64) {
	g.suppressed++
	g.pendingAuthX, g.pendingAuthY = x, y
	g.hasPendingAuth = true
}

func (g *visualGuard) authorityApplied(tick uint64) {
	g.lastAuthorityTick = tick
	g.hasPendingAuth = false
}

func (g *visualGuard) reset() {
	*g = visualGuard{
		smallDelta:  g.smallDelta,
		window:      g.window,
		maxSuppress: g.maxSuppress,
	}
}
