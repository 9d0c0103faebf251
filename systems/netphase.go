package systems

import (
	"log"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
)

// PhaseController follows the phase the authority declares and exposes the
// prediction settings for it. A phase is never inferred locally.
type PhaseController struct {
	table   [netconfig.PhaseCount]config.PhaseSettings
	current netconfig.Phase

	taperLeft   int
	taperFrames int
	taperFactor float64
}

func NewPhaseController(table [netconfig.PhaseCount]config.PhaseSettings) *PhaseController {
	return &PhaseController{table: table, current: netconfig.PhaseNormalPlay}
}

// Observe applies the phase named by the latest snapshot. It reports whether
// the phase changed. Unknown names fall back to normal play.
func (p *PhaseController) Observe(name string) bool {
	next, ok := netconfig.ParsePhase(name)
	if !ok && name != "" {
		log.Printf("[netphase] unknown phase %q, using %s", name, next)
	}
	if next == p.current {
		return false
	}
	prev := p.current
	p.current = next

	s := p.table[next]
	if s.TaperFrames > 0 {
		p.taperLeft = s.TaperFrames
		p.taperFrames = s.TaperFrames
		p.taperFactor = s.TaperFactor
	} else {
		p.taperLeft, p.taperFrames, p.taperFactor = 0, 0, 1
	}
	log.Printf("[netphase] %s -> %s", prev, next)
	return true
}

func (p *PhaseController) Current() netconfig.Phase { return p.current }

func (p *PhaseController) Settings() config.PhaseSettings { return p.table[p.current] }

func (p *PhaseController) PredictionEnabled() bool { return p.table[p.current].PredictionEnabled }

func (p *PhaseController) Strength() float64 { return p.table[p.current].Strength }

// TaperMultiplier ramps linearly from the phase's taper factor back to 1 over
// the taper window.
func (p *PhaseController) TaperMultiplier() float64 {
	if p.taperLeft <= 0 || p.taperFrames <= 0 {
		return 1
	}
	elapsed := float64(p.taperFrames-p.taperLeft) / float64(p.taperFrames)
	return p.taperFactor + (1-p.taperFactor)*elapsed
}

// AdvanceTaper consumes one reconciliation pass of the taper window.
func (p *PhaseController) AdvanceTaper() {
	if p.taperLeft > 0 {
		p.taperLeft--
	}
}

// Tapering reports whether a taper window is still open.
func (p *PhaseController) Tapering() bool { return p.taperLeft > 0 }
