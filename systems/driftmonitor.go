package systems

import (
	"log"
	"time"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"golang.org/x/time/rate"
)

// DriftMonitor tracks how far prediction strays from authority. It is purely
// diagnostic and never changes gameplay.
type DriftMonitor struct {
	minDelta float64
	limiter  *rate.Limiter

	maxDelta     float64
	lastLogged   float64
	lastLoggedAt time.Time
}

func NewDriftMonitor(cfg config.PredictionConfig) *DriftMonitor {
	every := rate.Inf
	if cfg.DriftLogInterval > 0 {
		every = rate.Every(cfg.DriftLogInterval)
	}
	return &DriftMonitor{
		minDelta: cfg.DriftLogMinDelta,
		limiter:  rate.NewLimiter(every, 1),
	}
}

// Observe records a delta and reports whether a diagnostic line was written.
func (d *DriftMonitor) Observe(now time.Time, delta float64, source netconfig.CommitSource) bool {
	if delta > d.maxDelta {
		d.maxDelta = delta
	}
	if delta < d.minDelta || !d.limiter.AllowN(now, 1) {
		return false
	}
	log.Printf("[drift] delta=%.2f max=%.2f source=%s", delta, d.maxDelta, source)
	d.lastLogged = delta
	d.lastLoggedAt = now
	return true
}

func (d *DriftMonitor) MaxDelta() float64 { return d.maxDelta }

// LastLogged returns the delta and time of the last diagnostic line.
func (d *DriftMonitor) LastLogged() (float64, time.Time) { return d.lastLogged, d.lastLoggedAt }

// Reset clears the tracked deltas. The log limiter keeps its budget so a
// burst of resets cannot flood the log.
func (d *DriftMonitor) Reset() {
	d.maxDelta = 0
	d.lastLogged = 0
	d.lastLoggedAt = time.Time{}
}
