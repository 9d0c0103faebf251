package systems

import (
	"testing"
	"time"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
)

func TestReconcileSchedulerJitter(t *testing.T) {
	cfg := config.Prediction
	s := NewReconcileScheduler(cfg, 42)
	start := time.Unix(100, 0)
	if !s.Due(start) {
		t.Fatal("first pass must run immediately")
	}

	lo := cfg.ReconcileInterval - cfg.ReconcileJitter
	hi := cfg.ReconcileInterval + cfg.ReconcileJitter
	now := start
	for i := 0; i < 50; i++ {
		next := s.next
		gap := next.Sub(now)
		if gap < lo || gap > hi {
			t.Fatalf("pass %d scheduled %v later, want within [%v, %v]", i, gap, lo, hi)
		}
		if s.Due(next.Add(-time.Millisecond)) {
			t.Fatal("pass ran early")
		}
		if !s.Due(next) {
			t.Fatal("pass did not run when due")
		}
		now = next
	}
}

func TestDriftMonitorRateLimited(t *testing.T) {
	cfg := config.Prediction
	d := NewDriftMonitor(cfg)
	now := time.Unix(0, 0)

	if d.Observe(now, cfg.DriftLogMinDelta/2, netconfig.SourceAuthorityBlend) {
		t.Fatal("small delta logged")
	}
	if !d.Observe(now, 5, netconfig.SourceAuthorityBlend) {
		t.Fatal("first large delta not logged")
	}
	if d.Observe(now.Add(cfg.DriftLogInterval/2), 8, netconfig.SourceAuthorityBlend) {
		t.Fatal("log not rate limited")
	}
	if d.MaxDelta() != 8 {
		t.Fatalf("max = %v, want 8", d.MaxDelta())
	}
	if !d.Observe(now.Add(cfg.DriftLogInterval), 6, netconfig.SourceDriftSnap) {
		t.Fatal("log not allowed after the interval")
	}
	if delta, _ := d.LastLogged(); delta != 6 {
		t.Fatalf("last logged = %v", delta)
	}
	d.Reset()
	if d.MaxDelta() != 0 {
		t.Fatal("reset kept max delta")
	}
}
