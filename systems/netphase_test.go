package systems

import (
	"testing"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
)

func TestPhaseObserveTransitions(t *testing.T) {
	p := NewPhaseController(config.Phases)
	if p.Observe("NORMAL_PLAY") {
		t.Fatal("same phase reported as a change")
	}
	if !p.Observe("INBOUND_SETUP") || p.Current() != netconfig.PhaseInboundSetup {
		t.Fatalf("phase = %s, want INBOUND_SETUP", p.Current())
	}
	if p.PredictionEnabled() {
		t.Fatal("inbound setup must disable prediction")
	}
	if !p.Observe("SLAM_DUNK_CONTEST") || p.Current() != netconfig.PhaseNormalPlay {
		t.Fatalf("unknown phase fell back to %s", p.Current())
	}
}

func TestPhaseTaperRamp(t *testing.T) {
	p := NewPhaseController(config.Phases)
	p.Observe("DEAD_BALL")
	if p.TaperMultiplier() != 1 || p.Tapering() {
		t.Fatal("dead ball has no taper")
	}

	p.Observe("NORMAL_PLAY")
	s := config.Phases[netconfig.PhaseNormalPlay]
	prev := p.TaperMultiplier()
	if !near(prev, s.TaperFactor) {
		t.Fatalf("taper starts at %v, want %v", prev, s.TaperFactor)
	}
	for i := 0; i < s.TaperFrames; i++ {
		p.AdvanceTaper()
		got := p.TaperMultiplier()
		if got < prev {
			t.Fatalf("pass %d: taper fell from %v to %v", i, prev, got)
		}
		prev = got
	}
	if prev != 1 || p.Tapering() {
		t.Fatalf("taper after %d passes = %v, want 1", s.TaperFrames, prev)
	}

	// A phase without a taper clears a running one.
	p.Observe("REBOUND")
	p.Observe("SHOT_IN_PROGRESS")
	if p.Tapering() || p.TaperMultiplier() != 1 {
		t.Fatal("taper not cleared")
	}
}

func TestPhaseStrengthTable(t *testing.T) {
	p := NewPhaseController(config.Phases)
	for ph := netconfig.PhaseNormalPlay; ph < netconfig.PhaseCount; ph++ {
		p.Observe(ph.String())
		if p.Current() != ph {
			t.Fatalf("observe %s landed on %s", ph, p.Current())
		}
		if got := p.Strength(); got != config.Phases[ph].Strength {
			t.Fatalf("%s strength = %v", ph, got)
		}
	}
}
