package config

import "github.com/automoto/hoopjam-mp/shared/netconfig"

// PhaseSettings declares how the client treats one authority phase.
type PhaseSettings struct {
	PredictionEnabled bool
	Strength          float64 // Baseline reconciliation strength
	TaperFrames       int     // Reconcile passes the taper lasts, 0 disables it
	TaperFactor       float64 // Strength multiplier at the start of the taper
}

// Phases is indexed by netconfig.Phase.
var Phases [netconfig.PhaseCount]PhaseSettings

func init() {
	Phases = [netconfig.PhaseCount]PhaseSettings{
		netconfig.PhaseNormalPlay:     {PredictionEnabled: true, Strength: 0.6, TaperFrames: 6, TaperFactor: 0.5},
		netconfig.PhaseShotInProgress: {PredictionEnabled: true, Strength: 0.6},
		netconfig.PhaseRebound:        {PredictionEnabled: true, Strength: 0.7, TaperFrames: 4, TaperFactor: 0.7},
		netconfig.PhaseInboundSetup:   {PredictionEnabled: false, Strength: 0.9},
		netconfig.PhaseInboundReady:   {PredictionEnabled: true, Strength: 0.75},
		netconfig.PhaseDeadBall:       {PredictionEnabled: false, Strength: 0.9},
		netconfig.PhaseHalftime:       {PredictionEnabled: false, Strength: 1.0},
		netconfig.PhaseGameOver:       {PredictionEnabled: false, Strength: 1.0},
	}
}
