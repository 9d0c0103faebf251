package config

import "time"

// PredictionConfig tunes the local prediction and reconciliation engine.
type PredictionConfig struct {
	// Pending input bookkeeping
	PendingInputLimit  int // Max unconfirmed inputs kept for replay
	ReplayHistoryLimit int // Max entries in the replay history

	// Speculative collision guard
	CollisionEpsilonX float64 // Overlap threshold on X
	CollisionEpsilonY float64 // Overlap threshold on Y

	// Visual guard
	VisualGuardSmallDelta  float64 // Deltas below this may be suppressed
	VisualGuardWindowTicks int     // Prediction must be this recent (ticks)
	VisualGuardMaxSuppress int     // Max consecutive suppressions per prediction

	// Drift
	DriftSnapThreshold float64       // Delta at which the engine snaps
	DriftLogMinDelta   float64       // Deltas below this are not logged
	DriftLogInterval   time.Duration // Min time between drift log lines

	// Catch-up after resets
	CatchUpFrames   int     // Reconcile passes with suppression disabled
	CatchUpStrength float64 // Minimum blend strength during catch-up

	// Bearing
	BearingOverrideDelta float64 // Delta at which authority overrides facing

	// Reconcile cadence
	ReconcileInterval time.Duration
	ReconcileJitter   time.Duration

	// Blend strength bands by delta magnitude
	SmallDelta  float64 // Upper bound of the small band
	MediumDelta float64 // Upper bound of the medium band
	SmallBand   StrengthBand
	MediumBand  StrengthBand
	LargeBand   StrengthBand
}

// StrengthBand clamps a blend strength.
type StrengthBand struct {
	Min float64
	Max float64
}

// InterpConfig tunes remote entity interpolation.
type InterpConfig struct {
	SnapDistance  float64 // Jump on either axis that snaps instead of blending
	SmallDistance float64 // Below this the blend factor is scaled down
	LargeDistance float64 // Above this the blend factor is scaled up
	ScaleDown     float64
	ScaleUp       float64
	MinBlend      float64
	MaxBlend      float64
}

// InputBufferConfig bounds input batching.
type InputBufferConfig struct {
	MinFlushInterval     time.Duration
	MaxFlushInterval     time.Duration
	DefaultFlushInterval time.Duration
}

// QualityTier holds the tuning derived for one latency band.
type QualityTier struct {
	Name             string
	MaxRTT           time.Duration // Zero means unbounded
	FlushInterval    time.Duration
	Strength         float64 // Reconciliation strength ceiling
	BlendFactor      float64 // Base remote interpolation factor
	PredictionWindow int     // Max frames prediction may run ahead of authority
}

// QualityConfig configures the network quality monitor.
type QualityConfig struct {
	SampleWindow int // RTT samples averaged
	Tiers        []QualityTier
}

// HintConfig tunes animation hints and the processed-id ledgers.
type HintConfig struct {
	DefaultTTL        uint32 // Frames a hint lives when the authority sends no TTL
	LedgerCapacity    int
	InboundWalkFrames int // Default duration of a scripted inbound walk
	KnockbackFrames   int // Default duration of a shove knockback
	KnockbackDistance float64
	DriftFlashFrames  int
}

// MovementConfig drives the reference court movement engine.
type MovementConfig struct {
	Step              float64 // Units per move
	BaseBudget        int     // Moves per tick
	TurboBudget       int     // Moves per tick while turbo lasts
	TurboMax          float64
	TurboDrainPerMove float64
	TurboRegenPerTick float64
	StealRecoverTicks int
}

// NetConfig contains transport and authority settings.
type NetConfig struct {
	ProtocolVersion   int
	DefaultAddr       string
	DefaultPort       int
	DefaultProto      string // "ws" or "kcp"
	TickRate          int    // Authority frames per second
	SnapshotQueueSize int
	InputQueueSize    int
	InputRatePerSec   float64 // Per connection packet rate
	InputBurst        int
	PingInterval      time.Duration
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
	SessionTTL        time.Duration
	MaxPlayers        int
	InboundSetupTicks int // Authority ticks spent walking to the inbound spot
	InboundReadyTicks int
	ShotClock         int
	HalfLength        int // Frames per half
	HalftimeTicks     int
	ShoveRange        float64
	ResendFrames      uint32 // Frames hints, animations and events are repeated in snapshots
}

// DebugConfig gates diagnostic output.
type DebugConfig struct {
	Prediction bool // Per-pass reconcile lines
	Interp     bool // Remote interpolation anomalies
	Net        bool // Transport traffic
}

// Global configuration instances
var Prediction PredictionConfig
var Interp InterpConfig
var InputBuffer InputBufferConfig
var Quality QualityConfig
var Hints HintConfig
var Movement MovementConfig
var Net NetConfig
var Debug DebugConfig

func init() {
	Prediction = PredictionConfig{
		PendingInputLimit:  30,
		ReplayHistoryLimit: 30,

		CollisionEpsilonX: 1.5,
		CollisionEpsilonY: 1.5,

		VisualGuardSmallDelta:  2.25,
		VisualGuardWindowTicks: 2,
		VisualGuardMaxSuppress: 2,

		DriftSnapThreshold: 15.0,
		DriftLogMinDelta:   3.0,
		DriftLogInterval:   2 * time.Second,

		CatchUpFrames:   6,
		CatchUpStrength: 0.9,

		BearingOverrideDelta: 1.0,

		ReconcileInterval: 80 * time.Millisecond,
		ReconcileJitter:   5 * time.Millisecond,

		SmallDelta:  1.0,
		MediumDelta: 4.0,
		SmallBand:   StrengthBand{Min: 0.15, Max: 0.35},
		MediumBand:  StrengthBand{Min: 0.3, Max: 0.6},
		LargeBand:   StrengthBand{Min: 0.5, Max: 0.85},
	}

	Interp = InterpConfig{
		SnapDistance:  2.0,
		SmallDistance: 0.5,
		LargeDistance: 1.0,
		ScaleDown:     0.5,
		ScaleUp:       1.5,
		MinBlend:      0.12,
		MaxBlend:      0.9,
	}

	InputBuffer = InputBufferConfig{
		MinFlushInterval:     10 * time.Millisecond,
		MaxFlushInterval:     200 * time.Millisecond,
		DefaultFlushInterval: 50 * time.Millisecond,
	}

	Quality = QualityConfig{
		SampleWindow: 8,
		Tiers: []QualityTier{
			{Name: "good", MaxRTT: 80 * time.Millisecond, FlushInterval: 20 * time.Millisecond, Strength: 0.6, BlendFactor: 0.5, PredictionWindow: 12},
			{Name: "fair", MaxRTT: 160 * time.Millisecond, FlushInterval: 40 * time.Millisecond, Strength: 0.45, BlendFactor: 0.35, PredictionWindow: 10},
			{Name: "poor", FlushInterval: 80 * time.Millisecond, Strength: 0.3, BlendFactor: 0.25, PredictionWindow: 8},
		},
	}

	Hints = HintConfig{
		DefaultTTL:        30,
		LedgerCapacity:    96,
		InboundWalkFrames: 12,
		KnockbackFrames:   8,
		KnockbackDistance: 3.0,
		DriftFlashFrames:  4,
	}

	Movement = MovementConfig{
		Step:              1.0,
		BaseBudget:        1,
		TurboBudget:       2,
		TurboMax:          100,
		TurboDrainPerMove: 2,
		TurboRegenPerTick: 0.25,
		StealRecoverTicks: 20,
	}

	Net = NetConfig{
		ProtocolVersion:   1,
		DefaultAddr:       "127.0.0.1:7373",
		DefaultPort:       7373,
		DefaultProto:      "ws",
		TickRate:          20,
		SnapshotQueueSize: 1,
		InputQueueSize:    64,
		InputRatePerSec:   60,
		InputBurst:        20,
		PingInterval:      time.Second,
		DialTimeout:       5 * time.Second,
		WriteTimeout:      2 * time.Second,
		SessionTTL:        2 * time.Hour,
		MaxPlayers:        4,
		InboundSetupTicks: 12,
		InboundReadyTicks: 20,
		ShotClock:         24,
		HalfLength:        20 * 60 * 3,
		HalftimeTicks:     20 * 5,
		ShoveRange:        2.5,
		ResendFrames:      10,
	}

	Debug = DebugConfig{}
}
