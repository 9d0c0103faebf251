// Package netconfig defines lightweight enumerations shared between the
// predicting client and the authority. It must have zero dependencies on
// donburi, resolv or any transport so both sides can import it freely.
package netconfig

import "strings"

// Key is a single input symbol produced by the local player.
type Key uint8

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyUpLeft
	KeyUpRight
	KeyDownLeft
	KeyDownRight
	KeyShoot
	KeyPass
	KeyShove
	KeyCount // Must be last
)

var keyNames = [KeyCount]string{
	KeyNone:      "none",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyLeft:      "left",
	KeyRight:     "right",
	KeyUpLeft:    "up_left",
	KeyUpRight:   "up_right",
	KeyDownLeft:  "down_left",
	KeyDownRight: "down_right",
	KeyShoot:     "shoot",
	KeyPass:      "pass",
	KeyShove:     "shove",
}

func (k Key) String() string {
	if k < KeyCount {
		return keyNames[k]
	}
	return "unknown"
}

// Valid reports whether k is a known, non-empty key.
func (k Key) Valid() bool {
	return k > KeyNone && k < KeyCount
}

// IsMovement reports whether the key moves the sprite rather than
// triggering an action.
func (k Key) IsMovement() bool {
	return k >= KeyUp && k <= KeyDownRight
}

// Delta returns the unit step for a movement key. Court Y grows downward.
func (k Key) Delta() (dx, dy int) {
	switch k {
	case KeyUp:
		return 0, -1
	case KeyDown:
		return 0, 1
	case KeyLeft:
		return -1, 0
	case KeyRight:
		return 1, 0
	case KeyUpLeft:
		return -1, -1
	case KeyUpRight:
		return 1, -1
	case KeyDownLeft:
		return -1, 1
	case KeyDownRight:
		return 1, 1
	}
	return 0, 0
}

// ParseKey maps door-style key names (and the classic numpad digits) to keys.
func ParseKey(s string) (Key, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "8", "w":
		return KeyUp, true
	case "2", "s":
		return KeyDown, true
	case "4", "a":
		return KeyLeft, true
	case "6", "d":
		return KeyRight, true
	case "7", "q":
		return KeyUpLeft, true
	case "9", "e":
		return KeyUpRight, true
	case "1", "z":
		return KeyDownLeft, true
	case "3", "c":
		return KeyDownRight, true
	case " ", "space":
		return KeyShoot, true
	}
	for k := KeyUp; k < KeyCount; k++ {
		if keyNames[k] == s {
			return k, true
		}
	}
	return KeyNone, false
}

// Bearing is the discrete facing direction of a sprite.
type Bearing uint8

const (
	BearingN Bearing = iota
	BearingNE
	BearingE
	BearingSE
	BearingS
	BearingSW
	BearingW
	BearingNW
)

var bearingNames = [...]string{"n", "ne", "e", "se", "s", "sw", "w", "nw"}

func (b Bearing) String() string {
	if int(b) < len(bearingNames) {
		return bearingNames[b]
	}
	return "unknown"
}

// BearingFor returns the bearing a movement key turns the sprite to.
func BearingFor(k Key) (Bearing, bool) {
	switch k {
	case KeyUp:
		return BearingN, true
	case KeyUpRight:
		return BearingNE, true
	case KeyRight:
		return BearingE, true
	case KeyDownRight:
		return BearingSE, true
	case KeyDown:
		return BearingS, true
	case KeyDownLeft:
		return BearingSW, true
	case KeyLeft:
		return BearingW, true
	case KeyUpLeft:
		return BearingNW, true
	}
	return 0, false
}

// BearingToward returns the 8-way bearing pointing from (x0,y0) to (x1,y1).
func BearingToward(x0, y0, x1, y1 float64) Bearing {
	dx, dy := x1-x0, y1-y0
	var sx, sy int
	switch {
	case dx > 0.5:
		sx = 1
	case dx < -0.5:
		sx = -1
	}
	switch {
	case dy > 0.5:
		sy = 1
	case dy < -0.5:
		sy = -1
	}
	for k := KeyUp; k <= KeyDownRight; k++ {
		kx, ky := k.Delta()
		if kx == sx && ky == sy {
			b, _ := BearingFor(k)
			return b
		}
	}
	return BearingS
}

// Phase is the server-declared game phase. The client never infers it.
type Phase uint8

const (
	PhaseNormalPlay Phase = iota
	PhaseShotInProgress
	PhaseRebound
	PhaseInboundSetup
	PhaseInboundReady
	PhaseDeadBall
	PhaseHalftime
	PhaseGameOver
	PhaseCount // Must be last
)

var phaseNames = [PhaseCount]string{
	PhaseNormalPlay:     "NORMAL_PLAY",
	PhaseShotInProgress: "SHOT_IN_PROGRESS",
	PhaseRebound:        "REBOUND",
	PhaseInboundSetup:   "INBOUND_SETUP",
	PhaseInboundReady:   "INBOUND_READY",
	PhaseDeadBall:       "DEAD_BALL",
	PhaseHalftime:       "HALFTIME",
	PhaseGameOver:       "GAME_OVER",
}

func (p Phase) String() string {
	if p < PhaseCount {
		return phaseNames[p]
	}
	return "UNKNOWN"
}

// ParsePhase resolves a wire phase name. Unknown names return false.
func ParsePhase(name string) (Phase, bool) {
	for p := PhaseNormalPlay; p < PhaseCount; p++ {
		if phaseNames[p] == name {
			return p, true
		}
	}
	return PhaseNormalPlay, false
}

// HintType identifies a server-issued animation hint.
type HintType string

const (
	HintInboundWalk    HintType = "inbound_walk"
	HintInboundReady   HintType = "inbound_ready"
	HintInboundTarget  HintType = "inbound_target"
	HintDriftSnap      HintType = "drift_snap"
	HintShoveKnockback HintType = "shove_knockback"
)

// AnimationType identifies a discrete animation payload.
type AnimationType string

const (
	AnimShot      AnimationType = "shot"
	AnimPass      AnimationType = "pass"
	AnimDunk      AnimationType = "dunk"
	AnimRebound   AnimationType = "rebound"
	AnimBallClear AnimationType = "ball_clear"
)

// EventType identifies a discrete game event.
type EventType string

const (
	EventAnnouncer      EventType = "announcer"
	EventShoveResult    EventType = "shove_result"
	EventReboundSecured EventType = "rebound_secured"
	EventReboundCreated EventType = "rebound_created"
	EventTurboUpdate    EventType = "turbo_update"
	EventCooldownSync   EventType = "cooldown_sync"
	EventDeadDribble    EventType = "dead_dribble"
	EventHalftime       EventType = "halftime"
)

// CommitSource records why a position commit was made.
type CommitSource string

const (
	SourcePrediction       CommitSource = "prediction"
	SourcePredictionReplay CommitSource = "prediction_replay"
	SourceForcedPosition   CommitSource = "forced_position"
	SourceDriftSnap        CommitSource = "drift_snap"
	SourceAuthorityBlend   CommitSource = "authority_blend"
	SourceAuthoritySnap    CommitSource = "authority_snap"
	SourceHint             CommitSource = "hint"
)
