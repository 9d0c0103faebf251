package components

import (
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
)

// SpriteData is a controllable player on the court. Identity lives in the
// esync.NetworkIdComponent on the same entity.
type SpriteData struct {
	ControlledBy esync.NetworkId // Whose prediction owns this sprite
	Team         int

	X, Y    float64
	Bearing netconfig.Bearing

	HasDribble         bool
	TurboActive        bool
	OnFire             bool
	KnockdownTimer     int
	StealRecoverFrames int
	Turbo              float64

	// Last authoritative position seen for this sprite
	LastAuthX, LastAuthY float64
	HasLastAuth          bool

	// While set only the scripted animation may move the sprite
	AnimationLocked bool
}

var Sprite = donburi.NewComponentType[SpriteData]()

// SetAuthShadow records the authoritative position and reports whether it
// matches the previous one.
func (s *SpriteData) SetAuthShadow(x, y float64) (unchanged bool) {
	unchanged = s.HasLastAuth && s.LastAuthX == x && s.LastAuthY == y
	s.LastAuthX, s.LastAuthY = x, y
	s.HasLastAuth = true
	return unchanged
}
