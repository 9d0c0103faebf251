package components

import "github.com/yohamta/donburi"

// NetInterpData tracks interpolation diagnostics for a remote sprite.
type NetInterpData struct {
	Anomalies int     // Invalid coordinates replaced by the prior position
	Snaps     int     // Updates applied without blending
	Blends    int     // Updates blended toward authority
	LastBlend float64 // Factor used by the last blend
}

var NetInterp = donburi.NewComponentType[NetInterpData]()
