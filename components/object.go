package components

import (
	"github.com/solarlune/resolv"
	"github.com/yohamta/donburi"
)

// BodyData is the sprite's footprint in the collision broad phase.
type BodyData struct {
	*resolv.Object
}

var Body = donburi.NewComponentType[BodyData]()
