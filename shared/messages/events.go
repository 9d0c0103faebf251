package messages

import (
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
)

// HintMeta carries the parameters of a scripted hint. Which fields matter
// depends on the hint type.
type HintMeta struct {
	X               float64           `codec:"x,omitempty"`
	Y               float64           `codec:"y,omitempty"`
	Frames          int               `codec:"frames,omitempty"`
	Bearing         netconfig.Bearing `codec:"bearing,omitempty"`
	TargetID        esync.NetworkId   `codec:"tid,omitempty"` // Entity to face (inbound_target)
	KnockdownFrames int               `codec:"kd,omitempty"`
}

// HintRecord is a server-issued animation hint. TTL is measured in frames
// from the snapshot that carries it.
type HintRecord struct {
	Type   netconfig.HintType `codec:"type"`
	Target esync.NetworkId    `codec:"target"`
	TTL    uint32             `codec:"ttl,omitempty"`
	Meta   HintMeta           `codec:"meta"`
}

// AnimationRecord is a discrete animation payload with an authority-issued ID.
type AnimationRecord struct {
	ID     uint64                  `codec:"id"`
	Type   netconfig.AnimationType `codec:"type"`
	Actor  esync.NetworkId         `codec:"actor,omitempty"`
	Target esync.NetworkId         `codec:"target,omitempty"`
	FromX  float64                 `codec:"fx,omitempty"`
	FromY  float64                 `codec:"fy,omitempty"`
	ToX    float64                 `codec:"tx,omitempty"`
	ToY    float64                 `codec:"ty,omitempty"`
	Made   bool                    `codec:"made,omitempty"`
	Frames int                     `codec:"frames,omitempty"`
}

// EventRecord is a discrete game event. Only the fields its type uses are set.
type EventRecord struct {
	ID     uint64              `codec:"id"`
	Type   netconfig.EventType `codec:"type"`
	Actor  esync.NetworkId     `codec:"actor,omitempty"`
	Target esync.NetworkId     `codec:"target,omitempty"`
	Team   int                 `codec:"team,omitempty"`
	Text   string              `codec:"text,omitempty"`
	Value  float64             `codec:"value,omitempty"`
	Frames int                 `codec:"frames,omitempty"`
	X      float64             `codec:"x,omitempty"`
	Y      float64             `codec:"y,omitempty"`
}
