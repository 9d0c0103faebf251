package messages

import (
	"math"

	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
)

// PositionRecord is the authoritative state of one sprite.
type PositionRecord struct {
	ID                  esync.NetworkId   `codec:"id"`
	Team                int               `codec:"team"`
	X                   float64           `codec:"x"`
	Y                   float64           `codec:"y"`
	Bearing             netconfig.Bearing `codec:"b"`
	HasDribble          bool              `codec:"dr,omitempty"`
	KnockdownTimer      int               `codec:"kd,omitempty"`
	StealRecoverFrames  int               `codec:"sr,omitempty"`
	TurboActive         bool              `codec:"ta,omitempty"`
	Turbo               float64           `codec:"tm,omitempty"`
	OnFire              bool              `codec:"fire,omitempty"`
	ForcedPositionReset bool              `codec:"force,omitempty"`
}

// ValidCoords reports whether both coordinates are finite numbers.
func (r PositionRecord) ValidCoords() bool {
	return !math.IsNaN(r.X) && !math.IsNaN(r.Y) && !math.IsInf(r.X, 0) && !math.IsInf(r.Y, 0)
}

// BallState is the authoritative ball. CarrierID is zero when the ball is loose.
type BallState struct {
	X             float64         `codec:"x"`
	Y             float64         `codec:"y"`
	CarrierID     esync.NetworkId `codec:"carrier,omitempty"`
	ReboundActive bool            `codec:"rb,omitempty"`
	ReboundX      float64         `codec:"rbx,omitempty"`
	ReboundY      float64         `codec:"rby,omitempty"`
}

// GameState is the aggregate match state.
type GameState struct {
	Score                 [2]int `codec:"score"`
	ShotClock             int    `codec:"shot"`
	TimeRemaining         int    `codec:"time"`
	CurrentTeam           int    `codec:"team"`
	Inbounding            bool   `codec:"inb,omitempty"`
	FrontcourtEstablished bool   `codec:"fc,omitempty"`
	ShotInProgress        bool   `codec:"sip,omitempty"`
	Half                  int    `codec:"half"`
	IsHalftime            bool   `codec:"ht,omitempty"`
	DeadDribbleTimer      int    `codec:"ddt,omitempty"`
	Phase                 string `codec:"phase"`
}

// Snapshot is one authoritative tick. It is immutable once received and is
// superseded only by a snapshot with a higher frame number.
type Snapshot struct {
	Frame          uint32                  `codec:"frame"`
	Players        []PositionRecord        `codec:"players"`
	PlayerIndex    map[esync.NetworkId]int `codec:"index"`
	Ball           BallState               `codec:"ball"`
	Game           GameState               `codec:"game"`
	AnimationHints []HintRecord            `codec:"hints,omitempty"`
	Animations     []AnimationRecord       `codec:"anims,omitempty"`
	Events         []EventRecord           `codec:"events,omitempty"`
}

// NewSnapshot builds a snapshot and its player index from the given records.
func NewSnapshot(frame uint32, players []PositionRecord) Snapshot {
	s := Snapshot{Frame: frame, Players: players}
	s.reindex()
	return s
}

// Sanitize drops player records that cannot be addressed (zero id, duplicate
// id) and rebuilds the index when it disagrees with the records. It returns
// the number of dropped records.
func (s *Snapshot) Sanitize() int {
	kept := make([]PositionRecord, 0, len(s.Players))
	seen := make(map[esync.NetworkId]struct{}, len(s.Players))
	for _, p := range s.Players {
		if p.ID == 0 {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		kept = append(kept, p)
	}
	dropped := len(s.Players) - len(kept)
	s.Players = kept
	if dropped > 0 || !s.indexConsistent() {
		s.reindex()
	}
	return dropped
}

// Lookup returns the record for id.
func (s *Snapshot) Lookup(id esync.NetworkId) (PositionRecord, bool) {
	if idx, ok := s.PlayerIndex[id]; ok && idx >= 0 && idx < len(s.Players) && s.Players[idx].ID == id {
		return s.Players[idx], true
	}
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PositionRecord{}, false
}

func (s *Snapshot) indexConsistent() bool {
	if len(s.PlayerIndex) != len(s.Players) {
		return false
	}
	for id, idx := range s.PlayerIndex {
		if idx < 0 || idx >= len(s.Players) || s.Players[idx].ID != id {
			return false
		}
	}
	return true
}

func (s *Snapshot) reindex() {
	s.PlayerIndex = make(map[esync.NetworkId]int, len(s.Players))
	for i, p := range s.Players {
		s.PlayerIndex[p.ID] = i
	}
}
