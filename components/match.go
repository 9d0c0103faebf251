package components

import (
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
)

// BallData mirrors the authoritative ball.
type BallData struct {
	X, Y          float64
	CarrierID     esync.NetworkId // Zero when loose
	ReboundActive bool
	ReboundX      float64
	ReboundY      float64
}

var Ball = donburi.NewComponentType[BallData]()

// MatchData stores the aggregate game state. This is a singleton component.
type MatchData struct {
	Score                 [2]int
	ShotClock             int
	TimeRemaining         int
	CurrentTeam           int
	Inbounding            bool
	FrontcourtEstablished bool
	ShotInProgress        bool
	Half                  int
	IsHalftime            bool
	DeadDribbleTimer      int
	Phase                 netconfig.Phase
	Frame                 uint32 // Frame of the snapshot last applied

	Announcer      string // Latest announcer line
	AnnouncerTimer int
}

var Match = donburi.NewComponentType[MatchData]()

// Leader returns the leading team, or -1 when tied.
func (m *MatchData) Leader() int {
	switch {
	case m.Score[0] > m.Score[1]:
		return 0
	case m.Score[1] > m.Score[0]:
		return 1
	}
	return -1
}
