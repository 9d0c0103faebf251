package tags

import "github.com/yohamta/donburi"

var (
	Sprite = donburi.NewTag().SetName("Sprite")
	Ball   = donburi.NewTag().SetName("Ball")
	Match  = donburi.NewTag().SetName("Match")
)

// Resolv tags for the collision broad phase
const (
	ResolvSprite = "sprite"
	ResolvTeam0  = "team0"
	ResolvTeam1  = "team1"
)

// ResolvTeam returns the resolv tag for a team index.
func ResolvTeam(team int) string {
	if team == 1 {
		return ResolvTeam1
	}
	return ResolvTeam0
}
