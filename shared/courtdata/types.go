// Package courtdata parses the TMX court layout shared by client and
// authority. Pure data only.
package courtdata

// Court holds the playable area and the fixed spots the authority uses.
type Court struct {
	Width, Height float64
	Spawns        []Spot
	Inbounds      []Spot
	Hoops         []Spot
}

// Spot is a named location on the court tied to a team. Slot orders spawns
// within a team.
type Spot struct {
	X, Y float64
	Team int
	Slot int
}

// Contains reports whether (x, y) lies within the court bounds.
func (c *Court) Contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= c.Width && y <= c.Height
}

// SpawnFor returns the spawn for a team slot, falling back to the court
// center when the layout has no matching spawn.
func (c *Court) SpawnFor(team, slot int) Spot {
	for _, s := range c.Spawns {
		if s.Team == team && s.Slot == slot {
			return s
		}
	}
	return Spot{X: c.Width / 2, Y: c.Height / 2, Team: team, Slot: slot}
}

// InboundFor returns the inbound spot for a team.
func (c *Court) InboundFor(team int) (Spot, bool) {
	for _, s := range c.Inbounds {
		if s.Team == team {
			return s, true
		}
	}
	return Spot{}, false
}

// HoopFor returns the hoop a team shoots at, falling back to the middle of
// the far baseline.
func (c *Court) HoopFor(team int) Spot {
	for _, s := range c.Hoops {
		if s.Team == team {
			return s
		}
	}
	x := c.Width
	if team == 1 {
		x = 0
	}
	return Spot{X: x, Y: c.Height / 2, Team: team}
}
