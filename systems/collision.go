package systems

import (
	"math"

	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/shared/courtdata"
	"github.com/automoto/hoopjam-mp/shared/gamemath"
	"github.com/automoto/hoopjam-mp/tags"
	"github.com/leap-fish/necs/esync"
	"github.com/solarlune/resolv"
	"github.com/yohamta/donburi"
)

const collisionCellSize = 4

// CollisionGuard rejects moves that would overlap an opponent. Each sprite
// has an epsilon-sized body in a resolv space, so two bodies touch exactly
// when their positions are within epsilon on both axes. The space is only
// the broad phase; the overlap test itself is exact.
type CollisionGuard struct {
	space      *resolv.Space
	epsX, epsY float64
	width      float64
	height     float64
	teams      TeamResolver
	bodies     map[donburi.Entity]*resolv.Object
}

func NewCollisionGuard(court *courtdata.Court, epsX, epsY float64, teams TeamResolver) *CollisionGuard {
	w, h := court.Width+epsX, court.Height+epsY
	if teams == nil {
		teams = DefaultTeams{}
	}
	return &CollisionGuard{
		space:  resolv.NewSpace(int(math.Ceil(w)), int(math.Ceil(h)), collisionCellSize, collisionCellSize),
		epsX:   epsX,
		epsY:   epsY,
		width:  court.Width,
		height: court.Height,
		teams:  teams,
		bodies: make(map[donburi.Entity]*resolv.Object),
	}
}

// Sync moves every body to its sprite's last known position, creating bodies
// for new sprites and dropping bodies of removed ones.
func (g *CollisionGuard) Sync(world donburi.World) {
	for entity, obj := range g.bodies {
		if !world.Valid(entity) {
			g.space.Remove(obj)
			delete(g.bodies, entity)
		}
	}
	for _, entry := range spriteEntries(world) {
		sprite := components.Sprite.Get(entry)
		obj, ok := g.bodies[entry.Entity()]
		if !ok {
			obj = resolv.NewObject(sprite.X, sprite.Y, g.epsX, g.epsY, tags.ResolvSprite, tags.ResolvTeam(sprite.Team))
			obj.SetShape(resolv.NewRectangle(0, 0, g.epsX, g.epsY))
			obj.Data = entry
			g.space.Add(obj)
			g.bodies[entry.Entity()] = obj
			if !entry.HasComponent(components.Body) {
				entry.AddComponent(components.Body)
			}
			components.Body.SetValue(entry, components.BodyData{Object: obj})
		}
		if obj.X != sprite.X || obj.Y != sprite.Y {
			obj.X, obj.Y = sprite.X, sprite.Y
			obj.Update()
		}
	}
}

// Blocked reports whether moving mover to (nx, ny) would overlap a sprite of
// another team, and which one.
func (g *CollisionGuard) Blocked(world donburi.World, mover *donburi.Entry, nx, ny float64) (esync.NetworkId, bool) {
	g.Sync(world)
	team := g.teams.TeamOf(mover)

	var candidates []*donburi.Entry
	body := g.bodies[mover.Entity()]
	if body != nil && g.inSpace(nx, ny) {
		if check := body.Check(nx-body.X, ny-body.Y, tags.ResolvSprite); check != nil {
			for _, obj := range check.ObjectsByTags(tags.ResolvSprite) {
				if e, ok := obj.Data.(*donburi.Entry); ok {
					candidates = append(candidates, e)
				}
			}
		}
	} else {
		// Off the indexed area: scan everyone.
		candidates = spriteEntries(world)
	}

	for _, other := range candidates {
		if other.Entity() == mover.Entity() || !world.Valid(other.Entity()) {
			continue
		}
		if g.teams.TeamOf(other) == team {
			continue
		}
		o := components.Sprite.Get(other)
		if gamemath.Overlaps(nx, ny, o.X, o.Y, g.epsX, g.epsY) {
			id := esync.GetNetworkId(other)
			if id == nil {
				return 0, true
			}
			return *id, true
		}
	}
	return 0, false
}

func (g *CollisionGuard) inSpace(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= g.width && y <= g.height
}

// spriteEntries collects sprite entries so callers may change their
// components while walking the list.
func spriteEntries(world donburi.World) []*donburi.Entry {
	var out []*donburi.Entry
	tags.Sprite.Each(world, func(entry *donburi.Entry) {
		out = append(out, entry)
	})
	return out
}
