package archetypes

import (
	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/tags"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
)

var (
	Sprite = newArchetype(
		tags.Sprite,
		components.Sprite,
		components.NetInterp,
		components.Body,
		esync.NetworkIdComponent,
	)
	Ball = newArchetype(
		tags.Ball,
		components.Ball,
	)
	Match = newArchetype(
		tags.Match,
		components.Match,
	)
)

type archetype struct {
	components []donburi.IComponentType
}

func newArchetype(cs ...donburi.IComponentType) *archetype {
	return &archetype{
		components: cs,
	}
}

func (a *archetype) Spawn(w donburi.World, cs ...donburi.IComponentType) *donburi.Entry {
	all := make([]donburi.IComponentType, 0, len(a.components)+len(cs))
	all = append(all, a.components...)
	all = append(all, cs...)
	return w.Entry(w.Create(all...))
}

// SpawnSprite creates a networked sprite with the given identity.
func SpawnSprite(w donburi.World, id esync.NetworkId, sprite components.SpriteData) *donburi.Entry {
	e := Sprite.Spawn(w)
	esync.NetworkIdComponent.SetValue(e, id)
	components.Sprite.SetValue(e, sprite)
	return e
}

// SpawnMatch creates the ball and match singletons.
func SpawnMatch(w donburi.World) (ball, match *donburi.Entry) {
	return Ball.Spawn(w), Match.Spawn(w)
}
