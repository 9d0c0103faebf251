package systems

import (
	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// StartScripted moves a sprite to (toX, toY) over frames ticks and holds the
// animation lock for hold more ticks. A running animation is replaced.
func StartScripted(entry *donburi.Entry, kind netconfig.HintType, toX, toY float64, frames, hold int, fn ease.TweenFunc, onDone func()) {
	sprite := components.Sprite.Get(entry)
	if fn == nil {
		fn = ease.Linear
	}
	d := float32(max(frames, 1))
	scripted := components.ScriptedData{
		Kind:   kind,
		X:      gween.NewSequence(gween.New(float32(sprite.X), float32(toX), d, fn)),
		Y:      gween.NewSequence(gween.New(float32(sprite.Y), float32(toY), d, fn)),
		EndX:   toX,
		EndY:   toY,
		Hold:   max(hold, 0),
		OnDone: onDone,
	}
	if !entry.HasComponent(components.Tween) {
		entry.AddComponent(components.Tween)
	}
	components.Tween.SetValue(entry, scripted)
	sprite.AnimationLocked = true
}

// Scripting reports whether a scripted animation owns the sprite.
func Scripting(entry *donburi.Entry) bool {
	return entry.HasComponent(components.Tween)
}

// FinishScripted jumps a running animation to its end and releases the lock.
func FinishScripted(entry *donburi.Entry) {
	if !entry.HasComponent(components.Tween) {
		return
	}
	scripted := components.Tween.Get(entry)
	sprite := components.Sprite.Get(entry)
	sprite.X, sprite.Y = scripted.EndX, scripted.EndY
	endScripted(entry, scripted.OnDone)
}

// UpdateScriptedAnimations advances every scripted animation by one tick.
func UpdateScriptedAnimations(e *ecs.ECS) {
	StepScripted(e.World)
}

// StepScripted advances every scripted animation in world by one tick.
func StepScripted(world donburi.World) {
	var running []*donburi.Entry
	components.Tween.Each(world, func(entry *donburi.Entry) {
		running = append(running, entry)
	})
	for _, entry := range running {
		scripted := components.Tween.Get(entry)
		sprite := components.Sprite.Get(entry)
		x, y, done := scripted.Step(1)
		sprite.X, sprite.Y = x, y
		if done {
			endScripted(entry, scripted.OnDone)
		}
	}
}

func endScripted(entry *donburi.Entry, onDone func()) {
	entry.RemoveComponent(components.Tween)
	components.Sprite.Get(entry).AnimationLocked = false
	if onDone != nil {
		onDone()
	}
}
