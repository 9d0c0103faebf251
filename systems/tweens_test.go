package systems

import (
	"testing"

	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

func TestScriptedAnimationHoldsLock(t *testing.T) {
	world := donburi.NewWorld()
	entry := spawnAt(world, 2, 0, 10, 10)
	done := 0
	StartScripted(entry, netconfig.HintInboundWalk, 14, 12, 4, 2, nil, func() { done++ })

	e := ecs.NewECS(world)
	e.AddSystem(UpdateScriptedAnimations)
	for i := 0; i < 5; i++ {
		e.Update()
		if !components.Sprite.Get(entry).AnimationLocked {
			t.Fatalf("lock released after %d ticks", i+1)
		}
	}
	e.Update()

	s := components.Sprite.Get(entry)
	if s.AnimationLocked || Scripting(entry) {
		t.Fatal("lock held after path and hold ended")
	}
	if s.X != 14 || s.Y != 12 {
		t.Fatalf("ended at (%v, %v), want (14, 12)", s.X, s.Y)
	}
	if done != 1 {
		t.Fatalf("onDone called %d times", done)
	}
}

func TestFinishScriptedJumpsToEnd(t *testing.T) {
	world := donburi.NewWorld()
	entry := spawnAt(world, 2, 0, 0, 0)
	StartScripted(entry, netconfig.HintShoveKnockback, 3, 4, 10, 0, nil, nil)
	StepScripted(world)
	FinishScripted(entry)

	if x, y := pos(entry); x != 3 || y != 4 {
		t.Fatalf("finished at (%v, %v)", x, y)
	}
	if components.Sprite.Get(entry).AnimationLocked {
		t.Fatal("finish kept the lock")
	}
	FinishScripted(entry)
}
