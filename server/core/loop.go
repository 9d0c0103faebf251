package core

import (
	"context"
	"log"
	"time"

	"github.com/automoto/hoopjam-mp/shared/messages"
)

// GameLoop steps the authority on a fixed ticker and hands each snapshot to
// a publish function.
type GameLoop struct {
	authority *Authority
	tickRate  int
	publish   func(ctx context.Context, snap messages.Snapshot)
}

func NewGameLoop(authority *Authority, tickRate int, publish func(ctx context.Context, snap messages.Snapshot)) *GameLoop {
	return &GameLoop{
		authority: authority,
		tickRate:  max(tickRate, 1),
		publish:   publish,
	}
}

// Run ticks until ctx is done.
func (g *GameLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(g.tickRate))
	defer ticker.Stop()

	log.Printf("[loop] started at %d ticks/second", g.tickRate)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[loop] stopped at frame %d", g.authority.Frame())
			return nil
		case <-ticker.C:
			g.tick(ctx)
		}
	}
}

func (g *GameLoop) tick(ctx context.Context) {
	snap := g.authority.Step()
	if g.publish != nil {
		g.publish(ctx, snap)
	}
}
