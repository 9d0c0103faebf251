package systems

import (
	"fmt"
	"log"

	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/gamemath"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
	"github.com/tanema/gween/ease"
	"github.com/yohamta/donburi"
)

// HintEntry is a cached animation hint. A newer hint with the same type and
// target refreshes it.
type HintEntry struct {
	Type      netconfig.HintType
	Target    esync.NetworkId
	Meta      messages.HintMeta
	ExpiresAt uint32
	Processed bool
}

func hintKey(t netconfig.HintType, target esync.NetworkId) string {
	return fmt.Sprintf("%s:%d", t, target)
}

// HintCache keeps server hints until they expire and runs each one once.
type HintCache struct {
	ctx     *MatchContext
	cfg     config.HintConfig
	entries map[string]HintEntry
	order   []string
}

func NewHintCache(ctx *MatchContext, cfg config.HintConfig) *HintCache {
	return &HintCache{
		ctx:     ctx,
		cfg:     cfg,
		entries: make(map[string]HintEntry),
	}
}

// Ingest inserts or refreshes the hints carried by the snapshot at frame.
func (c *HintCache) Ingest(frame uint32, hints []messages.HintRecord) {
	for _, h := range hints {
		if h.Target == 0 || h.Type == "" {
			continue
		}
		ttl := h.TTL
		if ttl == 0 {
			ttl = c.cfg.DefaultTTL
		}
		key := hintKey(h.Type, h.Target)
		e, ok := c.entries[key]
		if !ok {
			e = HintEntry{Type: h.Type, Target: h.Target}
			c.order = append(c.order, key)
		}
		e.Meta = h.Meta
		e.ExpiresAt = frame + ttl
		c.entries[key] = e
	}
}

// Prune drops every entry that expired before frame.
func (c *HintCache) Prune(frame uint32) {
	entries := make(map[string]HintEntry, len(c.entries))
	order := make([]string, 0, len(c.order))
	for _, key := range c.order {
		e := c.entries[key]
		if e.ExpiresAt < frame {
			continue
		}
		entries[key] = e
		order = append(order, key)
	}
	c.entries, c.order = entries, order
}

// Apply prunes the cache and runs every live hint whose target resolves. It
// returns the hints that ran.
func (c *HintCache) Apply(frame uint32) []HintEntry {
	c.Prune(frame)
	var ran []HintEntry
	for _, key := range c.order {
		e := c.entries[key]
		if e.Processed {
			continue
		}
		entry, ok := c.ctx.entryFor(e.Target)
		if !ok {
			continue
		}
		e.Processed = true
		c.entries[key] = e
		if c.ctx.coordinator(e.Target) {
			continue
		}
		if c.execute(entry, e) {
			ran = append(ran, e)
		}
	}
	return ran
}

func (c *HintCache) execute(entry *donburi.Entry, h HintEntry) bool {
	sprite := components.Sprite.Get(entry)
	m := h.Meta
	switch h.Type {
	case netconfig.HintInboundWalk:
		x, y := c.clamp(m.X, m.Y)
		sprite.Bearing = netconfig.BearingToward(sprite.X, sprite.Y, x, y)
		StartScripted(entry, h.Type, x, y, orDefault(m.Frames, c.cfg.InboundWalkFrames), 0, ease.Linear, nil)
	case netconfig.HintInboundReady:
		FinishScripted(entry)
		sprite.X, sprite.Y = c.clamp(m.X, m.Y)
		sprite.Bearing = m.Bearing
	case netconfig.HintInboundTarget:
		if other, ok := c.ctx.entryFor(m.TargetID); ok {
			o := components.Sprite.Get(other)
			sprite.Bearing = netconfig.BearingToward(sprite.X, sprite.Y, o.X, o.Y)
		} else {
			sprite.Bearing = m.Bearing
		}
	case netconfig.HintDriftSnap:
		FinishScripted(entry)
		sprite.X, sprite.Y = c.clamp(m.X, m.Y)
		StartScripted(entry, h.Type, sprite.X, sprite.Y, 1, orDefault(m.Frames, c.cfg.DriftFlashFrames), ease.Linear, nil)
	case netconfig.HintShoveKnockback:
		x, y := c.clamp(m.X, m.Y)
		sprite.HasDribble = false
		sprite.KnockdownTimer = max(sprite.KnockdownTimer, m.KnockdownFrames)
		StartScripted(entry, h.Type, x, y, orDefault(m.Frames, c.cfg.KnockbackFrames), m.KnockdownFrames, ease.OutQuad, nil)
	default:
		log.Printf("[nethint] unknown hint type %q for %d", h.Type, h.Target)
		return false
	}
	return true
}

func (c *HintCache) clamp(x, y float64) (float64, float64) {
	court := c.ctx.Court
	if court == nil {
		return x, y
	}
	return gamemath.Clamp(x, 0, court.Width), gamemath.Clamp(y, 0, court.Height)
}

func (c *HintCache) Len() int { return len(c.order) }

// Entry returns the cached hint for a type and target.
func (c *HintCache) Entry(t netconfig.HintType, target esync.NetworkId) (HintEntry, bool) {
	e, ok := c.entries[hintKey(t, target)]
	return e, ok
}

// Clear empties the cache.
func (c *HintCache) Clear() {
	c.entries = make(map[string]HintEntry)
	c.order = nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
