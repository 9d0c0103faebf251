package systems

import (
	"fmt"
	"log"

	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/network"
	"github.com/automoto/hoopjam-mp/shared/courtdata"
	"github.com/automoto/hoopjam-mp/shared/gamemath"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
)

// MovementEngine applies movement commands to a sprite.
type MovementEngine interface {
	// Apply moves the sprite for key and reports whether anything changed.
	Apply(sprite *components.SpriteData, key netconfig.Key, turbo bool) bool
	// Preview returns where Apply would leave the sprite without mutating it.
	Preview(sprite components.SpriteData, key netconfig.Key, turbo bool) (x, y float64, ok bool)
	// Budget is the number of movement inputs allowed in one tick.
	Budget(sprite components.SpriteData, turbo bool) int
}

// NopMovement never moves anything.
type NopMovement struct{}

func (NopMovement) Apply(*components.SpriteData, netconfig.Key, bool) bool { return false }

func (NopMovement) Preview(s components.SpriteData, _ netconfig.Key, _ bool) (float64, float64, bool) {
	return s.X, s.Y, false
}

func (NopMovement) Budget(components.SpriteData, bool) int { return 1 }

// CourtMovement moves sprites in unit steps inside the court bounds. Turbo
// raises the per-tick budget while the meter lasts.
type CourtMovement struct {
	Court *courtdata.Court
	Cfg   config.MovementConfig
}

func NewCourtMovement(court *courtdata.Court, cfg config.MovementConfig) *CourtMovement {
	return &CourtMovement{Court: court, Cfg: cfg}
}

func (m *CourtMovement) Preview(s components.SpriteData, key netconfig.Key, _ bool) (float64, float64, bool) {
	if !key.IsMovement() || s.KnockdownTimer > 0 {
		return s.X, s.Y, false
	}
	dx, dy := key.Delta()
	x := s.X + float64(dx)*m.Cfg.Step
	y := s.Y + float64(dy)*m.Cfg.Step
	if m.Court != nil {
		x = gamemath.Clamp(x, 0, m.Court.Width)
		y = gamemath.Clamp(y, 0, m.Court.Height)
	}
	return x, y, true
}

func (m *CourtMovement) Apply(s *components.SpriteData, key netconfig.Key, turbo bool) bool {
	x, y, ok := m.Preview(*s, key, turbo)
	if !ok {
		return false
	}
	changed := x != s.X || y != s.Y
	if b, ok := netconfig.BearingFor(key); ok && b != s.Bearing {
		s.Bearing = b
		changed = true
	}
	s.X, s.Y = x, y
	if turbo && s.Turbo >= m.Cfg.TurboDrainPerMove {
		s.Turbo -= m.Cfg.TurboDrainPerMove
		s.TurboActive = true
	} else {
		s.TurboActive = false
	}
	return changed
}

func (m *CourtMovement) Budget(s components.SpriteData, turbo bool) int {
	if turbo && s.Turbo >= m.Cfg.TurboDrainPerMove {
		return m.Cfg.TurboBudget
	}
	return m.Cfg.BaseBudget
}

// ActionHandler executes non-movement keys for immediate local feedback.
type ActionHandler interface {
	HandleAction(entry *donburi.Entry, key netconfig.Key)
}

type NopActions struct{}

func (NopActions) HandleAction(*donburi.Entry, netconfig.Key) {}

// AnimationQueue plays discrete animations. Actor and target may be nil when
// the record does not name them.
type AnimationQueue interface {
	Enqueue(anim messages.AnimationRecord, actor, target *donburi.Entry)
}

type NopAnimations struct{}

func (NopAnimations) Enqueue(messages.AnimationRecord, *donburi.Entry, *donburi.Entry) {}

// TeamResolver maps sprites to teams.
type TeamResolver interface {
	TeamOf(entry *donburi.Entry) int
	TeamName(team int) string
}

// DefaultTeams reads the team from the sprite component.
type DefaultTeams struct {
	Names [2]string
}

func (DefaultTeams) TeamOf(entry *donburi.Entry) int {
	if entry == nil || !entry.HasComponent(components.Sprite) {
		return -1
	}
	return components.Sprite.Get(entry).Team
}

func (d DefaultTeams) TeamName(team int) string {
	if team >= 0 && team < len(d.Names) && d.Names[team] != "" {
		return d.Names[team]
	}
	return fmt.Sprintf("team %d", team)
}

// AuthorityView is implemented by an in-process authority. A client holding
// one runs in the coordinator role.
type AuthorityView interface {
	SimulatesLocally(id esync.NetworkId) bool
}

// QualityView is the tuning the network quality monitor derives.
type QualityView interface {
	Strength() float64
	BlendFactor() float64
	PredictionWindow() int
}

// FixedQuality is a constant QualityView.
type FixedQuality struct {
	Correction float64
	Blend      float64
	Window     int
}

func (f FixedQuality) Strength() float64     { return f.Correction }
func (f FixedQuality) BlendFactor() float64  { return f.Blend }
func (f FixedQuality) PredictionWindow() int { return f.Window }

// EventHandlers receive discrete events after the engine applied their state
// effects.
type EventHandlers map[netconfig.EventType]func(ev messages.EventRecord)

// MatchContext carries everything the engine needs for one match.
type MatchContext struct {
	World      donburi.World
	LocalID    esync.NetworkId
	Court      *courtdata.Court
	Inputs     *network.InputBuffer
	Movement   MovementEngine
	Actions    ActionHandler
	Animations AnimationQueue
	Teams      TeamResolver
	Authority  AuthorityView // nil unless coordinator
	Quality    QualityView
	Events     EventHandlers
}

func (c *MatchContext) withDefaults() {
	if c.Movement == nil {
		c.Movement = NopMovement{}
	}
	if c.Actions == nil {
		c.Actions = NopActions{}
	}
	if c.Animations == nil {
		c.Animations = NopAnimations{}
	}
	if c.Teams == nil {
		c.Teams = DefaultTeams{}
	}
	if c.Quality == nil {
		q := config.Quality.Tiers[0]
		c.Quality = FixedQuality{Correction: q.Strength, Blend: q.BlendFactor, Window: q.PredictionWindow}
	}
	if c.Inputs == nil {
		c.Inputs = network.NewInputBuffer(config.InputBuffer)
	}
	if c.Court == nil {
		court, err := courtdata.LoadDefault()
		if err != nil {
			log.Printf("[netpredict] default court: %v", err)
			court = &courtdata.Court{Width: 80, Height: 40}
		}
		c.Court = court
	}
}

// coordinator reports whether id is simulated by an in-process authority.
func (c *MatchContext) coordinator(id esync.NetworkId) bool {
	return c.Authority != nil && c.Authority.SimulatesLocally(id)
}

// entryFor resolves a network id in the match world.
func (c *MatchContext) entryFor(id esync.NetworkId) (*donburi.Entry, bool) {
	if id == 0 {
		return nil, false
	}
	entity := esync.FindByNetworkId(c.World, id)
	if !c.World.Valid(entity) {
		return nil, false
	}
	return c.World.Entry(entity), true
}

// resolveOptional maps an optional id to its entry. A zero id resolves to nil.
func (c *MatchContext) resolveOptional(id esync.NetworkId) (*donburi.Entry, bool) {
	if id == 0 {
		return nil, true
	}
	return c.entryFor(id)
}
