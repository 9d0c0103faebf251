package scenes

import (
	"log"
	"time"

	"github.com/automoto/hoopjam-mp/archetypes"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/network"
	"github.com/automoto/hoopjam-mp/shared/courtdata"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/automoto/hoopjam-mp/systems"
	"github.com/dustin/go-humanize"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// Host is an authority running in the same process. The scene steps it
// once per Update and runs its own systems under Exclusive.
type Host interface {
	systems.AuthorityView
	SubmitInputs(id esync.NetworkId, packet messages.InputPacket) error
	Step() messages.Snapshot
	World() donburi.World
	Exclusive(fn func())
}

// MatchConfig wires a match scene. Sink and Source are ignored when Host is
// set; the scene relays through a loopback instead.
type MatchConfig struct {
	LocalID  esync.NetworkId
	Court    *courtdata.Court
	Sink     network.InputSink
	Source   network.SnapshotSource
	Quality  *network.Quality
	TickRate int
	Seed     uint64

	Actions    systems.ActionHandler
	Animations systems.AnimationQueue
	Teams      systems.TeamResolver
	Events     systems.EventHandlers

	Host Host
	// Publish receives every snapshot the host produces, for remote players.
	Publish func(messages.Snapshot)
}

// Inputs cross one flush and one snapshot before the authority sees them.
const pipelineLead = 2

// MatchScene runs the client side of a match: it stamps and batches local
// inputs, predicts the local sprite and reconciles against the authority.
// Update must be called once per authority tick.
type MatchScene struct {
	ecsWorld  *ecs.ECS
	cfg       MatchConfig
	engine    *systems.PredictionEngine
	inputs    *network.InputBuffer
	scheduler *systems.ReconcileScheduler
	sink      network.InputSink
	source    network.SnapshotSource
	loopback  *network.Loopback

	tick    uint64
	flushed int
	now     func() time.Time
}

func NewMatchScene(cfg MatchConfig) *MatchScene {
	if cfg.TickRate <= 0 {
		cfg.TickRate = config.Net.TickRate
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	if cfg.Court == nil {
		court, err := courtdata.LoadDefault()
		if err != nil {
			log.Printf("[match] default court: %v", err)
		}
		cfg.Court = court
	}

	ms := &MatchScene{
		cfg:       cfg,
		inputs:    network.NewInputBuffer(config.InputBuffer),
		scheduler: systems.NewReconcileScheduler(config.Prediction, cfg.Seed),
		sink:      cfg.Sink,
		source:    cfg.Source,
		now:       time.Now,
	}

	var world donburi.World
	var authority systems.AuthorityView
	if cfg.Host != nil {
		world = cfg.Host.World()
		authority = cfg.Host
		ms.loopback = network.NewLoopback()
		ms.loopback.Relay = func(p messages.InputPacket) error {
			return cfg.Host.SubmitInputs(cfg.LocalID, p)
		}
		ms.sink, ms.source = ms.loopback, ms.loopback
	} else {
		world = donburi.NewWorld()
		archetypes.SpawnMatch(world)
	}

	mc := systems.MatchContext{
		World:      world,
		LocalID:    cfg.LocalID,
		Court:      cfg.Court,
		Inputs:     ms.inputs,
		Actions:    cfg.Actions,
		Animations: cfg.Animations,
		Teams:      cfg.Teams,
		Authority:  authority,
		Events:     cfg.Events,
	}
	if cfg.Court != nil {
		mc.Movement = systems.NewCourtMovement(cfg.Court, config.Movement)
	}
	if cfg.Quality != nil {
		mc.Quality = cfg.Quality
	}
	ms.engine = systems.NewPredictionEngine(mc, config.Prediction)

	ms.ecsWorld = ecs.NewECS(world)
	ms.ecsWorld.AddSystem(ms.applyInputs)
	ms.ecsWorld.AddSystem(ms.reconcile)
	ms.ecsWorld.AddSystem(systems.UpdateScriptedAnimations)
	return ms
}

// HandleKey queues a local key press for the next Update.
func (ms *MatchScene) HandleKey(key netconfig.Key, turbo bool) {
	ms.engine.HandleInput(key, turbo)
}

func (ms *MatchScene) Update() {
	ms.tick++
	ms.tune()
	ms.flush()

	host := ms.cfg.Host
	if host == nil {
		ms.ecsWorld.Update()
		return
	}
	snap := host.Step()
	ms.loopback.Publish(snap)
	if ms.cfg.Publish != nil {
		ms.cfg.Publish(snap)
	}
	host.Exclusive(ms.ecsWorld.Update)
}

// tune follows the quality monitor: flush cadence and how far ahead of the
// authority inputs are stamped. A host applies relayed inputs on its next
// step.
func (ms *MatchScene) tune() {
	if ms.cfg.Host != nil {
		ms.engine.SetLeadFrames(1)
		return
	}
	lead := uint32(pipelineLead)
	if q := ms.cfg.Quality; q != nil {
		ms.inputs.SetFlushInterval(q.FlushInterval())
		tickDur := time.Second / time.Duration(ms.cfg.TickRate)
		lead += uint32((q.RTT() + tickDur - 1) / tickDur)
	}
	ms.engine.SetLeadFrames(lead)
}

func (ms *MatchScene) flush() {
	if _, ok := ms.inputs.Flush(ms.now(), ms.sink); ok {
		ms.flushed++
	}
}

func (ms *MatchScene) applyInputs(_ *ecs.ECS) {
	ms.engine.ApplyQueuedInputs(ms.tick)
}

func (ms *MatchScene) reconcile(_ *ecs.ECS) {
	if ms.loopback == nil && !ms.scheduler.Due(ms.now()) {
		return
	}
	ms.engine.Reconcile(ms.tick, ms.source)
}

func (ms *MatchScene) Engine() *systems.PredictionEngine { return ms.engine }

func (ms *MatchScene) World() donburi.World { return ms.ecsWorld.World }

// Close sends whatever is still buffered and logs a match summary.
func (ms *MatchScene) Close() {
	if _, ok := ms.inputs.ForceFlush(ms.now(), ms.sink); ok {
		ms.flushed++
	}
	st := ms.engine.Stats()
	log.Printf("[match] %s ticks, %s packets, %s predicted, %s snapshots (%s stale), %s blends, %s snaps, %s suppressed, max drift %.2f",
		humanize.Comma(int64(ms.tick)), humanize.Comma(int64(ms.flushed)),
		humanize.Comma(int64(st.Predicted)), humanize.Comma(int64(st.Snapshots)),
		humanize.Comma(int64(st.Stale)), humanize.Comma(int64(st.Blends)),
		humanize.Comma(int64(st.Snaps)), humanize.Comma(int64(st.Suppressed)),
		ms.engine.Drift().MaxDelta())
}
