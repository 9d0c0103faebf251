package core

import (
	"errors"
	"testing"

	"github.com/automoto/hoopjam-mp/components"
	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
)

func testNet() config.NetConfig {
	cfg := config.Net
	cfg.InboundSetupTicks = 2
	cfg.InboundReadyTicks = 2
	cfg.HalftimeTicks = 2
	return cfg
}

func newTestAuthority(t *testing.T, net config.NetConfig) *Authority {
	t.Helper()
	a, err := NewAuthority(AuthorityConfig{Name: "test", Net: net, Seed: 1})
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	return a
}

func addPlayers(t *testing.T, a *Authority, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, _, err := a.AddPlayer("p"); err != nil {
			t.Fatalf("AddPlayer: %v", err)
		}
	}
}

func stepUntil(t *testing.T, a *Authority, phase netconfig.Phase, limit int) messages.Snapshot {
	t.Helper()
	for i := 0; i < limit; i++ {
		snap := a.Step()
		if snap.Game.Phase == phase.String() {
			return snap
		}
	}
	t.Fatalf("phase %s not reached in %d steps (at %s)", phase, limit, a.Phase())
	return messages.Snapshot{}
}

func place(a *Authority, id esync.NetworkId, x, y float64) {
	s := components.Sprite.Get(a.roster[id].entry)
	s.X, s.Y = x, y
}

func submit(t *testing.T, a *Authority, id esync.NetworkId, frame uint32, keys ...netconfig.Key) {
	t.Helper()
	var packet messages.InputPacket
	for _, k := range keys {
		packet.Inputs = append(packet.Inputs, messages.InputRecord{PlayerID: id, Key: k, Frame: frame})
	}
	if err := a.SubmitInputs(id, packet); err != nil {
		t.Fatalf("SubmitInputs: %v", err)
	}
}

func hasHint(snap messages.Snapshot, typ netconfig.HintType, target esync.NetworkId) (messages.HintRecord, bool) {
	for _, h := range snap.AnimationHints {
		if h.Type == typ && h.Target == target {
			return h, true
		}
	}
	return messages.HintRecord{}, false
}

func hasEvent(snap messages.Snapshot, typ netconfig.EventType) (messages.EventRecord, bool) {
	for _, ev := range snap.Events {
		if ev.Type == typ {
			return ev, true
		}
	}
	return messages.EventRecord{}, false
}

func TestAddPlayerBalancesTeams(t *testing.T) {
	a := newTestAuthority(t, testNet())
	want := []int{0, 1, 0, 1}
	for i, team := range want {
		id, got, err := a.AddPlayer("p")
		if err != nil {
			t.Fatalf("AddPlayer %d: %v", i, err)
		}
		if got != team || a.Team(id) != team {
			t.Fatalf("player %d on team %d, want %d", id, got, team)
		}
	}
	if _, _, err := a.AddPlayer("late"); !errors.Is(err, ErrMatchFull) {
		t.Fatalf("fifth player: got %v, want ErrMatchFull", err)
	}
}

func TestInputsApplyAtTheirFrame(t *testing.T) {
	a := newTestAuthority(t, testNet())
	addPlayers(t, a, 1)
	snap := stepUntil(t, a, netconfig.PhaseNormalPlay, 10)
	start, _ := snap.Lookup(1)

	f := snap.Frame
	submit(t, a, 1, f+2, netconfig.KeyRight)
	submit(t, a, 1, f+1, netconfig.KeyDown)

	snap = a.Step()
	rec, _ := snap.Lookup(1)
	if rec.X != start.X || rec.Y != start.Y+1 {
		t.Fatalf("frame %d: at (%v, %v), want only the down move", snap.Frame, rec.X, rec.Y)
	}
	snap = a.Step()
	rec, _ = snap.Lookup(1)
	if rec.X != start.X+1 || rec.Bearing != netconfig.BearingE {
		t.Fatalf("frame %d: at (%v, %v) facing %s", snap.Frame, rec.X, rec.Y, rec.Bearing)
	}
}

func TestSubmitRejectsForeignRecords(t *testing.T) {
	a := newTestAuthority(t, testNet())
	addPlayers(t, a, 2)
	err := a.SubmitInputs(1, messages.InputPacket{Inputs: []messages.InputRecord{
		{PlayerID: 2, Key: netconfig.KeyUp, Frame: 1},
		{PlayerID: 1, Key: netconfig.KeyNone, Frame: 1},
		{PlayerID: 1, Key: netconfig.KeyUp, Frame: 1},
	}})
	if err != nil {
		t.Fatalf("SubmitInputs: %v", err)
	}
	if got := a.Stats().Rejected; got != 2 {
		t.Fatalf("rejected = %d, want 2", got)
	}
	if err := a.SubmitInputs(9, messages.InputPacket{}); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("unknown player: got %v", err)
	}
}

func TestMovementBudgetSpreadsInputs(t *testing.T) {
	a := newTestAuthority(t, testNet())
	addPlayers(t, a, 1)
	snap := stepUntil(t, a, netconfig.PhaseNormalPlay, 10)
	start, _ := snap.Lookup(1)
	submit(t, a, 1, snap.Frame+1, netconfig.KeyDown, netconfig.KeyDown, netconfig.KeyDown)

	for i := 1; i <= 3; i++ {
		snap = a.Step()
		rec, _ := snap.Lookup(1)
		if rec.Y != start.Y+float64(i) {
			t.Fatalf("step %d: y = %v, want %v", i, rec.Y, start.Y+float64(i))
		}
	}
}

func TestCollisionBlocksOpponent(t *testing.T) {
	a := newTestAuthority(t, testNet())
	addPlayers(t, a, 2)
	stepUntil(t, a, netconfig.PhaseNormalPlay, 10)
	place(a, 1, 10, 20)
	place(a, 2, 11, 20)

	submit(t, a, 1, a.Frame()+1, netconfig.KeyRight)
	snap := a.Step()
	rec, _ := snap.Lookup(1)
	if rec.X != 10 {
		t.Fatalf("blocked move applied: x = %v", rec.X)
	}
	if a.Stats().Blocked != 1 {
		t.Fatalf("blocked = %d, want 1", a.Stats().Blocked)
	}
}

func TestInboundSequence(t *testing.T) {
	a := newTestAuthority(t, testNet())
	addPlayers(t, a, 3) // 1 and 3 on team 0, 2 on team 1

	snap := a.Step()
	if snap.Game.Phase != netconfig.PhaseInboundSetup.String() || !snap.Game.Inbounding {
		t.Fatalf("first phase = %s", snap.Game.Phase)
	}
	walk, ok := hasHint(snap, netconfig.HintInboundWalk, 1)
	if !ok || walk.Meta.X != 2 || walk.Meta.Frames != 2 {
		t.Fatalf("inbounder walk hint = %+v, %v", walk, ok)
	}

	// Input during setup is ignored.
	submit(t, a, 2, snap.Frame+1, netconfig.KeyUp)
	snap = a.Step()
	if snap.Game.Phase != netconfig.PhaseInboundReady.String() {
		t.Fatalf("second phase = %s", snap.Game.Phase)
	}
	for _, rec := range snap.Players {
		if !rec.ForcedPositionReset {
			t.Fatalf("player %d not flagged for a forced reset", rec.ID)
		}
	}
	if a.Stats().Ignored != 1 {
		t.Fatalf("ignored = %d, want 1", a.Stats().Ignored)
	}
	if snap.Ball.CarrierID != 1 {
		t.Fatalf("carrier = %d, want inbounder 1", snap.Ball.CarrierID)
	}
	target, ok := hasHint(snap, netconfig.HintInboundTarget, 1)
	if !ok || target.Meta.TargetID != 3 {
		t.Fatalf("inbound target hint = %+v, %v", target, ok)
	}

	snap = a.Step()
	if rec, _ := snap.Lookup(1); rec.ForcedPositionReset {
		t.Fatal("forced reset repeated")
	}
	snap = a.Step()
	if snap.Game.Phase != netconfig.PhaseNormalPlay.String() || snap.Ball.CarrierID != 3 {
		t.Fatalf("after inbound: phase %s carrier %d", snap.Game.Phase, snap.Ball.CarrierID)
	}
	if len(snap.Animations) == 0 || snap.Animations[len(snap.Animations)-1].Type != netconfig.AnimPass {
		t.Fatalf("inbound pass not animated: %+v", snap.Animations)
	}
}

func TestShoveStealsAndKnocksBack(t *testing.T) {
	a := newTestAuthority(t, testNet())
	addPlayers(t, a, 2)
	stepUntil(t, a, netconfig.PhaseNormalPlay, 10)
	place(a, 1, 10, 20)
	place(a, 2, 12, 20)

	submit(t, a, 2, a.Frame()+1, netconfig.KeyShove)
	snap := a.Step()

	if snap.Ball.CarrierID != 2 || snap.Game.CurrentTeam != 1 {
		t.Fatalf("steal failed: carrier %d team %d", snap.Ball.CarrierID, snap.Game.CurrentTeam)
	}
	hint, ok := hasHint(snap, netconfig.HintShoveKnockback, 1)
	if !ok || hint.Meta.X != 10-config.Hints.KnockbackDistance || hint.Meta.Frames != config.Hints.KnockbackFrames {
		t.Fatalf("knockback hint = %+v, %v", hint, ok)
	}
	victim, _ := snap.Lookup(1)
	if victim.KnockdownTimer <= 0 || victim.HasDribble || victim.X != hint.Meta.X {
		t.Fatalf("victim = %+v", victim)
	}
	if _, ok := hasEvent(snap, netconfig.EventShoveResult); !ok {
		t.Fatal("no shove_result event")
	}
	if ev, ok := hasEvent(snap, netconfig.EventCooldownSync); !ok || ev.Actor != 2 {
		t.Fatalf("cooldown event = %+v, %v", ev, ok)
	}

	// Cooldown blocks an immediate second shove.
	submit(t, a, 2, a.Frame()+1, netconfig.KeyShove)
	a.Step()
	count := 0
	for _, ev := range a.Step().Events {
		if ev.Type == netconfig.EventShoveResult {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("shove results = %d, want 1", count)
	}
}

func TestDunkScores(t *testing.T) {
	a := newTestAuthority(t, testNet())
	addPlayers(t, a, 1)
	stepUntil(t, a, netconfig.PhaseNormalPlay, 10)
	hoop := a.court.HoopFor(0)
	place(a, 1, hoop.X-2, hoop.Y)

	submit(t, a, 1, a.Frame()+1, netconfig.KeyShoot)
	snap := a.Step()
	if snap.Game.Phase != netconfig.PhaseShotInProgress.String() || !snap.Game.ShotInProgress {
		t.Fatalf("phase after shot = %s", snap.Game.Phase)
	}
	if snap.Ball.CarrierID != 0 {
		t.Fatal("ball still carried during the shot")
	}

	snap = stepUntil(t, a, netconfig.PhaseDeadBall, 30)
	if snap.Game.Score[0] != 2 {
		t.Fatalf("score = %v, want 2-0", snap.Game.Score)
	}
	if ev, ok := hasEvent(snap, netconfig.EventAnnouncer); !ok || ev.Text == "" {
		t.Fatal("no announcer line for the basket")
	}
	stepUntil(t, a, netconfig.PhaseInboundSetup, 30)
}

func TestHalftimeThenGameOver(t *testing.T) {
	net := testNet()
	net.HalfLength = 6
	a := newTestAuthority(t, net)
	addPlayers(t, a, 2)

	snap := stepUntil(t, a, netconfig.PhaseHalftime, 30)
	if !snap.Game.IsHalftime {
		t.Fatal("halftime flag not set")
	}
	if _, ok := hasEvent(snap, netconfig.EventHalftime); !ok {
		t.Fatal("no halftime event")
	}
	snap = stepUntil(t, a, netconfig.PhaseInboundSetup, 10)
	if snap.Game.Half != 2 || snap.Game.IsHalftime || snap.Game.CurrentTeam != 1 {
		t.Fatalf("second half state = %+v", snap.Game)
	}
	stepUntil(t, a, netconfig.PhaseGameOver, 30)
}

func TestRemoveCarrierDropsBall(t *testing.T) {
	a := newTestAuthority(t, testNet())
	addPlayers(t, a, 2)
	snap := stepUntil(t, a, netconfig.PhaseInboundReady, 10)
	if snap.Ball.CarrierID != 1 {
		t.Fatalf("carrier = %d", snap.Ball.CarrierID)
	}
	a.RemovePlayer(1)
	snap = a.Step()
	if snap.Ball.CarrierID != 0 || len(snap.Players) != 1 {
		t.Fatalf("after removal: carrier %d, players %d", snap.Ball.CarrierID, len(snap.Players))
	}
}

func TestSimulatesLocallyOnlyWithSharedWorld(t *testing.T) {
	private := newTestAuthority(t, testNet())
	addPlayers(t, private, 1)
	if private.SimulatesLocally(1) {
		t.Fatal("private authority claims a client sprite")
	}

	shared, err := NewAuthority(AuthorityConfig{World: donburi.NewWorld(), Net: testNet()})
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	addPlayers(t, shared, 1)
	if !shared.SimulatesLocally(1) || shared.SimulatesLocally(2) {
		t.Fatal("shared authority roster check wrong")
	}
}

func TestOutboxRepeatsThenExpires(t *testing.T) {
	o := newOutbox[int](3)
	o.add(1, 7)
	for frame := uint32(1); frame <= 3; frame++ {
		if got := o.live(frame); len(got) != 1 || got[0] != 7 {
			t.Fatalf("frame %d: live = %v", frame, got)
		}
	}
	if got := o.live(4); got != nil {
		t.Fatalf("expired record still live: %v", got)
	}
}
