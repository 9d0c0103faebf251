package messages

import (
	"errors"
	"testing"

	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/leap-fish/necs/esync"
)

func rawEncode(t *testing.T, env Envelope) []byte {
	t.Helper()
	var out []byte
	if err := codec.NewEncoderBytes(&out, msgpackHandle).Encode(&env); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out
}

func TestSnapshotSurvivesTheWire(t *testing.T) {
	snap := NewSnapshot(42, []PositionRecord{
		{ID: 1, Team: 0, X: 10.5, Y: 20, Bearing: netconfig.BearingE, HasDribble: true},
		{ID: 2, Team: 1, X: 60, Y: 12.25, Bearing: netconfig.BearingW, ForcedPositionReset: true},
	})
	snap.Game.Phase = netconfig.PhaseNormalPlay.String()
	snap.AnimationHints = []HintRecord{{Type: netconfig.HintInboundWalk, Target: 1, Meta: HintMeta{X: 2, Y: 20, Frames: 12}}}
	snap.Events = []EventRecord{{ID: 9, Type: netconfig.EventAnnouncer, Text: "HE'S ON FIRE"}}

	data, err := Encode(Envelope{Kind: KindSnapshot, Snapshot: &snap})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := env.Snapshot
	if got.Frame != 42 || got.Game.Phase != "NORMAL_PLAY" {
		t.Fatalf("frame %d phase %q", got.Frame, got.Game.Phase)
	}
	rec, ok := got.Lookup(2)
	if !ok || rec.X != 60 || rec.Y != 12.25 || !rec.ForcedPositionReset || rec.Bearing != netconfig.BearingW {
		t.Fatalf("record 2 = %+v", rec)
	}
	if len(got.AnimationHints) != 1 || got.AnimationHints[0].Meta.Frames != 12 {
		t.Fatalf("hints = %+v", got.AnimationHints)
	}
	if len(got.Events) != 1 || got.Events[0].Text != "HE'S ON FIRE" {
		t.Fatalf("events = %+v", got.Events)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"unknown kind", rawEncode(t, Envelope{Kind: 99}), ErrUnknownKind},
		{"missing payload", rawEncode(t, Envelope{Kind: KindInput}), nil},
		{"truncated", []byte{0x85}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestEncodeRejectsMismatchedPayload(t *testing.T) {
	if _, err := Encode(Envelope{Kind: KindPing}); err == nil {
		t.Fatal("ping without payload encoded")
	}
}

func TestSanitizeDropsUnaddressableRecords(t *testing.T) {
	snap := Snapshot{
		Frame: 3,
		Players: []PositionRecord{
			{ID: 4, X: 1},
			{ID: 0, X: 2},
			{ID: 4, X: 3},
			{ID: 5, X: 4},
		},
		PlayerIndex: map[esync.NetworkId]int{4: 2, 5: 3},
	}
	if dropped := snap.Sanitize(); dropped != 2 {
		t.Fatalf("dropped %d, want 2", dropped)
	}
	rec, ok := snap.Lookup(4)
	if !ok || rec.X != 1 {
		t.Fatalf("first record for id 4 must win, got %+v", rec)
	}
	if rec, ok := snap.Lookup(5); !ok || rec.X != 4 || snap.PlayerIndex[5] != 1 {
		t.Fatalf("index not rebuilt: %+v %v", rec, snap.PlayerIndex)
	}
	if _, ok := snap.Lookup(9); ok {
		t.Fatal("lookup of an absent id succeeded")
	}
}
