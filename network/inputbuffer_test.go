package network

import (
	"errors"
	"testing"
	"time"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
)

func testBufferConfig() config.InputBufferConfig {
	return config.InputBufferConfig{
		MinFlushInterval:     10 * time.Millisecond,
		MaxFlushInterval:     200 * time.Millisecond,
		DefaultFlushInterval: 50 * time.Millisecond,
	}
}

func TestInputBufferBatchesUntilIntervalElapses(t *testing.T) {
	buf := NewInputBuffer(testBufferConfig())
	sink := NewLoopback()
	start := time.Unix(1000, 0)

	// Prime lastFlush so the interval is measured from start.
	buf.lastFlush = start

	keys := []netconfig.Key{netconfig.KeyUp, netconfig.KeyUp, netconfig.KeyLeft, netconfig.KeyShoot, netconfig.KeyDown}
	for i, k := range keys {
		buf.AddInput(k, uint32(100+i), InputMeta{PlayerID: 7})
		now := start.Add(time.Duration(i*5) * time.Millisecond)
		if _, ok := buf.Flush(now, sink); ok {
			t.Fatalf("flushed early after input %d", i)
		}
	}
	if n := len(sink.Sent()); n != 0 {
		t.Fatalf("transport writes before interval = %d, want 0", n)
	}

	packet, ok := buf.Flush(start.Add(50*time.Millisecond), sink)
	if !ok || packet == nil {
		t.Fatal("expected flush once the interval elapsed")
	}
	sent := sink.Sent()
	if len(sent) != 1 {
		t.Fatalf("transport writes = %d, want 1", len(sent))
	}
	if len(sent[0].Inputs) != len(keys) {
		t.Fatalf("packet inputs = %d, want %d", len(sent[0].Inputs), len(keys))
	}
	for i, in := range sent[0].Inputs {
		if in.Key != keys[i] || in.Frame != uint32(100+i) {
			t.Fatalf("input %d = %+v, out of order", i, in)
		}
	}
	if buf.Len() != 0 {
		t.Fatalf("buffer len after flush = %d, want 0", buf.Len())
	}
}

func TestInputBufferFlushNoSinkOrEmpty(t *testing.T) {
	buf := NewInputBuffer(testBufferConfig())
	now := time.Unix(1000, 0)
	if _, ok := buf.Flush(now, NewLoopback()); ok {
		t.Fatal("empty buffer must not flush")
	}
	buf.AddInput(netconfig.KeyUp, 1, InputMeta{})
	if _, ok := buf.Flush(now, nil); ok {
		t.Fatal("nil sink must not flush")
	}
	if buf.Len() != 1 {
		t.Fatal("nil sink must keep the input")
	}
}

func TestInputBufferKeepsInputsOnSendFailure(t *testing.T) {
	buf := NewInputBuffer(testBufferConfig())
	sink := NewLoopback()
	sink.FailWith(errors.New("queue down"))
	now := time.Unix(1000, 0)

	buf.AddInput(netconfig.KeyUp, 1, InputMeta{})
	buf.AddInput(netconfig.KeyDown, 2, InputMeta{})
	if _, ok := buf.Flush(now, sink); ok {
		t.Fatal("failed send reported success")
	}
	if buf.Len() != 2 {
		t.Fatalf("buffer len = %d, want 2 after failure", buf.Len())
	}
	if buf.ShouldFlush(now.Add(10 * time.Millisecond)) {
		t.Fatal("retry must wait for the next interval")
	}

	sink.FailWith(nil)
	packet, ok := buf.Flush(now.Add(50*time.Millisecond), sink)
	if !ok || len(packet.Inputs) != 2 {
		t.Fatalf("retry packet = %+v, %v", packet, ok)
	}
	if packet.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1 after one failed attempt", packet.Sequence)
	}
}

func TestInputBufferForceFlushGivesUpAfterOneAttempt(t *testing.T) {
	buf := NewInputBuffer(testBufferConfig())
	sink := NewLoopback()
	now := time.Unix(1000, 0)
	buf.lastFlush = now

	buf.AddInput(netconfig.KeyPass, 9, InputMeta{})
	if _, ok := buf.ForceFlush(now, sink); !ok {
		t.Fatal("ForceFlush must bypass timing")
	}
	if len(sink.Sent()) != 1 {
		t.Fatal("expected one write")
	}

	sink.FailWith(errors.New("closed"))
	buf.AddInput(netconfig.KeyPass, 10, InputMeta{})
	if _, ok := buf.ForceFlush(now, sink); ok {
		t.Fatal("failed force flush reported success")
	}
	if buf.Len() != 0 {
		t.Fatal("force flush must drop inputs after a failed attempt")
	}
}

func TestSetFlushIntervalClamps(t *testing.T) {
	buf := NewInputBuffer(testBufferConfig())
	tests := []struct {
		in, want time.Duration
	}{
		{time.Millisecond, 10 * time.Millisecond},
		{time.Second, 200 * time.Millisecond},
		{75 * time.Millisecond, 75 * time.Millisecond},
	}
	for _, tt := range tests {
		buf.SetFlushInterval(tt.in)
		if got := buf.FlushInterval(); got != tt.want {
			t.Fatalf("SetFlushInterval(%v) -> %v, want %v", tt.in, got, tt.want)
		}
	}
}
