package core

import (
	"context"
	"testing"
	"time"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/network"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/automoto/hoopjam-mp/shared/transport"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	a := newTestAuthority(t, testNet())
	sessions, err := NewSessions(nil, time.Hour)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	ln, err := transport.Listen(transport.ProtoWS, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	srv := NewServer(a, sessions, config.Net)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		_ = ln.Close()
		<-done
	})
	return srv, ln.Addr()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func rawJoin(t *testing.T, addr string, req messages.JoinRequest) (transport.Conn, messages.Envelope) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, err := transport.Dial(ctx, transport.ProtoWS, addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	payload, err := messages.Encode(messages.Envelope{Kind: messages.KindJoinRequest, Join: &req})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := conn.WriteFrame(ctx, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	data, err := conn.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	env, err := messages.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return conn, env
}

func TestServerJoinInputAndBroadcast(t *testing.T) {
	srv, addr := startServer(t)

	client := network.NewClient(config.Net, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := client.Connect(ctx, transport.ProtoWS, addr, messages.JoinRequest{Version: Version(), PlayerName: "jam"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Disconnect()

	if client.PlayerID() == 0 || client.TickRate() != config.Net.TickRate {
		t.Fatalf("accepted id=%d tickRate=%d", client.PlayerID(), client.TickRate())
	}
	if !srv.Authority().HasPlayer(client.PlayerID()) {
		t.Fatal("joined player missing from roster")
	}

	err = client.SendInputs(messages.InputPacket{Sequence: 1, Inputs: []messages.InputRecord{
		{PlayerID: client.PlayerID(), Key: netconfig.KeyRight, Frame: 1},
	}})
	if err != nil {
		t.Fatalf("SendInputs: %v", err)
	}
	waitFor(t, "input packet", func() bool { return srv.Stats().Packets == 1 })
	if srv.Stats().BadChannel != 0 {
		t.Fatalf("stats = %+v", srv.Stats())
	}

	srv.Broadcast(context.Background(), srv.Authority().Step())
	var got []messages.Snapshot
	waitFor(t, "snapshot", func() bool {
		got = append(got, client.DrainSnapshots()...)
		return len(got) > 0
	})
	if _, ok := got[len(got)-1].Lookup(client.PlayerID()); !ok {
		t.Fatal("snapshot missing the local player")
	}
}

func TestServerRejectsForeignChannel(t *testing.T) {
	srv, addr := startServer(t)
	conn, env := rawJoin(t, addr, messages.JoinRequest{Version: Version(), PlayerName: "jam"})
	if env.Kind != messages.KindJoinAccepted {
		t.Fatalf("got %s, want join accepted", env.Kind)
	}
	acc := env.Accepted

	send := func(channel, token string) {
		payload, err := messages.Encode(messages.Envelope{
			Kind:    messages.KindInput,
			Channel: channel,
			Token:   token,
			Input:   &messages.InputPacket{Inputs: []messages.InputRecord{{PlayerID: acc.PlayerID, Key: netconfig.KeyUp, Frame: 1}}},
		})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if err := conn.WriteFrame(context.Background(), payload); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	send(messages.InputChannel(acc.Session, acc.PlayerID+1), acc.Token)
	send(messages.InputChannel(acc.Session, acc.PlayerID), "forged")
	send(messages.InputChannel(acc.Session, acc.PlayerID), acc.Token)

	waitFor(t, "three packets", func() bool { return srv.Stats().Packets == 3 })
	if got := srv.Stats().BadChannel; got != 2 {
		t.Fatalf("bad channel = %d, want 2", got)
	}
}

func TestServerRejectsVersionMismatch(t *testing.T) {
	srv, addr := startServer(t)
	_, env := rawJoin(t, addr, messages.JoinRequest{Version: "0", PlayerName: "old"})
	if env.Kind != messages.KindJoinRejected {
		t.Fatalf("got %s, want join rejected", env.Kind)
	}
	if srv.Authority().PlayerCount() != 0 {
		t.Fatal("rejected client added to roster")
	}
	waitFor(t, "rejection count", func() bool { return srv.Stats().Rejections == 1 })
}
