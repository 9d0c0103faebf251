package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestStreamConnFramesRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	left, right := &streamConn{conn: a}, &streamConn{conn: b}
	defer left.Close()
	defer right.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	payloads := [][]byte{[]byte("snapshot"), {}, bytes.Repeat([]byte{7}, 300)}
	go func() {
		for _, p := range payloads {
			if err := left.WriteFrame(ctx, p); err != nil {
				t.Errorf("WriteFrame: %v", err)
				return
			}
		}
	}()
	for i, want := range payloads {
		got, err := right.ReadFrame(ctx)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame %d = %q, want %q", i, got, want)
		}
	}
}

func TestWriteFrameRejectsOversize(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	err := (&streamConn{conn: a}).WriteFrame(context.Background(), make([]byte, MaxFrameSize+1))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestUnsupportedProto(t *testing.T) {
	if _, err := Listen("carrier-pigeon", "127.0.0.1:0"); !errors.Is(err, ErrUnsupportedProto) {
		t.Fatalf("Listen: expected ErrUnsupportedProto, got %v", err)
	}
	if _, err := Dial(context.Background(), "carrier-pigeon", "127.0.0.1:1"); !errors.Is(err, ErrUnsupportedProto) {
		t.Fatalf("Dial: expected ErrUnsupportedProto, got %v", err)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	ln, err := Listen(ProtoWS, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accepted := make(chan Conn, 1)
	go func() {
		c, err := ln.Accept(ctx)
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		accepted <- c
	}()

	client, err := Dial(ctx, ProtoWS, ln.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var server Conn
	select {
	case server = <-accepted:
	case <-ctx.Done():
		t.Fatal("accept timed out")
	}
	defer server.Close()

	if err := client.WriteFrame(ctx, []byte("jam")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := server.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(got) != "jam" {
		t.Fatalf("got %q, want jam", got)
	}
}
