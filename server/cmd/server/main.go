package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/server/core"
	"github.com/automoto/hoopjam-mp/shared/courtdata"
	"github.com/automoto/hoopjam-mp/shared/transport"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

func main() {
	port := flag.Uint("port", 7373, "Server port")
	proto := flag.String("proto", transport.ProtoWS, "Transport: ws or kcp")
	tickRate := flag.Int("tickrate", config.Net.TickRate, "Server tick rate (updates per second)")
	name := flag.String("name", "Hoop Jam Server", "Server display name")
	courtPath := flag.String("court", "", "TMX court file (empty = built-in court)")
	secret := flag.String("secret", os.Getenv("HOOPJAM_SECRET"), "Session token secret (empty = random per run)")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Shot resolution seed")
	debug := flag.Bool("debug", false, "Verbose network logging")
	flag.Parse()

	config.Debug.Net = *debug
	netCfg := config.Net
	netCfg.TickRate = *tickRate

	if err := run(*name, *proto, fmt.Sprintf(":%d", *port), *courtPath, *secret, *seed, netCfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(name, proto, addr, courtPath, secret string, seed uint64, netCfg config.NetConfig) error {
	court, err := courtdata.LoadPath(courtPath)
	if err != nil {
		return err
	}
	authority, err := core.NewAuthority(core.AuthorityConfig{Name: name, Court: court, Net: netCfg, Seed: seed})
	if err != nil {
		return err
	}
	sessions, err := core.NewSessions([]byte(secret), netCfg.SessionTTL)
	if err != nil {
		return err
	}
	ln, err := transport.Listen(proto, addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	server := core.NewServer(authority, sessions, netCfg)
	loop := core.NewGameLoop(authority, netCfg.TickRate, server.Broadcast)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting Hoop Jam server %q on %s over %s (tick rate: %d/s, protocol: %s)",
		name, addr, proto, netCfg.TickRate, core.Version())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(ctx, ln) })
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down server...")
		return ln.Close()
	})
	err = g.Wait()
	if errors.Is(err, transport.ErrListenerClosed) {
		err = nil
	}

	st, as := server.Stats(), authority.Stats()
	log.Printf("Served %s frames, %s joins, %s input packets (%s rate limited), %s written",
		humanize.Comma(int64(as.Frames)), humanize.Comma(int64(st.Joins)),
		humanize.Comma(int64(st.Packets)), humanize.Comma(int64(st.RateLimited)),
		humanize.Bytes(st.BytesWritten))
	return err
}
