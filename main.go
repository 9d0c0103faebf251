package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/automoto/hoopjam-mp/config"
	"github.com/automoto/hoopjam-mp/network"
	"github.com/automoto/hoopjam-mp/scenes"
	"github.com/automoto/hoopjam-mp/server/core"
	"github.com/automoto/hoopjam-mp/shared/courtdata"
	"github.com/automoto/hoopjam-mp/shared/messages"
	"github.com/automoto/hoopjam-mp/shared/netconfig"
	"github.com/automoto/hoopjam-mp/shared/transport"
	"github.com/automoto/hoopjam-mp/systems"
	"github.com/yohamta/donburi"
	"golang.org/x/sync/errgroup"
)

const appName = "hoopjam"

type keyPress struct {
	key   netconfig.Key
	turbo bool
}

func main() {
	addr := flag.String("addr", "", "Authority address (empty = last used, or host with -coordinator)")
	proto := flag.String("proto", transport.ProtoWS, "Transport: ws or kcp")
	name := flag.String("name", "", "Player name (empty = last used)")
	tickRate := flag.Int("tickrate", config.Net.TickRate, "Tick rate when hosting")
	coordinator := flag.Bool("coordinator", false, "Host the authority in this process")
	port := flag.Uint("port", 7373, "Port remote players join on when hosting")
	courtPath := flag.String("court", "", "TMX court file (empty = built-in court)")
	debug := flag.Bool("debug", false, "Verbose prediction and network logging")
	flag.Parse()

	config.Debug.Prediction = *debug
	config.Debug.Net = *debug

	store, err := config.OpenStore(appName)
	if err != nil {
		log.Printf("[main] settings store unavailable: %v", err)
	}
	saved, err := config.LoadTuning(store)
	if err != nil {
		log.Printf("[main] %v", err)
	}
	config.ApplyTuning(saved)
	if saved == nil {
		saved = &config.SavedTuning{}
	}
	if *addr == "" {
		*addr = saved.LastAddr
	}
	if *name == "" {
		*name = saved.LastName
	}
	if *name == "" {
		*name = "Player"
	}

	court, err := courtdata.LoadPath(*courtPath)
	if err != nil {
		log.Fatalf("Failed to load court: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keys := make(chan keyPress, 64)
	go readKeys(os.Stdin, keys)

	if *coordinator {
		err = host(ctx, *name, *proto, fmt.Sprintf(":%d", *port), *tickRate, court, keys)
	} else {
		if *addr == "" {
			log.Fatal("No authority address; pass -addr or -coordinator")
		}
		err = join(ctx, *name, *proto, *addr, court, keys)
		if err == nil {
			saved.LastAddr = *addr
		}
	}
	if err != nil {
		log.Fatalf("Match error: %v", err)
	}

	saved.LastName = *name
	if err := config.SaveTuning(store, saved); err != nil {
		log.Printf("[main] %v", err)
	}
}

// join plays as a remote client of an authority.
func join(ctx context.Context, name, proto, addr string, court *courtdata.Court, keys <-chan keyPress) error {
	quality := network.NewQuality(config.Quality)
	client := network.NewClient(config.Net, quality)
	if err := client.Connect(ctx, proto, addr, messages.JoinRequest{Version: core.Version(), PlayerName: name}); err != nil {
		return err
	}
	defer client.Disconnect()

	scene := scenes.NewMatchScene(scenes.MatchConfig{
		LocalID:  client.PlayerID(),
		Court:    court,
		Sink:     client,
		Source:   client,
		Quality:  quality,
		TickRate: client.TickRate(),
		Events:   announcerHandlers(),
	})
	defer scene.Close()

	return drive(ctx, scene, client.TickRate(), keys, func() error {
		if s := client.State(); s != network.StateJoinedGame {
			return fmt.Errorf("connection lost: %v", client.LastError())
		}
		return nil
	})
}

// host runs the authority in-process, accepts remote players and plays as
// the coordinator.
func host(ctx context.Context, name, proto, addr string, tickRate int, court *courtdata.Court, keys <-chan keyPress) error {
	netCfg := config.Net
	netCfg.TickRate = tickRate

	authority, err := core.NewAuthority(core.AuthorityConfig{
		Name:  name + "'s court",
		Court: court,
		World: donburi.NewWorld(),
		Net:   netCfg,
		Seed:  uint64(time.Now().UnixNano()),
	})
	if err != nil {
		return err
	}
	sessions, err := core.NewSessions(nil, netCfg.SessionTTL)
	if err != nil {
		return err
	}
	localID, _, err := authority.AddPlayer(name)
	if err != nil {
		return err
	}
	ln, err := transport.Listen(proto, addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	server := core.NewServer(authority, sessions, netCfg)

	g, ctx := errgroup.WithContext(ctx)
	snaps := make(chan messages.Snapshot, 1)
	scene := scenes.NewMatchScene(scenes.MatchConfig{
		LocalID:  localID,
		Court:    court,
		TickRate: tickRate,
		Events:   announcerHandlers(),
		Host:     authority,
		Publish: func(snap messages.Snapshot) {
			select { // latest wins
			case <-snaps:
			default:
			}
			snaps <- snap
		},
	})

	g.Go(func() error { return server.Serve(ctx, ln) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case snap := <-snaps:
				server.Broadcast(ctx, snap)
			}
		}
	})
	g.Go(func() error {
		defer scene.Close()
		err := drive(ctx, scene, tickRate, keys, nil)
		_ = ln.Close()
		return err
	})
	return g.Wait()
}

// drive calls scene.Update at the tick rate and feeds it key presses.
func drive(ctx context.Context, scene *scenes.MatchScene, tickRate int, keys <-chan keyPress, check func() error) error {
	ticker := time.NewTicker(time.Second / time.Duration(max(tickRate, 1)))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case k := <-keys:
			scene.HandleKey(k.key, k.turbo)
		case <-ticker.C:
			if check != nil {
				if err := check(); err != nil {
					return err
				}
			}
			scene.Update()
		}
	}
}

// readKeys turns stdin lines into key presses. A leading + marks turbo,
// e.g. "+right".
func readKeys(f *os.File, out chan<- keyPress) {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		for _, word := range strings.Fields(sc.Text()) {
			turbo := strings.HasPrefix(word, "+")
			key, ok := netconfig.ParseKey(strings.TrimPrefix(word, "+"))
			if !ok {
				log.Printf("[main] unknown key %q", word)
				continue
			}
			out <- keyPress{key: key, turbo: turbo}
		}
	}
}

func announcerHandlers() systems.EventHandlers {
	return systems.EventHandlers{
		netconfig.EventAnnouncer: func(ev messages.EventRecord) { log.Printf("[announcer] %s", ev.Text) },
		netconfig.EventHalftime:  func(messages.EventRecord) { log.Println("[announcer] HALFTIME") },
	}
}
