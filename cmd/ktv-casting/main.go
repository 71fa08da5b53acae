package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/StarFreedomX/ktv-casting/internal/config"
	"github.com/StarFreedomX/ktv-casting/internal/devices"
	"github.com/StarFreedomX/ktv-casting/internal/interactive"
	"github.com/StarFreedomX/ktv-casting/internal/iptools"
	"github.com/StarFreedomX/ktv-casting/internal/log"
	"github.com/StarFreedomX/ktv-casting/internal/playlist"
	"github.com/StarFreedomX/ktv-casting/internal/proxy"
	"github.com/StarFreedomX/ktv-casting/internal/roomurl"
	"github.com/StarFreedomX/ktv-casting/internal/soapcalls"
)

const (
	exitClean       = 0
	exitFatal       = 1
	exitInterrupted = 2
)

var (
	roomArg   = flag.String("r", "", "Room URL. Prompted for when omitted.")
	targetArg = flag.Int("t", 0, "1-based index of the renderer to cast to. Prompted for when omitted.")
	searchArg = flag.Int("s", 5, "SSDP search window in seconds.")
)

func main() {
	flag.Parse()
	log.Configure(log.Config{})
	logger := log.WithComponent("main")
	cfg := config.New()

	stdin := bufio.NewReader(os.Stdin)

	rawRoom := *roomArg
	if rawRoom == "" {
		fmt.Println("Room URL:")
		line, err := stdin.ReadString('\n')
		check(err)
		rawRoom = strings.TrimSpace(line)
	}

	room, err := roomurl.Parse(rawRoom)
	check(err)

	fmt.Println("Searching for Media Renderers...")
	renderers, err := devices.LoadSSDPservices(*searchArg)
	check(err)
	if len(renderers) == 0 {
		check(devices.ErrNoDeviceAvailable)
	}

	for i, r := range renderers {
		fmt.Printf("%d: %s (%s)\n", i+1, r.FriendlyName, r.DescriptionURL)
	}

	pick := *targetArg
	if pick == 0 {
		fmt.Println("Renderer number:")
		line, err := stdin.ReadString('\n')
		check(err)
		pick, err = strconv.Atoi(strings.TrimSpace(line))
		check(err)
	}

	renderer, err := devices.DevicePicker(renderers, pick)
	check(err)

	rendererHost, err := iptools.HostOf(renderer.ControlURL)
	check(err)
	localIP, err := iptools.BestLocalIP(rendererHost)
	check(err)
	logger.Info().Str("ip", localIP).Int("port", cfg.ProxyPort).Msg("proxy endpoint")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupted := make(chan struct{}, 1)
	markInterrupted := func() {
		select {
		case interrupted <- struct{}{}:
		default:
		}
		cancel()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		markInterrupted()
	}()

	mediaProxy := proxy.New(localIP, cfg.ProxyPort, cfg.KeepAliveInterval)
	proxyStarted := make(chan struct{}, 1)
	proxyErr := make(chan error, 1)
	go func() {
		proxyErr <- mediaProxy.Serve(proxyStarted)
	}()
	select {
	case <-proxyStarted:
	case err := <-proxyErr:
		check(err)
	}

	caller := soapcalls.NewCaller(renderer, log.WithComponent("soap"))
	client := playlist.NewClient(room)
	queue := playlist.NewQueue()
	pauseToggle := make(chan struct{}, 1)

	screen, err := interactive.InitTcellNewScreen(pauseToggle,
		func() {
			go func() {
				advCtx, advCancel := context.WithTimeout(ctx, 8*time.Second)
				defer advCancel()
				if err := client.Advance(advCtx); err != nil {
					logger.Warn().Err(err).Msg("manual advance failed")
				}
			}()
		},
		cancel,
		markInterrupted,
	)
	check(err)

	synchronizer := playlist.NewSynchronizer(caller, client, queue, screen,
		mediaProxy.RendererURL, cfg.Nickname, pauseToggle)

	playlist.StartTransport(ctx, cfg, room, client, queue, screen)

	go func() {
		<-ctx.Done()
		screen.Interrupt()
	}()

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := synchronizer.Run(runCtx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	if err := screen.InterInit(); err != nil {
		screen.Fini()
		check(err)
	}

	// Shutdown order: synchronizer first (it issues the final Stop to
	// the renderer), then drain the proxy.
	cancel()
	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Msg("synchronizer exited with error")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer drainCancel()
	if err := mediaProxy.Shutdown(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("proxy shutdown error")
	}

	screen.Fini()

	select {
	case <-interrupted:
		os.Exit(exitInterrupted)
	default:
		os.Exit(exitClean)
	}
}

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encountered error(s): %s\n", err)
		os.Exit(exitFatal)
	}
}
