// Command watch plays back a recorded log at a fixed tick rate and streams
// the session to websocket observers.
//
//	watch -log ./data/replay_42_1700000000.jsonl -addr 127.0.0.1:8790 -rate 20
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridspire.dev/internal/replay"
	"gridspire.dev/internal/sim/tuning"
	"gridspire.dev/internal/watch"
)

func main() {
	var (
		configPath = flag.String("config", "", "tuning file (optional)")
		logPath    = flag.String("log", "", "action log to play back")
		addr       = flag.String("addr", "127.0.0.1:8790", "listen address")
		rate       = flag.Int("rate", 20, "playback ticks per second")
	)
	flag.Parse()

	if *logPath == "" {
		fmt.Fprintln(os.Stderr, "missing -log")
		os.Exit(2)
	}
	cfg, err := tuning.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *rate <= 0 {
		*rate = 20
	}

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)

	ctrl, err := replay.New(nil, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "controller:", err)
		os.Exit(1)
	}
	feed := watch.NewFeed(logger)
	ctrl.SetObserver(feed)
	srv := watch.NewServer(ctrl, feed, logger)

	if err := ctrl.BeginPlayback(*logPath); err != nil {
		fmt.Fprintln(os.Stderr, "playback:", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/watch/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/v1/watch/ws", srv.WSHandler())

	httpSrv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http: %v", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

loop:
	for ctrl.Mode() == replay.ModePlayback {
		select {
		case <-ctx.Done():
			_ = ctrl.StopPlayback()
			break loop
		case <-ticker.C:
			if _, _, err := ctrl.Tick(nil); err != nil {
				logger.Printf("tick: %v", err)
				break loop
			}
		}
	}

	if n := len(ctrl.Reports()); n > 0 {
		logger.Printf("playback ended with %d divergent checkpoints", n)
	}

	// Keep serving until interrupted so observers can drain and reconnect.
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutCtx)
}
