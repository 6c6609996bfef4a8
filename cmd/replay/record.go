package main

import (
	"flag"
	"fmt"
	"os"

	"gridspire.dev/internal/protocol"
	"gridspire.dev/internal/replay"
	"gridspire.dev/internal/sim/game"
)

func recordCmd(args []string) {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	configPath := fs.String("config", "", "tuning file (optional)")
	dataDir := fs.String("data", "", "data directory (overrides config)")
	seed := fs.Int64("seed", 42, "simulation seed")
	ticks := fs.Uint64("ticks", 1000, "number of ticks to run")
	players := fs.Int("players", 2, "number of players")
	_ = fs.Parse(args)

	cfg := loadTuning(*configPath, *dataDir)

	g := game.New(game.Config{Seed: *seed})
	for i := 1; i <= *players; i++ {
		if err := g.AddPlayer(fmt.Sprintf("p%d", i)); err != nil {
			fmt.Fprintln(os.Stderr, "player:", err)
			os.Exit(1)
		}
	}

	c, err := replay.New(g, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "controller:", err)
		os.Exit(1)
	}
	idx := openIndex(cfg.DataDir)
	defer idx.Close()
	c.SetIndex(idx)

	replayID, err := c.BeginRecording()
	if err != nil {
		fmt.Fprintln(os.Stderr, "record:", err)
		os.Exit(1)
	}
	for i := uint64(0); i < *ticks; i++ {
		if _, _, err := c.Tick(demoScript(i, *players)); err != nil {
			fmt.Fprintln(os.Stderr, "tick:", err)
			os.Exit(1)
		}
	}
	if err := c.StopRecording(); err != nil {
		fmt.Fprintln(os.Stderr, "stop:", err)
		os.Exit(1)
	}
	idx.Flush()

	fmt.Printf("recorded %s (%d ticks) -> %s\n", replayID, *ticks, c.LogPath(replayID))
}

// demoScript drives a small self-playing session: each player opens with a
// tower, and waves spawn on a fixed cadence.
func demoScript(tick uint64, players int) []protocol.Action {
	var acts []protocol.Action
	if tick == 0 {
		for i := 1; i <= players; i++ {
			acts = append(acts, protocol.Action{
				Type:      protocol.ActionBuildTower,
				PlayerID:  fmt.Sprintf("p%d", i),
				TowerKind: "ARROW",
				Pos:       [2]int{2, i},
			})
		}
	}
	if tick%25 == 0 {
		acts = append(acts, protocol.Action{Type: protocol.ActionSpawnWave, PlayerID: "p1"})
	}
	return acts
}
