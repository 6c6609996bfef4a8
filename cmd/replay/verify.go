package main

import (
	"flag"
	"fmt"
	"os"

	"gridspire.dev/internal/persistence/actionlog"
	"gridspire.dev/internal/replay"
)

func verifyCmd(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configPath := fs.String("config", "", "tuning file (optional)")
	logPath := fs.String("log", "", "action log to verify")
	upToTick := fs.Uint64("tick", 0, "verify up to this tick only (optional)")
	_ = fs.Parse(args)

	if *logPath == "" {
		fmt.Fprintln(os.Stderr, "missing -log")
		os.Exit(2)
	}
	cfg := loadTuning(*configPath, "")

	res, err := replay.Verify(*logPath, cfg, *upToTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(1)
	}

	fmt.Printf("log %s seed=%d period=%d final_tick=%d checkpoints=%d skipped=%d\n",
		res.Meta.ReplayID, res.Meta.Seed, res.Meta.ChecksumPeriod,
		res.FinalTick, len(res.CheckpointTicks), res.Skipped)

	if res.OK() {
		fmt.Println("verify ok")
		return
	}
	for _, rep := range res.Reports {
		for _, d := range rep.Divergences {
			fmt.Printf("divergence tick=%d path=%s kind=%s\n", rep.Tick, d.String(), d.Kind)
		}
	}
	os.Exit(1)
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	logPath := fs.String("log", "", "action log to inspect")
	_ = fs.Parse(args)

	if *logPath == "" {
		fmt.Fprintln(os.Stderr, "missing -log")
		os.Exit(2)
	}

	meta, entries, skipped, err := actionlog.ReadAll(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	var slots int
	var lastTick uint64
	var cps []uint64
	for _, e := range entries {
		switch {
		case e.Timeslot != nil:
			slots++
			if e.Timeslot.Tick > lastTick {
				lastTick = e.Timeslot.Tick
			}
		case e.Checkpoint != nil:
			cps = append(cps, e.Checkpoint.Tick)
		}
	}

	fmt.Printf("replay %s version=%d seed=%d period=%d\n", meta.ReplayID, meta.Version, meta.Seed, meta.ChecksumPeriod)
	fmt.Printf("timeslots=%d last_tick=%d skipped=%d\n", slots, lastTick, skipped)
	fmt.Printf("checkpoints=%d at %v\n", len(cps), cps)
}
