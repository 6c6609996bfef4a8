package main

import (
	"flag"
	"fmt"
	"os"

	"gridspire.dev/internal/persistence/archive"
)

func archiveCmd(args []string) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	configPath := fs.String("config", "", "tuning file (optional)")
	dataDir := fs.String("data", "", "data directory (overrides config)")
	replayID := fs.String("id", "", "replay id to archive")
	_ = fs.Parse(args)

	if *replayID == "" {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}
	cfg := loadTuning(*configPath, *dataDir)

	dir, err := archive.ArchiveReplay(cfg.DataDir, *replayID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "archive:", err)
		os.Exit(1)
	}
	fmt.Printf("archived %s -> %s\n", *replayID, dir)
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "tuning file (optional)")
	dataDir := fs.String("data", "", "data directory (overrides config)")
	_ = fs.Parse(args)

	cfg := loadTuning(*configPath, *dataDir)
	idx := openIndex(cfg.DataDir)
	defer idx.Close()

	replays, err := idx.Replays()
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, r := range replays {
		fmt.Printf("%s seed=%d period=%d path=%s created=%s\n",
			r.ReplayID, r.Seed, r.ChecksumPeriod, r.Path, r.CreatedAt)
	}
}
