// Command replay records, inspects, verifies and archives deterministic
// replay logs.
//
//	replay record  -data ./data -seed 42 -ticks 1000
//	replay inspect -log ./data/replay_42_1700000000.jsonl
//	replay verify  -log ./data/replay_42_1700000000.jsonl [-tick 600]
//	replay archive -data ./data -id replay_42_1700000000
//	replay list    -data ./data
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gridspire.dev/internal/persistence/indexdb"
	"gridspire.dev/internal/sim/tuning"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "record":
			recordCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "verify":
			verifyCmd(os.Args[2:])
			return
		case "archive":
			archiveCmd(os.Args[2:])
			return
		case "list":
			listCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: replay {record|inspect|verify|archive|list} [flags]")
	os.Exit(2)
}

func loadTuning(configPath, dataDir string) tuning.Tuning {
	cfg, err := tuning.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg
}

func openIndex(dataDir string) *indexdb.SQLiteIndex {
	idx, err := indexdb.Open(filepath.Join(dataDir, "index.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(1)
	}
	return idx
}
