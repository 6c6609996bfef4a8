package indexdb

import (
	"path/filepath"
	"sync"
	"testing"

	"gridspire.dev/internal/sim/hashtree"
)

func TestIndexRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	idx.RecordReplay(ReplayRow{
		ReplayID:       "replay_42_1000",
		Seed:           42,
		Version:        1,
		ChecksumPeriod: 300,
		Path:           "replay_42_1000.jsonl",
	})
	idx.RecordCheckpoint(CheckpointRow{
		ReplayID: "replay_42_1000",
		Tick:     300,
		Digest:   "aa11",
		Path:     "checkpoints/replay_42_1000/tick-000000300.json",
	})
	idx.RecordCheckpoint(CheckpointRow{
		ReplayID: "replay_42_1000",
		Tick:     600,
		Digest:   "bb22",
		Path:     "checkpoints/replay_42_1000/tick-000000600.json",
	})
	idx.RecordDivergences("replay_42_1000", 600, []hashtree.Divergence{
		{
			Path: []string{"game_state", "towers", "tower_2"},
			Kind: hashtree.FieldsChanged,
			Fields: []hashtree.FieldDiff{
				{Field: "hp", Expected: int64(50), Actual: int64(49)},
			},
			ExpectedDigest: "cc33",
			ActualDigest:   "dd44",
		},
	})
	idx.Flush()

	replays, err := idx.Replays()
	if err != nil {
		t.Fatalf("replays: %v", err)
	}
	if len(replays) != 1 || replays[0].ReplayID != "replay_42_1000" || replays[0].Seed != 42 {
		t.Fatalf("unexpected replays: %+v", replays)
	}
	if replays[0].CreatedAt == "" {
		t.Fatalf("created_at not set")
	}

	cps, err := idx.Checkpoints("replay_42_1000")
	if err != nil {
		t.Fatalf("checkpoints: %v", err)
	}
	if len(cps) != 2 || cps[0].Tick != 300 || cps[1].Tick != 600 {
		t.Fatalf("unexpected checkpoints: %+v", cps)
	}

	divs, err := idx.Divergences("replay_42_1000")
	if err != nil {
		t.Fatalf("divergences: %v", err)
	}
	if len(divs) != 1 {
		t.Fatalf("want 1 divergence, got %d", len(divs))
	}
	if divs[0].Path != "towers/tower_2.hp" {
		t.Fatalf("unexpected divergence path %q", divs[0].Path)
	}
	if divs[0].Kind != string(hashtree.FieldsChanged) {
		t.Fatalf("unexpected divergence kind %q", divs[0].Kind)
	}
}

func TestIndexReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.RecordReplay(ReplayRow{ReplayID: "replay_7_1", Seed: 7, Version: 1, ChecksumPeriod: 10, Path: "replay_7_1.jsonl"})
	idx.Flush()
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx2.Close()

	replays, err := idx2.Replays()
	if err != nil {
		t.Fatalf("replays: %v", err)
	}
	if len(replays) != 1 || replays[0].ReplayID != "replay_7_1" {
		t.Fatalf("unexpected replays after reopen: %+v", replays)
	}
}

func TestIndexWriteAfterCloseIsNoop(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Must not panic on the closed channel.
	idx.RecordCheckpoint(CheckpointRow{ReplayID: "r", Tick: 1})
	idx.Flush()
}

func TestIndexConcurrentWritesDuringClose(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// Writers that keep enqueueing while Close races them. Any write landing
	// after the close is dropped; none may panic on the closed channel.
	var wg sync.WaitGroup
	start := make(chan struct{})
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			for i := 0; i < 200; i++ {
				idx.RecordCheckpoint(CheckpointRow{
					ReplayID: "replay_1_1000",
					Tick:     uint64(w*1000 + i),
					Digest:   "aa11",
				})
			}
		}(w)
	}
	close(start)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()
}
