// Package archive moves finished replays into compressed long-term storage:
// the action log is zstd-compressed, checkpoint files are copied alongside,
// and a meta.json describes the bundle.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"gridspire.dev/internal/persistence/actionlog"
)

type ReplayArchiveMeta struct {
	ReplayID       string `json:"replay_id"`
	Seed           int64  `json:"seed"`
	Version        int    `json:"version"`
	ChecksumPeriod int    `json:"checksum_period"`
	Entries        int    `json:"entries"`
	Checkpoints    int    `json:"checkpoints"`
	SkippedLines   int    `json:"skipped_lines,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// ArchiveReplay compresses dataDir/<replayID>.jsonl and its checkpoint files
// into dataDir/archives/<replayID>/. The source log must be closed.
func ArchiveReplay(dataDir, replayID string) (string, error) {
	logPath := filepath.Join(dataDir, replayID+".jsonl")
	meta, entries, skipped, err := actionlog.ReadAll(logPath)
	if err != nil {
		return "", err
	}

	dstDir := filepath.Join(dataDir, "archives", replayID)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", err
	}
	if err := compressFile(logPath, filepath.Join(dstDir, replayID+".jsonl.zst")); err != nil {
		return "", err
	}

	checkpoints := 0
	for _, e := range entries {
		if e.Checkpoint == nil || e.Checkpoint.File == "" {
			continue
		}
		checkpoints++
		src := filepath.Join(dataDir, e.Checkpoint.File)
		dst := filepath.Join(dstDir, e.Checkpoint.File)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", err
		}
		if err := copyFile(src, dst); err != nil {
			return "", fmt.Errorf("checkpoint %s: %w", e.Checkpoint.File, err)
		}
	}

	am := ReplayArchiveMeta{
		ReplayID:       replayID,
		Seed:           meta.Seed,
		Version:        meta.Version,
		ChecksumPeriod: meta.ChecksumPeriod,
		Entries:        len(entries),
		Checkpoints:    checkpoints,
		SkippedLines:   skipped,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(am, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dstDir, "meta.json"), b, 0o644); err != nil {
		return "", err
	}
	return dstDir, nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, in); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
