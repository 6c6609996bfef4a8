package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"gridspire.dev/internal/sim/hashtree"
)

func sampleTree(t *testing.T) (*hashtree.Node, *hashtree.Tree) {
	t.Helper()
	root := hashtree.New("game_state")
	if err := root.AddField("tick", uint64(300)); err != nil {
		t.Fatalf("add: %v", err)
	}
	towers := root.Child("towers")
	if err := towers.Child("tower_1").AddField("hp", 100); err != nil {
		t.Fatalf("add: %v", err)
	}
	tree, err := root.Tree(hashtree.AlgoSHA256)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	return root, tree
}

func TestWriteRead_RoundTripDigest(t *testing.T) {
	dir := t.TempDir()
	node, tree := sampleTree(t)

	rel, err := Write(dir, "replay_42_1700000000", 300, tree)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if rel != RelPath("replay_42_1700000000", 300) {
		t.Fatalf("rel path = %s", rel)
	}

	back, err := Read(filepath.Join(dir, rel))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	n, err := hashtree.FromTree(back)
	if err != nil {
		t.Fatalf("from tree: %v", err)
	}
	got, err := n.HexDigest(hashtree.AlgoSHA256)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	want, err := node.HexDigest(hashtree.AlgoSHA256)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if got != want || back.Hash != want {
		t.Fatalf("round-trip digest mismatch: got=%s file=%s want=%s", got, back.Hash, want)
	}
}

func TestWrite_StableBytes(t *testing.T) {
	dir := t.TempDir()
	_, tree := sampleTree(t)

	rel1, err := Write(dir, "r1", 300, tree)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	rel2, err := Write(dir, "r2", 300, tree)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	b1, _ := os.ReadFile(filepath.Join(dir, rel1))
	b2, _ := os.ReadFile(filepath.Join(dir, rel2))
	if string(b1) != string(b2) {
		t.Fatalf("checkpoint bytes unstable:\n%s\n%s", b1, b2)
	}
}

func TestRead_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("malformed checkpoint must fail to parse")
	}
}
