package snapshot

import (
	"testing"

	"gridspire.dev/internal/sim/hashtree"
)

// fakeRegistry lets the builder be tested without a live simulation.
type fakeRegistry struct {
	categories []string
	entities   map[string]map[string]map[string]any
	global     map[string]any
}

func (r *fakeRegistry) Categories() []string { return r.categories }

func (r *fakeRegistry) EntityIDs(category string) []string {
	ids := make([]string, 0, len(r.entities[category]))
	for id := range r.entities[category] {
		ids = append(ids, id)
	}
	return ids
}

func (r *fakeRegistry) EntityFields(category, id string) map[string]any {
	return r.entities[category][id]
}

func (r *fakeRegistry) GlobalFields() map[string]any { return r.global }

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		categories: []string{"players", "towers", "creeps", "items"},
		entities: map[string]map[string]map[string]any{
			"players": {
				"player_1": {"gold": 100, "lives": 50},
			},
			"towers": {
				"tower_2": {"hp": 50, "level": 1},
				"tower_1": {"hp": 100, "level": 2},
			},
		},
		global: map[string]any{"seed": int64(42), "rng_draws": uint64(7)},
	}
}

func TestBuild_Shape(t *testing.T) {
	root, err := Build(120, newFakeRegistry())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if root.Name() != RootName {
		t.Fatalf("root name = %s", root.Name())
	}
	wantChildren := []string{"creeps", "global", "items", "players", "towers"}
	got := root.ChildNames()
	if len(got) != len(wantChildren) {
		t.Fatalf("children = %v, want %v", got, wantChildren)
	}
	for i := range got {
		if got[i] != wantChildren[i] {
			t.Fatalf("children = %v, want %v", got, wantChildren)
		}
	}
	towers, _ := root.ChildByName("towers")
	names := towers.ChildNames()
	if len(names) != 2 || names[0] != "tower_1" || names[1] != "tower_2" {
		t.Fatalf("tower children = %v", names)
	}
}

func TestBuild_EmptyCategoryStableDigest(t *testing.T) {
	// No items present: the category child must still exist with a
	// well-defined digest, identical across runs.
	r1, err := Build(10, newFakeRegistry())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r2, err := Build(10, newFakeRegistry())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	items1, ok := r1.ChildByName("items")
	if !ok {
		t.Fatal("empty category omitted from tree")
	}
	if len(items1.ChildNames()) != 0 {
		t.Fatalf("items children = %v, want none", items1.ChildNames())
	}
	d1, err := items1.HexDigest(hashtree.AlgoSHA256)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	items2, _ := r2.ChildByName("items")
	d2, err := items2.HexDigest(hashtree.AlgoSHA256)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("empty category digest unstable: %s vs %s", d1, d2)
	}
}

func TestBuild_IterationOrderIndependent(t *testing.T) {
	// Map iteration order differs between runs; the digest must not.
	var digests []string
	for i := 0; i < 4; i++ {
		root, err := Build(99, newFakeRegistry())
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		d, err := root.HexDigest(hashtree.AlgoSHA256)
		if err != nil {
			t.Fatalf("digest: %v", err)
		}
		digests = append(digests, d)
	}
	for _, d := range digests[1:] {
		if d != digests[0] {
			t.Fatalf("digest unstable across builds: %v", digests)
		}
	}
}

func TestBuild_TickAffectsDigest(t *testing.T) {
	r1, _ := Build(1, newFakeRegistry())
	r2, _ := Build(2, newFakeRegistry())
	d1, _ := r1.HexDigest(hashtree.AlgoSHA256)
	d2, _ := r2.HexDigest(hashtree.AlgoSHA256)
	if d1 == d2 {
		t.Fatal("tick must be part of the snapshot digest")
	}
}
