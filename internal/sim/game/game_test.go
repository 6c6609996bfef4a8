package game_test

import (
	"testing"

	"gridspire.dev/internal/protocol"
	"gridspire.dev/internal/sim/game"
	"gridspire.dev/internal/sim/hashtree"
	"gridspire.dev/internal/sim/snapshot"
)

func scriptedAction(tick uint64) []protocol.Action {
	switch tick {
	case 0:
		return []protocol.Action{{Type: protocol.ActionSpawnWave, PlayerID: "player_1"}}
	case 1:
		return []protocol.Action{{
			Type: protocol.ActionBuildTower, PlayerID: "player_1",
			TowerKind: "ARROW", Pos: [2]int{2, 5},
		}}
	case 3:
		return []protocol.Action{{
			Type: protocol.ActionBuildTower, PlayerID: "player_1",
			TowerKind: "CANNON", Pos: [2]int{1, 12},
		}}
	case 10:
		return []protocol.Action{{Type: protocol.ActionSpawnWave, PlayerID: "player_1"}}
	case 12:
		return []protocol.Action{{
			Type: protocol.ActionUpgradeTower, PlayerID: "player_1", TowerID: "tower_1",
		}}
	}
	return nil
}

func TestDeterminism_FixedActionsSameDigest(t *testing.T) {
	newGame := func() *game.Game {
		g := game.New(game.Config{Seed: 42})
		if err := g.AddPlayer("player_1"); err != nil {
			t.Fatalf("add player: %v", err)
		}
		return g
	}
	g1 := newGame()
	g2 := newGame()

	for i := uint64(0); i < 60; i++ {
		acts := scriptedAction(i)
		t1, _ := g1.Step(acts)
		t2, _ := g2.Step(acts)
		if t1 != i || t2 != i {
			t.Fatalf("tick mismatch: got %d and %d, want %d", t1, t2, i)
		}

		s1, err := snapshot.Build(t1, g1)
		if err != nil {
			t.Fatalf("snapshot g1: %v", err)
		}
		s2, err := snapshot.Build(t2, g2)
		if err != nil {
			t.Fatalf("snapshot g2: %v", err)
		}
		d1, err := s1.HexDigest(hashtree.AlgoSHA256)
		if err != nil {
			t.Fatalf("digest g1: %v", err)
		}
		d2, err := s2.HexDigest(hashtree.AlgoSHA256)
		if err != nil {
			t.Fatalf("digest g2: %v", err)
		}
		if d1 != d2 {
			t.Fatalf("digest mismatch at tick %d: %s vs %s", i, d1, d2)
		}
	}
}

func TestStep_ActionResults(t *testing.T) {
	g := game.New(game.Config{Seed: 7, StartingGold: 60})
	if err := g.AddPlayer("player_1"); err != nil {
		t.Fatalf("add player: %v", err)
	}

	_, results := g.Step([]protocol.Action{
		{Type: protocol.ActionBuildTower, PlayerID: "player_1", TowerKind: "ARROW", Pos: [2]int{1, 1}},
		// Same cell: blocked.
		{Type: protocol.ActionBuildTower, PlayerID: "player_1", TowerKind: "ARROW", Pos: [2]int{1, 1}},
		// 10 gold left: cannot afford.
		{Type: protocol.ActionBuildTower, PlayerID: "player_1", TowerKind: "CANNON", Pos: [2]int{2, 2}},
		{Type: protocol.ActionSellTower, PlayerID: "player_1", TowerID: "tower_99"},
		{Type: protocol.ActionSelect, PlayerID: "player_1", TargetID: "tower_1"},
	})

	wantCodes := []string{"", protocol.ErrBlocked, protocol.ErrNoResource, protocol.ErrInvalidTarget, ""}
	if len(results) != len(wantCodes) {
		t.Fatalf("results = %d, want %d", len(results), len(wantCodes))
	}
	for i, want := range wantCodes {
		if results[i].Code != want {
			t.Fatalf("result[%d] = %q, want %q", i, results[i].Code, want)
		}
		if !protocol.IsKnownCode(results[i].Code) {
			t.Fatalf("result[%d] carries unknown code %q", i, results[i].Code)
		}
	}
}

func TestStep_WaveAndLeaks(t *testing.T) {
	g := game.New(game.Config{Seed: 1, PathLength: 3, StartingLives: 10})
	if err := g.AddPlayer("player_1"); err != nil {
		t.Fatalf("add player: %v", err)
	}
	g.Step([]protocol.Action{{Type: protocol.ActionSpawnWave, PlayerID: "player_1"}})
	if n := len(g.EntityIDs(game.CategoryCreeps)); n == 0 {
		t.Fatal("wave spawned no creeps")
	}
	// With no towers and a 3-cell path every creep leaks within a few ticks.
	for i := 0; i < 5; i++ {
		g.Step(nil)
	}
	if n := len(g.EntityIDs(game.CategoryCreeps)); n != 0 {
		t.Fatalf("creeps left after full leak: %d", n)
	}
	lives, _ := fieldInt(t, g, game.CategoryPlayers, "player_1", "lives")
	if lives >= 10 {
		t.Fatalf("lives = %d, want < 10 after leaks", lives)
	}
}

func TestRand_DrawCounter(t *testing.T) {
	r := game.NewRand(42)
	if r.Draws() != 0 {
		t.Fatalf("fresh rand draws = %d", r.Draws())
	}
	a := r.Next()
	b := r.Next()
	if a == b {
		t.Fatal("consecutive draws identical")
	}
	if r.Draws() != 2 {
		t.Fatalf("draws = %d, want 2", r.Draws())
	}
	r2 := game.NewRand(42)
	if r2.Next() != a {
		t.Fatal("same seed must reproduce the stream")
	}
}

func fieldInt(t *testing.T, g *game.Game, category, id, field string) (int, bool) {
	t.Helper()
	fields := g.EntityFields(category, id)
	if fields == nil {
		return 0, false
	}
	v, ok := fields[field].(int)
	return v, ok
}
