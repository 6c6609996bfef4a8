// Package game is a minimal deterministic tower-defense simulation: enough
// entity taxonomy (players, towers, creeps, items) to exercise the replay and
// verification core end to end. All state is integer-quantized; the tick step
// is single-threaded and visits entities in stable id order, so a fixed seed
// and a fixed action stream reproduce the run bit for bit.
package game

import (
	"fmt"
	"sort"

	"gridspire.dev/internal/protocol"
	"gridspire.dev/internal/sim/canon"
)

type Config struct {
	Seed          int64
	StartingGold  int
	StartingLives int
	// PathLength is the creep path in cells; a creep whose Z reaches it leaks
	// and costs its target player a life.
	PathLength int
}

func (c *Config) normalize() {
	if c.StartingGold == 0 {
		c.StartingGold = 200
	}
	if c.StartingLives == 0 {
		c.StartingLives = 50
	}
	if c.PathLength == 0 {
		c.PathLength = 30
	}
}

type Player struct {
	ID    string
	Gold  int
	Lives int
	Level int
	Exp   int
}

type Tower struct {
	ID       string
	Owner    string
	Kind     string
	Pos      canon.Vec2i
	Level    int
	Charges  int
	Cooldown int
}

type Creep struct {
	ID    string
	Kind  string
	Pos   canon.Vec2i
	HP    int
	Armor int
}

// Item rarity tiers, lowest to highest.
const (
	RarityCommon = iota
	RarityUncommon
	RarityRare
	RarityUnique
)

type Item struct {
	ID      string
	Kind    string
	Rarity  int
	Carrier string // tower id or "stash_<player>"
	Charges int
}

// Game is a single-threaded authoritative simulation. All state must be
// accessed only from the goroutine driving Step.
type Game struct {
	cfg  Config
	tick uint64
	rng  *Rand

	players map[string]*Player
	towers  map[string]*Tower
	creeps  map[string]*Creep
	items   map[string]*Item

	waveLevel int

	nextTowerNum uint64
	nextCreepNum uint64
	nextItemNum  uint64
}

func New(cfg Config) *Game {
	cfg.normalize()
	return &Game{
		cfg:     cfg,
		rng:     NewRand(cfg.Seed),
		players: map[string]*Player{},
		towers:  map[string]*Tower{},
		creeps:  map[string]*Creep{},
		items:   map[string]*Item{},
	}
}

func (g *Game) CurrentTick() uint64 { return g.tick }
func (g *Game) Seed() int64         { return g.cfg.Seed }
func (g *Game) WaveLevel() int      { return g.waveLevel }

// Settings returns the initial settings recorded into a log's meta line,
// sufficient to reconstruct an identical fresh simulation. Only valid before
// the first step; it includes the player roster, which is fixed at start.
func (g *Game) Settings() map[string]any {
	players := make([]any, 0, len(g.players))
	for _, id := range sortedKeys(g.players) {
		players = append(players, id)
	}
	return map[string]any{
		"starting_gold":  g.cfg.StartingGold,
		"starting_lives": g.cfg.StartingLives,
		"path_length":    g.cfg.PathLength,
		"players":        players,
	}
}

// FromSettings builds a fresh simulation from a recorded meta line.
func FromSettings(seed int64, settings map[string]any) *Game {
	cfg := Config{Seed: seed}
	if v, ok := asInt(settings["starting_gold"]); ok {
		cfg.StartingGold = v
	}
	if v, ok := asInt(settings["starting_lives"]); ok {
		cfg.StartingLives = v
	}
	if v, ok := asInt(settings["path_length"]); ok {
		cfg.PathLength = v
	}
	g := New(cfg)
	if roster, ok := settings["players"].([]any); ok {
		for _, p := range roster {
			if id, ok := p.(string); ok {
				_ = g.AddPlayer(id)
			}
		}
	}
	return g
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	}
	return 0, false
}

// AddPlayer registers a participant before the run starts.
func (g *Game) AddPlayer(id string) error {
	if _, ok := g.players[id]; ok {
		return fmt.Errorf("game: duplicate player %s", id)
	}
	g.players[id] = &Player{
		ID:    id,
		Gold:  g.cfg.StartingGold,
		Lives: g.cfg.StartingLives,
		Level: 1,
	}
	return nil
}

// Step applies the tick's action batch in order, then advances creeps and
// towers. It returns the tick that was executed.
func (g *Game) Step(actions []protocol.Action) (uint64, []ActionResult) {
	now := g.tick

	results := make([]ActionResult, 0, len(actions))
	for _, act := range actions {
		results = append(results, ActionResult{Action: act, Code: g.apply(act)})
	}

	g.advanceCreeps()
	g.advanceTowers()

	g.tick++
	return now, results
}

func (g *Game) advanceCreeps() {
	for _, id := range sortedKeys(g.creeps) {
		c := g.creeps[id]
		c.Pos.Z++
		if c.Pos.Z >= g.cfg.PathLength {
			delete(g.creeps, id)
			for _, pid := range sortedKeys(g.players) {
				p := g.players[pid]
				if p.Lives > 0 {
					p.Lives--
				}
			}
		}
	}
}

func (g *Game) advanceTowers() {
	for _, id := range sortedKeys(g.towers) {
		t := g.towers[id]
		if t.Cooldown > 0 {
			t.Cooldown--
			continue
		}
		target := g.firstCreepInRange(t)
		if target == nil {
			continue
		}
		dmg := 5*t.Level + g.rng.Intn(3) - target.Armor
		if dmg < 1 {
			dmg = 1
		}
		target.HP -= dmg
		t.Cooldown = 2
		if target.HP <= 0 {
			g.killCreep(target, t.Owner)
		}
	}
}

func (g *Game) firstCreepInRange(t *Tower) *Creep {
	r := 3 + t.Level
	for _, id := range sortedKeys(g.creeps) {
		c := g.creeps[id]
		if manhattan(t.Pos, c.Pos) <= r {
			return c
		}
	}
	return nil
}

func (g *Game) killCreep(c *Creep, killerOwner string) {
	delete(g.creeps, c.ID)
	if p, ok := g.players[killerOwner]; ok {
		p.Gold += 10 + g.waveLevel
		p.Exp += 4
		for p.Exp >= 12*p.Level {
			p.Exp -= 12 * p.Level
			p.Level++
		}
	}
	// Occasional item drop into the killer's stash.
	if g.rng.Intn(8) == 0 {
		g.spawnItem(g.rollRarity(), "stash_"+killerOwner)
	}
}

// rollRarity draws an item tier; later waves skew drops upward.
func (g *Game) rollRarity() int {
	roll := g.rng.Intn(100) + g.waveLevel
	switch {
	case roll >= 95:
		return RarityUnique
	case roll >= 80:
		return RarityRare
	case roll >= 55:
		return RarityUncommon
	default:
		return RarityCommon
	}
}

func (g *Game) spawnItem(rarity int, carrier string) *Item {
	g.nextItemNum++
	id := fmt.Sprintf("item_%d", g.nextItemNum)
	it := &Item{
		ID:      id,
		Kind:    itemKinds[g.rng.Intn(len(itemKinds))],
		Rarity:  rarity,
		Carrier: carrier,
		Charges: 3,
	}
	g.items[id] = it
	return it
}

func manhattan(a, b canon.Vec2i) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dz := a.Z - b.Z
	if dz < 0 {
		dz = -dz
	}
	return dx + dz
}

var creepKinds = []string{"MASS", "NORMAL", "AIR", "CHAMPION", "BOSS"}
var itemKinds = []string{"OIL", "CHARM", "RELIC"}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
