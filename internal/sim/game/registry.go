package game

// The game exposes itself to the snapshot builder as a read-only registry.
// The field set per entity is fixed and deliberately excludes anything
// cosmetic or derived on the fly; every numeric value is already an integer.

const (
	CategoryPlayers = "players"
	CategoryTowers  = "towers"
	CategoryCreeps  = "creeps"
	CategoryItems   = "items"
)

func (g *Game) Categories() []string {
	return []string{CategoryPlayers, CategoryTowers, CategoryCreeps, CategoryItems}
}

func (g *Game) EntityIDs(category string) []string {
	switch category {
	case CategoryPlayers:
		return sortedKeys(g.players)
	case CategoryTowers:
		return sortedKeys(g.towers)
	case CategoryCreeps:
		return sortedKeys(g.creeps)
	case CategoryItems:
		return sortedKeys(g.items)
	}
	return nil
}

func (g *Game) EntityFields(category, id string) map[string]any {
	switch category {
	case CategoryPlayers:
		p, ok := g.players[id]
		if !ok {
			return nil
		}
		return map[string]any{
			"gold":  p.Gold,
			"lives": p.Lives,
			"level": p.Level,
			"exp":   p.Exp,
		}
	case CategoryTowers:
		t, ok := g.towers[id]
		if !ok {
			return nil
		}
		return map[string]any{
			"owner":    t.Owner,
			"kind":     t.Kind,
			"pos_x":    t.Pos.X,
			"pos_z":    t.Pos.Z,
			"level":    t.Level,
			"charges":  t.Charges,
			"cooldown": t.Cooldown,
		}
	case CategoryCreeps:
		c, ok := g.creeps[id]
		if !ok {
			return nil
		}
		return map[string]any{
			"kind":  c.Kind,
			"pos_x": c.Pos.X,
			"pos_z": c.Pos.Z,
			"hp":    c.HP,
			"armor": c.Armor,
		}
	case CategoryItems:
		it, ok := g.items[id]
		if !ok {
			return nil
		}
		return map[string]any{
			"kind":    it.Kind,
			"rarity":  it.Rarity,
			"carrier": it.Carrier,
			"charges": it.Charges,
		}
	}
	return nil
}

// GlobalFields exposes seed, RNG position and the id counters: everything
// non-entity that affects future simulation state.
func (g *Game) GlobalFields() map[string]any {
	return map[string]any{
		"seed":       g.cfg.Seed,
		"rng_draws":  g.rng.Draws(),
		"wave_level": g.waveLevel,
		"next_tower": g.nextTowerNum,
		"next_creep": g.nextCreepNum,
		"next_item":  g.nextItemNum,
	}
}
