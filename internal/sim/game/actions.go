package game

import (
	"fmt"

	"gridspire.dev/internal/protocol"
	"gridspire.dev/internal/sim/canon"
)

// ActionResult pairs an applied action with its result code; "" means the
// action was applied.
type ActionResult struct {
	Action protocol.Action
	Code   string
}

func (r ActionResult) OK() bool { return r.Code == "" }

var towerCosts = map[string]int{
	"ARROW":   50,
	"CANNON":  70,
	"FROST":   60,
	"STORM":   90,
	"OBELISK": 120,
}

// apply dispatches on the closed action type set. UI-only and control action
// kinds never reach simulation state and are silently accepted.
func (g *Game) apply(act protocol.Action) string {
	switch act.Type {
	case protocol.ActionBuildTower:
		return g.applyBuildTower(act)
	case protocol.ActionSellTower:
		return g.applySellTower(act)
	case protocol.ActionUpgradeTower:
		return g.applyUpgradeTower(act)
	case protocol.ActionCastAbility:
		return g.applyCastAbility(act)
	case protocol.ActionMoveItem:
		return g.applyMoveItem(act)
	case protocol.ActionUseItem:
		return g.applyUseItem(act)
	case protocol.ActionTransmute:
		return g.applyTransmute(act)
	case protocol.ActionSpawnWave:
		return g.applySpawnWave(act)
	case protocol.ActionSelect, protocol.ActionPing,
		protocol.ActionPause, protocol.ActionResume, protocol.ActionSetSpeed:
		return ""
	}
	return protocol.ErrBadRequest
}

func (g *Game) applyBuildTower(act protocol.Action) string {
	p, ok := g.players[act.PlayerID]
	if !ok {
		return protocol.ErrInvalidTarget
	}
	cost, ok := towerCosts[act.TowerKind]
	if !ok {
		return protocol.ErrBadRequest
	}
	pos := canon.Vec2i{X: act.Pos[0], Z: act.Pos[1]}
	for _, id := range sortedKeys(g.towers) {
		if g.towers[id].Pos == pos {
			return protocol.ErrBlocked
		}
	}
	if p.Gold < cost {
		return protocol.ErrNoResource
	}
	p.Gold -= cost
	g.nextTowerNum++
	id := fmt.Sprintf("tower_%d", g.nextTowerNum)
	g.towers[id] = &Tower{
		ID:    id,
		Owner: act.PlayerID,
		Kind:  act.TowerKind,
		Pos:   pos,
		Level: 1,
	}
	return ""
}

func (g *Game) applySellTower(act protocol.Action) string {
	t, ok := g.towers[act.TowerID]
	if !ok || t.Owner != act.PlayerID {
		return protocol.ErrInvalidTarget
	}
	delete(g.towers, t.ID)
	g.players[act.PlayerID].Gold += towerCosts[t.Kind] / 2
	return ""
}

func (g *Game) applyUpgradeTower(act protocol.Action) string {
	t, ok := g.towers[act.TowerID]
	if !ok || t.Owner != act.PlayerID {
		return protocol.ErrInvalidTarget
	}
	p := g.players[act.PlayerID]
	cost := 40 * t.Level
	if p.Gold < cost {
		return protocol.ErrNoResource
	}
	p.Gold -= cost
	t.Level++
	return ""
}

func (g *Game) applyCastAbility(act protocol.Action) string {
	t, ok := g.towers[act.TowerID]
	if !ok || t.Owner != act.PlayerID {
		return protocol.ErrInvalidTarget
	}
	c, ok := g.creeps[act.TargetID]
	if !ok {
		return protocol.ErrInvalidTarget
	}
	t.Charges++
	dmg := 10*t.Level + g.rng.Intn(5)
	c.HP -= dmg
	if c.HP <= 0 {
		g.killCreep(c, t.Owner)
	}
	return ""
}

func (g *Game) applyMoveItem(act protocol.Action) string {
	it, ok := g.items[act.ItemID]
	if !ok {
		return protocol.ErrInvalidTarget
	}
	switch {
	case act.TargetID == "stash_"+act.PlayerID:
	case g.towers[act.TargetID] != nil && g.towers[act.TargetID].Owner == act.PlayerID:
	default:
		return protocol.ErrInvalidTarget
	}
	it.Carrier = act.TargetID
	return ""
}

func (g *Game) applyUseItem(act protocol.Action) string {
	it, ok := g.items[act.ItemID]
	if !ok {
		return protocol.ErrInvalidTarget
	}
	if it.Charges <= 0 {
		return protocol.ErrNoResource
	}
	p, ok := g.players[act.PlayerID]
	if !ok {
		return protocol.ErrInvalidTarget
	}
	it.Charges--
	p.Gold += 5
	if it.Charges == 0 {
		delete(g.items, it.ID)
	}
	return ""
}

// recipe describes one cube transmutation: how many stash items it consumes
// and what tier the result comes out at.
type recipe struct {
	ingredients int
	sameRarity  bool
	rarityShift int
}

var recipes = map[string]recipe{
	"REBREW":  {ingredients: 2, sameRarity: true, rarityShift: 0},
	"DISTILL": {ingredients: 4, sameRarity: true, rarityShift: 1},
}

// applyTransmute consumes stash items according to a recipe and rolls a
// replacement. The result kind is an RNG draw, so transmutes are part of the
// deterministic input stream like any other state-affecting action.
func (g *Game) applyTransmute(act protocol.Action) string {
	if _, ok := g.players[act.PlayerID]; !ok {
		return protocol.ErrInvalidTarget
	}
	rec, ok := recipes[act.RecipeID]
	if !ok {
		return protocol.ErrBadRequest
	}
	if len(act.ItemIDs) != rec.ingredients {
		return protocol.ErrBadRequest
	}

	stash := "stash_" + act.PlayerID
	seen := map[string]bool{}
	rarity := -1
	for _, id := range act.ItemIDs {
		if seen[id] {
			return protocol.ErrBadRequest
		}
		seen[id] = true
		it, ok := g.items[id]
		if !ok || it.Carrier != stash {
			return protocol.ErrInvalidTarget
		}
		if rarity == -1 {
			rarity = it.Rarity
		} else if rec.sameRarity && it.Rarity != rarity {
			return protocol.ErrBadRequest
		}
	}

	for _, id := range act.ItemIDs {
		delete(g.items, id)
	}
	out := rarity + rec.rarityShift
	if out > RarityUnique {
		out = RarityUnique
	}
	g.spawnItem(out, stash)
	return ""
}

func (g *Game) applySpawnWave(act protocol.Action) string {
	g.waveLevel++
	count := 5 + g.waveLevel%3
	for i := 0; i < count; i++ {
		g.nextCreepNum++
		id := fmt.Sprintf("creep_%d", g.nextCreepNum)
		g.creeps[id] = &Creep{
			ID:    id,
			Kind:  creepKinds[g.waveLevel%len(creepKinds)],
			Pos:   canon.Vec2i{X: g.rng.Intn(5), Z: 0},
			HP:    20 + 10*g.waveLevel + g.rng.Intn(5),
			Armor: g.waveLevel / 3,
		}
	}
	return ""
}
