package protocol

// Version is the log schema version written into every meta record.
const Version = 1

const (
	// State-affecting actions. These are recorded to the action log and
	// re-injected during playback.
	ActionBuildTower   = "BUILD_TOWER"
	ActionSellTower    = "SELL_TOWER"
	ActionUpgradeTower = "UPGRADE_TOWER"
	ActionCastAbility  = "CAST_ABILITY"
	ActionMoveItem     = "MOVE_ITEM"
	ActionUseItem      = "USE_ITEM"
	ActionTransmute    = "TRANSMUTE"
	ActionSpawnWave    = "SPAWN_WAVE"

	// Local/UI-only actions. Never logged, never replayed.
	ActionSelect = "SELECT"
	ActionPing   = "PING"

	// Playback control. Accepted while a replay is running; not part of the
	// simulation state and never logged.
	ActionPause    = "PAUSE"
	ActionResume   = "RESUME"
	ActionSetSpeed = "SET_SPEED"
)

// Action is one discrete participant intent applied atomically within a tick.
// All target references are stable identifiers, never pointers.
type Action struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`

	TowerID   string   `json:"tower_id,omitempty"`
	TowerKind string   `json:"tower_kind,omitempty"`
	ItemID    string   `json:"item_id,omitempty"`
	ItemIDs   []string `json:"item_ids,omitempty"`
	RecipeID  string   `json:"recipe_id,omitempty"`
	TargetID  string   `json:"target_id,omitempty"`
	AbilityID string   `json:"ability_id,omitempty"`
	Pos       [2]int   `json:"pos"`
	WaveLevel int      `json:"wave_level,omitempty"`
	Speed     int      `json:"speed,omitempty"`
}

var replayableTypes = map[string]struct{}{
	ActionBuildTower:   {},
	ActionSellTower:    {},
	ActionUpgradeTower: {},
	ActionCastAbility:  {},
	ActionMoveItem:     {},
	ActionUseItem:      {},
	ActionTransmute:    {},
	ActionSpawnWave:    {},
}

var controlTypes = map[string]struct{}{
	ActionPause:    {},
	ActionResume:   {},
	ActionSetSpeed: {},
}

// Replayable reports whether an action type meaningfully affects simulation
// state and belongs in the action log.
func Replayable(actionType string) bool {
	_, ok := replayableTypes[actionType]
	return ok
}

// Control reports whether an action type is a playback-control action that
// bypasses the playback input lock.
func Control(actionType string) bool {
	_, ok := controlTypes[actionType]
	return ok
}

// Known reports whether an action type belongs to the closed action set.
func Known(actionType string) bool {
	if Replayable(actionType) || Control(actionType) {
		return true
	}
	switch actionType {
	case ActionSelect, ActionPing:
		return true
	}
	return false
}
