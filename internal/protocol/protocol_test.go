package protocol_test

import (
	"encoding/json"
	"strings"
	"testing"

	"gridspire.dev/internal/protocol"
)

func TestActionClassification(t *testing.T) {
	replayable := []string{
		protocol.ActionBuildTower, protocol.ActionSellTower,
		protocol.ActionUpgradeTower, protocol.ActionCastAbility,
		protocol.ActionMoveItem, protocol.ActionUseItem,
		protocol.ActionTransmute, protocol.ActionSpawnWave,
	}
	for _, typ := range replayable {
		if !protocol.Replayable(typ) || !protocol.Known(typ) {
			t.Fatalf("%s must be replayable and known", typ)
		}
		if protocol.Control(typ) {
			t.Fatalf("%s must not be a control action", typ)
		}
	}
	for _, typ := range []string{protocol.ActionPause, protocol.ActionResume, protocol.ActionSetSpeed} {
		if !protocol.Control(typ) || protocol.Replayable(typ) {
			t.Fatalf("%s must be control-only", typ)
		}
	}
	if protocol.Known("TELEPORT") || protocol.Replayable("") {
		t.Fatal("unknown types must stay outside the closed set")
	}
}

func TestActionPosAlwaysSerialized(t *testing.T) {
	// Targeted actions distinguish a build at the origin cell from an
	// unpositioned action only through an explicit pos field.
	raw, err := json.Marshal(protocol.Action{
		Type:     protocol.ActionBuildTower,
		PlayerID: "player_1",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"pos":[0,0]`) {
		t.Fatalf("pos missing from encoded action: %s", raw)
	}
}
