package state

import (
	"encoding/json"
	"time"
)

// Recognised action kinds. Unknown kinds are tolerated at the gateway and
// never reach the action log.
const (
	ActionPlayCard     = "play_card"
	ActionAttack       = "attack"
	ActionAdvancePhase = "advance_phase"
	ActionConcede      = "concede"
)

// RequiresTurn reports whether kind may only be performed by the current
// turn owner. Movement and placement actions are turn-scoped;
// administrative actions such as concede are not.
func RequiresTurn(kind string) bool {
	switch kind {
	case ActionPlayCard, ActionAttack, ActionAdvancePhase:
		return true
	}
	return false
}

// ActionRecord is one entry of a duel's action log. Records are appended
// in strict arrival order and never mutated afterwards.
type ActionRecord struct {
	Kind      string          `json:"action_type"`
	PlayerID  int64           `json:"player_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"data,omitempty"`
}
