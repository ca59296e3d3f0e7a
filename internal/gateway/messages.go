package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/duelhall/duelhall/internal/game/state"
)

// ErrMalformedAction is returned when an inbound message cannot be
// decoded into a recognised action shape.
var ErrMalformedAction = errors.New("malformed action message")

// envelope carries the tag of an inbound action message.
type envelope struct {
	Action string `json:"action"`
}

// PlayCardAction places a card on the board.
type PlayCardAction struct {
	CardID   int64 `json:"card_id"`
	Position int   `json:"position"`
}

// AttackAction declares an attack from one card to another.
type AttackAction struct {
	Attacker int64 `json:"attacker"`
	Target   int64 `json:"target"`
}

// AdvancePhaseAction moves the duel to the next phase.
type AdvancePhaseAction struct{}

// ConcedeAction forfeits the duel to the opponent.
type ConcedeAction struct{}

// inboundAction is a decoded, validated inbound message.
type inboundAction struct {
	Kind    string
	Payload any
}

// decodeAction parses raw into a tagged action variant. Unknown kinds
// decode successfully with a nil Payload; the gateway accepts them
// without state change. Missing required fields are a decode error.
//
// Postcondition: Returns an error wrapping ErrMalformedAction for
// unparseable or incomplete messages.
func decodeAction(raw json.RawMessage) (inboundAction, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return inboundAction{}, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	if env.Action == "" {
		return inboundAction{}, fmt.Errorf("%w: missing action", ErrMalformedAction)
	}

	switch env.Action {
	case state.ActionPlayCard:
		var a PlayCardAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return inboundAction{}, fmt.Errorf("%w: %v", ErrMalformedAction, err)
		}
		if a.CardID == 0 {
			return inboundAction{}, fmt.Errorf("%w: play_card requires card_id", ErrMalformedAction)
		}
		if a.Position < 0 {
			return inboundAction{}, fmt.Errorf("%w: play_card position must be >= 0", ErrMalformedAction)
		}
		return inboundAction{Kind: env.Action, Payload: a}, nil

	case state.ActionAttack:
		var a AttackAction
		if err := json.Unmarshal(raw, &a); err != nil {
			return inboundAction{}, fmt.Errorf("%w: %v", ErrMalformedAction, err)
		}
		if a.Attacker == 0 {
			return inboundAction{}, fmt.Errorf("%w: attack requires attacker", ErrMalformedAction)
		}
		return inboundAction{Kind: env.Action, Payload: a}, nil

	case state.ActionAdvancePhase:
		return inboundAction{Kind: env.Action, Payload: AdvancePhaseAction{}}, nil

	case state.ActionConcede:
		return inboundAction{Kind: env.Action, Payload: ConcedeAction{}}, nil
	}

	// Forward-compatibility: unknown kinds are accepted but carry no
	// state change.
	return inboundAction{Kind: env.Action}, nil
}

// GameUpdate broadcasts the refreshed session snapshot after a
// successful mutation.
type GameUpdate struct {
	Type string         `json:"type"`
	Game state.Snapshot `json:"game"`
}

// PlayerDisconnect notifies remaining members that someone left.
type PlayerDisconnect struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorMessage is the unicast reply for a rejected request.
type ErrorMessage struct {
	Error string `json:"error"`
}

func newGameUpdate(snap state.Snapshot) GameUpdate {
	return GameUpdate{Type: "game_update", Game: snap}
}
