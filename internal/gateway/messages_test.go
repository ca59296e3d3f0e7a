package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhall/duelhall/internal/game/state"
)

func TestDecodeActionPlayCard(t *testing.T) {
	action, err := decodeAction(json.RawMessage(`{"action":"play_card","card_id":42,"position":2}`))
	require.NoError(t, err)
	assert.Equal(t, state.ActionPlayCard, action.Kind)
	assert.Equal(t, PlayCardAction{CardID: 42, Position: 2}, action.Payload)
}

func TestDecodeActionPlayCardMissingCardID(t *testing.T) {
	_, err := decodeAction(json.RawMessage(`{"action":"play_card","position":1}`))
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func TestDecodeActionPlayCardNegativePosition(t *testing.T) {
	_, err := decodeAction(json.RawMessage(`{"action":"play_card","card_id":7,"position":-1}`))
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func TestDecodeActionAttack(t *testing.T) {
	action, err := decodeAction(json.RawMessage(`{"action":"attack","attacker":10,"target":20}`))
	require.NoError(t, err)
	assert.Equal(t, state.ActionAttack, action.Kind)
	assert.Equal(t, AttackAction{Attacker: 10, Target: 20}, action.Payload)
}

func TestDecodeActionAttackMissingAttacker(t *testing.T) {
	_, err := decodeAction(json.RawMessage(`{"action":"attack","target":20}`))
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func TestDecodeActionAdvancePhase(t *testing.T) {
	action, err := decodeAction(json.RawMessage(`{"action":"advance_phase"}`))
	require.NoError(t, err)
	assert.Equal(t, state.ActionAdvancePhase, action.Kind)
	assert.Equal(t, AdvancePhaseAction{}, action.Payload)
}

func TestDecodeActionConcede(t *testing.T) {
	action, err := decodeAction(json.RawMessage(`{"action":"concede"}`))
	require.NoError(t, err)
	assert.Equal(t, state.ActionConcede, action.Kind)
}

func TestDecodeActionUnknownKindAccepted(t *testing.T) {
	action, err := decodeAction(json.RawMessage(`{"action":"taunt","message":"your move"}`))
	require.NoError(t, err)
	assert.Equal(t, "taunt", action.Kind)
	assert.Nil(t, action.Payload)
}

func TestDecodeActionMissingTag(t *testing.T) {
	_, err := decodeAction(json.RawMessage(`{"card_id":42}`))
	assert.ErrorIs(t, err, ErrMalformedAction)
}

func TestDecodeActionInvalidJSON(t *testing.T) {
	_, err := decodeAction(json.RawMessage(`not json`))
	assert.ErrorIs(t, err, ErrMalformedAction)
}
