package state

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPlayer_FirstBecomesTurnOwner(t *testing.T) {
	d := NewDuel(42, 0)

	require.NoError(t, d.AddPlayer(1, "Alice"))
	assert.Equal(t, StatusWaiting, d.Status)
	assert.Equal(t, int64(1), d.TurnPlayerID)
	assert.Equal(t, DefaultLifePoints, d.Players[1].LifePoints)
}

func TestAddPlayer_SecondActivates(t *testing.T) {
	d := NewDuel(42, 0)

	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))
	assert.Equal(t, StatusActive, d.Status)
	// Turn owner stays with the first seat.
	assert.Equal(t, int64(1), d.TurnPlayerID)
}

func TestAddPlayer_Full(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))

	err := d.AddPlayer(3, "Carol")
	assert.ErrorIs(t, err, ErrSessionFull)
	assert.Equal(t, StatusActive, d.Status)
	assert.Len(t, d.Players, 2)
	assert.Equal(t, int64(1), d.TurnPlayerID)
}

func TestAddPlayer_Duplicate(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))

	err := d.AddPlayer(1, "Alice")
	assert.ErrorIs(t, err, ErrDuplicatePlayer)
	assert.Len(t, d.Players, 1)
}

func TestAddPlayer_ConfiguredLife(t *testing.T) {
	d := NewDuel(1, 4000)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	assert.Equal(t, 4000, d.Players[1].LifePoints)
}

func TestRemovePlayer_RemainingBecomesTurnOwner(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))

	d.RemovePlayer(1)
	assert.Equal(t, int64(2), d.TurnPlayerID)
	assert.Equal(t, StatusWaiting, d.Status)
}

func TestRemovePlayer_LastResetsToWaiting(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))

	d.RemovePlayer(1)
	assert.Equal(t, StatusWaiting, d.Status)
	assert.Zero(t, d.TurnPlayerID)
	assert.Empty(t, d.Players)
}

func TestRemovePlayer_AbsentIsNoop(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))

	d.RemovePlayer(99)
	assert.Len(t, d.Players, 1)
	assert.Equal(t, int64(1), d.TurnPlayerID)
}

func TestRecordAction_NotActive(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))

	_, err := d.RecordAction(ActionPlayCard, 1, nil)
	assert.ErrorIs(t, err, ErrSessionNotActive)
	assert.Empty(t, d.Actions)
}

func TestRecordAction_NotTurnOwner(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))

	_, err := d.RecordAction(ActionAttack, 2, nil)
	assert.ErrorIs(t, err, ErrNotTurnOwner)
	assert.Empty(t, d.Actions)
}

func TestRecordAction_UnknownPlayer(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))

	_, err := d.RecordAction(ActionConcede, 99, nil)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestRecordAction_ConcedeDoesNotRequireTurn(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))

	rec, err := d.RecordAction(ActionConcede, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionConcede, rec.Kind)
	assert.Len(t, d.Actions, 1)
}

func TestRecordAction_AppendsInOrder(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))

	payload := json.RawMessage(`{"card_id":1234,"position":1}`)
	rec, err := d.RecordAction(ActionPlayCard, 1, payload)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.PlayerID)
	assert.JSONEq(t, string(payload), string(rec.Payload))

	_, err = d.RecordAction(ActionAttack, 1, nil)
	require.NoError(t, err)
	require.Len(t, d.Actions, 2)
	assert.Equal(t, ActionPlayCard, d.Actions[0].Kind)
	assert.Equal(t, ActionAttack, d.Actions[1].Kind)
}

func TestAdvancePhase_NotActive(t *testing.T) {
	d := NewDuel(42, 0)
	err := d.AdvancePhase()
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestAdvancePhase_FullCycleFlipsTurnOnce(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))
	require.Equal(t, PhaseDraw, d.Phase)

	for i := 0; i < PhaseCount; i++ {
		// Turn must not change until the cycle wraps.
		if i < PhaseCount-1 {
			assert.Equal(t, int64(1), d.TurnPlayerID)
		}
		require.NoError(t, d.AdvancePhase())
	}

	assert.Equal(t, PhaseDraw, d.Phase)
	assert.Equal(t, int64(2), d.TurnPlayerID)
}

func TestComplete(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))

	require.NoError(t, d.Complete(2))
	assert.Equal(t, StatusCompleted, d.Status)
	assert.Equal(t, int64(2), d.WinnerID)
	assert.False(t, d.CompletedAt.IsZero())

	// Terminal: no further mutation.
	_, err := d.RecordAction(ActionPlayCard, 2, nil)
	assert.ErrorIs(t, err, ErrSessionNotActive)
	assert.ErrorIs(t, d.AdvancePhase(), ErrSessionNotActive)
}

func TestComplete_UnknownWinner(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))

	err := d.Complete(99)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
	assert.Equal(t, StatusWaiting, d.Status)
}

func TestAbandon(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))

	d.Abandon()
	assert.Equal(t, StatusAbandoned, d.Status)

	_, err := d.RecordAction(ActionPlayCard, 1, nil)
	assert.True(t, errors.Is(err, ErrSessionNotActive))

	// Idempotent.
	d.Abandon()
	assert.Equal(t, StatusAbandoned, d.Status)
}

func TestSpectators(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))

	d.AddSpectator(7)
	d.AddSpectator(7)
	assert.True(t, d.Spectators[7])

	// Seated players never become spectators.
	d.AddSpectator(1)
	assert.False(t, d.Spectators[1])

	// Seating a spectator promotes them out of the set.
	require.NoError(t, d.AddPlayer(7, "Carol"))
	assert.False(t, d.Spectators[7])

	d.RemoveSpectator(99)
}

// Full walkthrough of a duel: seating, action policy, turn handover.
func TestDuel_Scenario(t *testing.T) {
	d := NewDuel(42, 0)

	require.NoError(t, d.AddPlayer(1, "Alice"))
	assert.Equal(t, StatusWaiting, d.Status)
	assert.Equal(t, int64(1), d.TurnPlayerID)

	require.NoError(t, d.AddPlayer(2, "Bob"))
	assert.Equal(t, StatusActive, d.Status)
	assert.Equal(t, int64(1), d.TurnPlayerID)

	_, err := d.RecordAction(ActionPlayCard, 1, json.RawMessage(`{"card_id":5,"position":0}`))
	require.NoError(t, err)
	assert.Len(t, d.Actions, 1)

	_, err = d.RecordAction(ActionAttack, 2, nil)
	assert.ErrorIs(t, err, ErrNotTurnOwner)
	assert.Len(t, d.Actions, 1)

	for i := 0; i < PhaseCount; i++ {
		require.NoError(t, d.AdvancePhase())
	}
	assert.Equal(t, int64(2), d.TurnPlayerID)
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	d := NewDuel(42, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))
	_, err := d.RecordAction(ActionPlayCard, 1, nil)
	require.NoError(t, err)

	snap := d.Snapshot()
	require.NotNil(t, snap.TurnPlayerID)
	assert.Equal(t, int64(1), *snap.TurnPlayerID)
	assert.Len(t, snap.ActionHistory, 1)

	// Mutating the snapshot must not touch the duel.
	snap.Players[1].LifePoints = 0
	snap.Players[1].Hand = append(snap.Players[1].Hand, 9)
	assert.Equal(t, DefaultLifePoints, d.Players[1].LifePoints)
	assert.Empty(t, d.Players[1].Hand)
}

func TestSnapshot_WaitingHasNoWinner(t *testing.T) {
	d := NewDuel(7, 0)
	snap := d.Snapshot()
	assert.Nil(t, snap.TurnPlayerID)
	assert.Nil(t, snap.WinnerID)
	assert.Nil(t, snap.CompletedAt)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"turn_player_id":null`)
	assert.Contains(t, string(raw), `"status":"waiting"`)
}
