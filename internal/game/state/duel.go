// Package state implements the per-session duel state machine: players,
// phases, turn ownership, and the action log. It is pure transition
// logic with no locking, networking, or persistence awareness; callers
// are responsible for serialising access to a Duel.
package state

import (
	"encoding/json"
	"errors"
	"time"
)

// Status is the lifecycle state of a duel session.
type Status string

const (
	// StatusWaiting means fewer than two player slots are filled.
	StatusWaiting Status = "waiting"
	// StatusActive means both player slots are filled and play may proceed.
	StatusActive Status = "active"
	// StatusCompleted means the duel ended with a recorded winner. Terminal.
	StatusCompleted Status = "completed"
	// StatusAbandoned means the duel was administratively closed. Terminal.
	StatusAbandoned Status = "abandoned"
)

// MaxPlayers is the number of player slots in a duel.
const MaxPlayers = 2

// State-machine errors. Callers match with errors.Is.
var (
	ErrSessionFull      = errors.New("session already has two players")
	ErrDuplicatePlayer  = errors.New("player already in session")
	ErrSessionNotActive = errors.New("session is not active")
	ErrNotTurnOwner     = errors.New("action requires turn ownership")
	ErrUnknownPlayer    = errors.New("player not in session")
)

// Duel is one session's authoritative game state.
type Duel struct {
	ID     int64
	Status Status
	// TurnPlayerID is the current turn owner, or 0 when no player is seated.
	TurnPlayerID int64
	Phase        Phase

	Players    map[int64]*PlayerState
	seatOrder  []int64
	Spectators map[int64]bool
	Actions    []ActionRecord

	// WinnerID is set by Complete; 0 until then.
	WinnerID int64

	StartingLife int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// NewDuel creates an empty Waiting duel.
//
// Precondition: startingLife must be >= 0; 0 selects DefaultLifePoints.
func NewDuel(id int64, startingLife int) *Duel {
	now := time.Now()
	return &Duel{
		ID:           id,
		Status:       StatusWaiting,
		Phase:        PhaseDraw,
		Players:      make(map[int64]*PlayerState),
		Spectators:   make(map[int64]bool),
		StartingLife: startingLife,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (d *Duel) touch() {
	d.UpdatedAt = time.Now()
}

// AddPlayer seats a player with default life and empty zones.
// The first player seated becomes the turn owner; seating the second
// player activates the duel.
//
// Postcondition: Returns ErrDuplicatePlayer if the id is already seated,
// ErrSessionFull if both slots are occupied, nil otherwise.
func (d *Duel) AddPlayer(playerID int64, name string) error {
	if _, ok := d.Players[playerID]; ok {
		return ErrDuplicatePlayer
	}
	if len(d.Players) >= MaxPlayers {
		return ErrSessionFull
	}

	d.Players[playerID] = newPlayerState(playerID, name, d.StartingLife)
	d.seatOrder = append(d.seatOrder, playerID)
	delete(d.Spectators, playerID)

	if len(d.Players) == 1 {
		d.TurnPlayerID = playerID
	}
	if len(d.Players) == MaxPlayers {
		d.Status = StatusActive
	}
	d.touch()
	return nil
}

// RemovePlayer unseats a player. A no-op if the id is not seated.
//
// Postcondition: If one player remains they become the turn owner; if
// none remain the turn owner is cleared. An Active duel losing a seat
// returns to Waiting.
func (d *Duel) RemovePlayer(playerID int64) {
	if _, ok := d.Players[playerID]; !ok {
		return
	}

	delete(d.Players, playerID)
	for i, id := range d.seatOrder {
		if id == playerID {
			d.seatOrder = append(d.seatOrder[:i], d.seatOrder[i+1:]...)
			break
		}
	}

	switch len(d.Players) {
	case 1:
		d.TurnPlayerID = d.seatOrder[0]
	case 0:
		d.TurnPlayerID = 0
	}
	if d.Status == StatusActive && len(d.Players) < MaxPlayers {
		d.Status = StatusWaiting
	}
	d.touch()
}

// AddSpectator registers a watching identity. Seated players are never
// spectators. A no-op if already registered.
func (d *Duel) AddSpectator(id int64) {
	if _, seated := d.Players[id]; seated {
		return
	}
	if !d.Spectators[id] {
		d.Spectators[id] = true
		d.touch()
	}
}

// RemoveSpectator drops a watching identity. A no-op if absent.
func (d *Duel) RemoveSpectator(id int64) {
	if d.Spectators[id] {
		delete(d.Spectators, id)
		d.touch()
	}
}

// RecordAction validates and appends one action to the log.
//
// Postcondition: Returns ErrSessionNotActive unless the duel is Active,
// ErrUnknownPlayer if the actor is not seated, ErrNotTurnOwner if the
// kind is turn-scoped and the actor does not own the turn. On success
// the returned record is the appended log entry.
func (d *Duel) RecordAction(kind string, playerID int64, payload json.RawMessage) (ActionRecord, error) {
	if d.Status != StatusActive {
		return ActionRecord{}, ErrSessionNotActive
	}
	if _, ok := d.Players[playerID]; !ok {
		return ActionRecord{}, ErrUnknownPlayer
	}
	if RequiresTurn(kind) && playerID != d.TurnPlayerID {
		return ActionRecord{}, ErrNotTurnOwner
	}

	rec := ActionRecord{
		Kind:      kind,
		PlayerID:  playerID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	d.Actions = append(d.Actions, rec)
	d.touch()
	return rec, nil
}

// AdvancePhase moves to the next phase in the cycle. Wrapping past the
// end phase hands the turn to the other player; this is the only
// mechanism that changes turn ownership during active play.
//
// Postcondition: Returns ErrSessionNotActive unless the duel is Active.
func (d *Duel) AdvancePhase() error {
	if d.Status != StatusActive {
		return ErrSessionNotActive
	}

	next, wrapped := d.Phase.Next()
	d.Phase = next
	if wrapped {
		d.TurnPlayerID = d.opponentOf(d.TurnPlayerID)
	}
	d.touch()
	return nil
}

func (d *Duel) opponentOf(playerID int64) int64 {
	for _, id := range d.seatOrder {
		if id != playerID {
			return id
		}
	}
	return playerID
}

// Complete ends the duel with a winner. Terminal: RecordAction and
// AdvancePhase reject the session afterwards.
//
// Postcondition: Returns ErrUnknownPlayer if winnerID is not seated.
func (d *Duel) Complete(winnerID int64) error {
	if _, ok := d.Players[winnerID]; !ok {
		return ErrUnknownPlayer
	}
	d.Status = StatusCompleted
	d.WinnerID = winnerID
	d.CompletedAt = time.Now()
	d.touch()
	return nil
}

// Abandon administratively closes the duel from any state. Terminal.
// Idempotent.
func (d *Duel) Abandon() {
	if d.Status == StatusAbandoned {
		return
	}
	d.Status = StatusAbandoned
	d.touch()
}

// PlayerCount returns the number of seated players.
func (d *Duel) PlayerCount() int {
	return len(d.Players)
}

// SeatOrder returns seated player ids in seating order.
func (d *Duel) SeatOrder() []int64 {
	return append([]int64{}, d.seatOrder...)
}
