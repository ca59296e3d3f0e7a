package state

import "time"

// Snapshot is a deep copy of a duel's state suitable for encoding and
// broadcast after the session lock is released.
type Snapshot struct {
	ID            int64                  `json:"id"`
	Status        Status                 `json:"status"`
	TurnPlayerID  *int64                 `json:"turn_player_id"`
	Phase         Phase                  `json:"phase"`
	Players       map[int64]*PlayerState `json:"players"`
	Spectators    []int64                `json:"spectators"`
	ActionHistory []ActionRecord         `json:"action_history"`
	WinnerID      *int64                 `json:"winner_id,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
}

// Snapshot copies the duel's externally visible state.
//
// Postcondition: The returned value shares no mutable memory with d.
func (d *Duel) Snapshot() Snapshot {
	snap := Snapshot{
		ID:         d.ID,
		Status:     d.Status,
		Phase:      d.Phase,
		Players:    make(map[int64]*PlayerState, len(d.Players)),
		Spectators: make([]int64, 0, len(d.Spectators)),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if d.TurnPlayerID != 0 {
		id := d.TurnPlayerID
		snap.TurnPlayerID = &id
	}
	if d.WinnerID != 0 {
		id := d.WinnerID
		snap.WinnerID = &id
	}
	if !d.CompletedAt.IsZero() {
		t := d.CompletedAt
		snap.CompletedAt = &t
	}
	for id, p := range d.Players {
		snap.Players[id] = p.clone()
	}
	for id := range d.Spectators {
		snap.Spectators = append(snap.Spectators, id)
	}
	snap.ActionHistory = append([]ActionRecord{}, d.Actions...)
	return snap
}
