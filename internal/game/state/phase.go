package state

// Phase is one step of the fixed turn cycle.
type Phase string

// Phases in turn order. Advancing past PhaseEnd wraps to PhaseDraw and
// passes the turn to the other player.
const (
	PhaseDraw    Phase = "draw_phase"
	PhaseStandby Phase = "standby_phase"
	PhaseMain1   Phase = "main_phase_1"
	PhaseBattle  Phase = "battle_phase"
	PhaseMain2   Phase = "main_phase_2"
	PhaseEnd     Phase = "end_phase"
)

var phaseOrder = [...]Phase{
	PhaseDraw,
	PhaseStandby,
	PhaseMain1,
	PhaseBattle,
	PhaseMain2,
	PhaseEnd,
}

// PhaseCount is the number of phases in one full turn.
const PhaseCount = len(phaseOrder)

// Next returns the phase following p in the cycle, and whether the cycle
// wrapped back to PhaseDraw (signalling a turn handover).
//
// Precondition: p must be one of the declared phases.
func (p Phase) Next() (Phase, bool) {
	for i, cur := range phaseOrder {
		if cur == p {
			next := phaseOrder[(i+1)%PhaseCount]
			return next, i == PhaseCount-1
		}
	}
	// Unknown phases reset to the start of the cycle.
	return PhaseDraw, false
}

// Valid reports whether p is one of the declared phases.
func (p Phase) Valid() bool {
	for _, cur := range phaseOrder {
		if cur == p {
			return true
		}
	}
	return false
}
