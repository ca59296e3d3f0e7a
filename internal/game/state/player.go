package state

// DefaultLifePoints is the starting life total when none is configured.
const DefaultLifePoints = 8000

// CardOrientation describes how a card sits in a field slot.
type CardOrientation string

const (
	FaceUpAttack    CardOrientation = "face_up_attack"
	FaceUpDefense   CardOrientation = "face_up_defense"
	FaceDownDefense CardOrientation = "face_down_defense"
	FaceDown        CardOrientation = "face_down"
)

// FieldCard is a card occupying a positioned field slot.
type FieldCard struct {
	CardID      int64           `json:"id"`
	Orientation CardOrientation `json:"orientation"`
}

// PlayerState holds one seated player's side of the duel. It is owned
// exclusively by its Duel and mutated only through Duel operations
// invoked on behalf of that player.
type PlayerState struct {
	ID         int64  `json:"id"`
	Name       string `json:"username"`
	LifePoints int    `json:"life_points"`

	Deck      []int64 `json:"deck"`
	Hand      []int64 `json:"hand"`
	Graveyard []int64 `json:"graveyard"`
	Banished  []int64 `json:"banished"`
	ExtraDeck []int64 `json:"extra_deck"`

	// Field slots are keyed by board position.
	FieldMonsters map[int]FieldCard `json:"field_monsters"`
	FieldSpells   map[int]FieldCard `json:"field_spells"`
	FieldTraps    map[int]FieldCard `json:"field_traps"`
}

func newPlayerState(id int64, name string, lifePoints int) *PlayerState {
	if lifePoints <= 0 {
		lifePoints = DefaultLifePoints
	}
	return &PlayerState{
		ID:            id,
		Name:          name,
		LifePoints:    lifePoints,
		Deck:          []int64{},
		Hand:          []int64{},
		Graveyard:     []int64{},
		Banished:      []int64{},
		ExtraDeck:     []int64{},
		FieldMonsters: make(map[int]FieldCard),
		FieldSpells:   make(map[int]FieldCard),
		FieldTraps:    make(map[int]FieldCard),
	}
}

func (p *PlayerState) clone() *PlayerState {
	cp := *p
	cp.Deck = append([]int64{}, p.Deck...)
	cp.Hand = append([]int64{}, p.Hand...)
	cp.Graveyard = append([]int64{}, p.Graveyard...)
	cp.Banished = append([]int64{}, p.Banished...)
	cp.ExtraDeck = append([]int64{}, p.ExtraDeck...)
	cp.FieldMonsters = make(map[int]FieldCard, len(p.FieldMonsters))
	for k, v := range p.FieldMonsters {
		cp.FieldMonsters[k] = v
	}
	cp.FieldSpells = make(map[int]FieldCard, len(p.FieldSpells))
	for k, v := range p.FieldSpells {
		cp.FieldSpells[k] = v
	}
	cp.FieldTraps = make(map[int]FieldCard, len(p.FieldTraps))
	for k, v := range p.FieldTraps {
		cp.FieldTraps[k] = v
	}
	return &cp
}
