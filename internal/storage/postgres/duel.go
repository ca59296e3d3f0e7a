package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duelhall/duelhall/internal/game/state"
)

// ErrDuelNotFound is returned when a duel record lookup yields no results.
var ErrDuelNotFound = errors.New("duel record not found")

// DuelRecord is one persisted duel session row.
type DuelRecord struct {
	ID          int64
	Status      string
	Player1ID   *int64
	Player2ID   *int64
	WinnerID    *int64
	GameState   []byte
	ActionLog   []byte
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	CompletedAt *time.Time
}

// DuelRepository persists duel session snapshots. During play the
// in-memory state is the source of truth; these writes are bookkeeping
// and never gate the live protocol.
type DuelRepository struct {
	db *pgxpool.Pool
}

// NewDuelRepository creates a DuelRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewDuelRepository(db *pgxpool.Pool) *DuelRepository {
	return &DuelRepository{db: db}
}

// CreateSessionRecord inserts a fresh Waiting duel row. A no-op if the
// row already exists.
func (r *DuelRepository) CreateSessionRecord(ctx context.Context, duelID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO duels (id, status)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		duelID, string(state.StatusWaiting),
	)
	if err != nil {
		return fmt.Errorf("inserting duel %d: %w", duelID, err)
	}
	return nil
}

// JoinSessionRecord records a player taking a seat. The first free seat
// column is used; a player already recorded keeps their seat. Recording
// a third player is a no-op.
//
// Postcondition: Returns ErrDuelNotFound if the duel row does not exist.
func (r *DuelRepository) JoinSessionRecord(ctx context.Context, duelID, playerID int64) error {
	var p1, p2 *int64
	err := r.db.QueryRow(ctx,
		`SELECT player1_id, player2_id FROM duels WHERE id = $1`,
		duelID,
	).Scan(&p1, &p2)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuelNotFound
		}
		return fmt.Errorf("reading duel %d seats: %w", duelID, err)
	}

	var column string
	switch {
	case p1 == nil || *p1 == playerID:
		column = "player1_id"
	case p2 == nil || *p2 == playerID:
		column = "player2_id"
	default:
		return nil
	}

	_, err = r.db.Exec(ctx,
		`UPDATE duels SET `+column+` = $2, updated_at = NOW() WHERE id = $1`,
		duelID, playerID,
	)
	if err != nil {
		return fmt.Errorf("recording seat for duel %d: %w", duelID, err)
	}
	return nil
}

// UpdateSessionRecord upserts the duel's full state snapshot and action
// log as JSON.
func (r *DuelRepository) UpdateSessionRecord(ctx context.Context, duelID int64, snap state.Snapshot) error {
	gameState, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding duel %d snapshot: %w", duelID, err)
	}
	actionLog, err := json.Marshal(snap.ActionHistory)
	if err != nil {
		return fmt.Errorf("encoding duel %d action log: %w", duelID, err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO duels (id, status, game_state, action_history, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET status = EXCLUDED.status,
		     game_state = EXCLUDED.game_state,
		     action_history = EXCLUDED.action_history,
		     updated_at = NOW()`,
		duelID, string(snap.Status), gameState, actionLog,
	)
	if err != nil {
		return fmt.Errorf("updating duel %d: %w", duelID, err)
	}
	return nil
}

// CompleteSessionRecord marks the duel completed with its winner.
//
// Postcondition: Returns ErrDuelNotFound if the duel row does not exist.
func (r *DuelRepository) CompleteSessionRecord(ctx context.Context, duelID, winnerID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE duels
		 SET status = $2, winner_id = $3, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1`,
		duelID, string(state.StatusCompleted), winnerID,
	)
	if err != nil {
		return fmt.Errorf("completing duel %d: %w", duelID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuelNotFound
	}
	return nil
}

// AbandonSessionRecord marks the duel administratively abandoned.
//
// Postcondition: Returns ErrDuelNotFound if the duel row does not exist.
func (r *DuelRepository) AbandonSessionRecord(ctx context.Context, duelID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE duels SET status = $2, updated_at = NOW() WHERE id = $1`,
		duelID, string(state.StatusAbandoned),
	)
	if err != nil {
		return fmt.Errorf("abandoning duel %d: %w", duelID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuelNotFound
	}
	return nil
}

// Get returns the persisted record for a duel.
//
// Postcondition: Returns ErrDuelNotFound if no row exists.
func (r *DuelRepository) Get(ctx context.Context, duelID int64) (DuelRecord, error) {
	var rec DuelRecord
	err := r.db.QueryRow(ctx,
		`SELECT id, status, player1_id, player2_id, winner_id,
		        game_state, action_history, created_at, updated_at, completed_at
		 FROM duels WHERE id = $1`,
		duelID,
	).Scan(
		&rec.ID, &rec.Status, &rec.Player1ID, &rec.Player2ID, &rec.WinnerID,
		&rec.GameState, &rec.ActionLog, &rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DuelRecord{}, ErrDuelNotFound
		}
		return DuelRecord{}, fmt.Errorf("reading duel %d: %w", duelID, err)
	}
	return rec, nil
}
