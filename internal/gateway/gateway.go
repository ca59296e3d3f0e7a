// Package gateway is the websocket front end of the duel server. It
// binds each transport connection to a session, decodes inbound action
// messages, applies them to the duel state machine, and publishes the
// results to the room.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duelhall/duelhall/internal/catalog"
	"github.com/duelhall/duelhall/internal/config"
	"github.com/duelhall/duelhall/internal/game/registry"
	"github.com/duelhall/duelhall/internal/game/state"
	"github.com/duelhall/duelhall/internal/hub"
	"github.com/duelhall/duelhall/internal/identity"
)

// persistTimeout bounds each fire-and-forget persistence call.
const persistTimeout = 5 * time.Second

// DuelStore persists duel session snapshots. The in-memory state is the
// source of truth during play; store failures are logged and never
// surfaced to clients.
type DuelStore interface {
	CreateSessionRecord(ctx context.Context, duelID int64) error
	JoinSessionRecord(ctx context.Context, duelID, playerID int64) error
	UpdateSessionRecord(ctx context.Context, duelID int64, snap state.Snapshot) error
	CompleteSessionRecord(ctx context.Context, duelID, winnerID int64) error
	AbandonSessionRecord(ctx context.Context, duelID int64) error
}

// HealthChecker reports backing-store reachability for the health
// endpoint.
type HealthChecker interface {
	Health(ctx context.Context, timeout time.Duration) error
}

// Gateway wires transport connections to the registry and hub.
type Gateway struct {
	registry *registry.Registry
	hub      *hub.Hub
	catalog  catalog.Catalog
	identity identity.Provider
	store    DuelStore
	health   HealthChecker
	cfg      config.ServerConfig
	logger   *zap.Logger
}

// NewGateway creates a Gateway with the given dependencies.
//
// Precondition: reg, h, cat, idp, and logger must be non-nil.
// store may be nil (sessions are not persisted); health may be nil (the
// health endpoint reports only liveness).
func NewGateway(
	reg *registry.Registry,
	h *hub.Hub,
	cat catalog.Catalog,
	idp identity.Provider,
	store DuelStore,
	health HealthChecker,
	cfg config.ServerConfig,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		registry: reg,
		hub:      h,
		catalog:  cat,
		identity: idp,
		store:    store,
		health:   health,
		cfg:      cfg,
		logger:   logger,
	}
}

// wsConn adapts a websocket connection to the hub.Conn interface.
type wsConn struct {
	id   string
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{id: uuid.NewString(), conn: conn}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(ctx context.Context, v any) error {
	return wsjson.Write(ctx, c.conn, v)
}

// parseDuelID parses a duel id path segment.
func parseDuelID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("duel id must be a positive integer")
	}
	return id, nil
}

// attachSession registers conn in the duel's room and, for an
// authenticated principal, seats them in the duel, falling back to
// spectating when both seats are taken. The occupancy notification and
// the post-join snapshot are published inside the session lock so room
// members observe them in operation order relative to dispatched
// actions.
//
// Postcondition: Returns whether the principal holds a seat and whether
// this call claimed it.
func (g *Gateway) attachSession(ctx context.Context, sess *registry.Session, conn hub.Conn, pr identity.Principal) (seated, joined bool) {
	_ = sess.Do(func(d *state.Duel) error {
		if pr.PlayerID != 0 {
			err := d.AddPlayer(pr.PlayerID, pr.Name)
			switch {
			case err == nil:
				seated = true
				joined = true
			case errors.Is(err, state.ErrDuplicatePlayer):
				// Reconnecting player keeps their seat.
				seated = true
			case errors.Is(err, state.ErrSessionFull):
				d.AddSpectator(pr.PlayerID)
			}
		}
		g.hub.Connect(ctx, sess.ID(), conn, &hub.Identity{
			PlayerID:  pr.PlayerID,
			Spectator: !seated,
		})
		g.hub.Broadcast(ctx, sess.ID(), newGameUpdate(d.Snapshot()))
		return nil
	})
	return seated, joined
}

// dispatch decodes and applies one inbound message on behalf of conn.
// State-machine rejections become unicast error replies; they never
// abort the connection or the room.
func (g *Gateway) dispatch(ctx context.Context, sess *registry.Session, conn hub.Conn, pr identity.Principal, raw json.RawMessage) {
	if _, ok := g.registry.Get(sess.ID()); !ok {
		g.sendError(ctx, conn, "game not found")
		return
	}

	action, err := decodeAction(raw)
	if err != nil {
		g.sendError(ctx, conn, err.Error())
		return
	}

	if pr.PlayerID == 0 {
		g.sendError(ctx, conn, "authentication required")
		return
	}

	var (
		snap      state.Snapshot
		completed bool
		winnerID  int64
	)
	err = sess.Do(func(d *state.Duel) error {
		switch a := action.Payload.(type) {
		case PlayCardAction:
			if _, err := g.catalog.Lookup(a.CardID); err != nil {
				return err
			}
			payload, _ := json.Marshal(a)
			if _, err := d.RecordAction(action.Kind, pr.PlayerID, payload); err != nil {
				return err
			}

		case AttackAction:
			payload, _ := json.Marshal(a)
			if _, err := d.RecordAction(action.Kind, pr.PlayerID, payload); err != nil {
				return err
			}

		case AdvancePhaseAction:
			if _, err := d.RecordAction(action.Kind, pr.PlayerID, nil); err != nil {
				return err
			}
			if err := d.AdvancePhase(); err != nil {
				return err
			}

		case ConcedeAction:
			if _, err := d.RecordAction(action.Kind, pr.PlayerID, nil); err != nil {
				return err
			}
			winnerID = opponentOf(d, pr.PlayerID)
			if err := d.Complete(winnerID); err != nil {
				return err
			}
			completed = true

		default:
			// Unknown kind: accepted, no state change.
			g.logger.Debug("unrecognised action kind",
				zap.Int64("duel_id", sess.ID()),
				zap.String("action", action.Kind),
			)
		}

		snap = d.Snapshot()
		g.hub.Broadcast(ctx, sess.ID(), newGameUpdate(snap))
		return nil
	})
	if err != nil {
		g.sendError(ctx, conn, err.Error())
		return
	}

	g.persistSnapshot(sess.ID(), snap)
	if completed {
		g.persistAsync("complete", sess.ID(), func(ctx context.Context) error {
			return g.store.CompleteSessionRecord(ctx, sess.ID(), winnerID)
		})
	}
}

func opponentOf(d *state.Duel, playerID int64) int64 {
	for _, id := range d.SeatOrder() {
		if id != playerID {
			return id
		}
	}
	return playerID
}

func (g *Gateway) sendError(ctx context.Context, conn hub.Conn, msg string) {
	if err := g.hub.SendTo(ctx, conn, ErrorMessage{Error: msg}); err != nil {
		g.logger.Warn("error reply delivery failed",
			zap.String("conn_id", conn.ID()),
			zap.Error(err),
		)
	}
}

// NotifyAbandoned publishes a sweeper- or admin-driven abandonment to
// the room and records it.
func (g *Gateway) NotifyAbandoned(sess *registry.Session, snap state.Snapshot) {
	ctx := context.Background()
	g.hub.Broadcast(ctx, sess.ID(), newGameUpdate(snap))
	g.hub.Broadcast(ctx, sess.ID(), PlayerDisconnect{
		Type:    "player_disconnect",
		Message: "Duel abandoned",
	})
	g.persistAsync("abandon", sess.ID(), func(ctx context.Context) error {
		return g.store.AbandonSessionRecord(ctx, sess.ID())
	})
}

// persistSnapshot fires an UpdateSessionRecord for the snapshot.
func (g *Gateway) persistSnapshot(duelID int64, snap state.Snapshot) {
	g.persistAsync("update", duelID, func(ctx context.Context) error {
		return g.store.UpdateSessionRecord(ctx, duelID, snap)
	})
}

// persistAsync runs one fire-and-forget store call with a bounded
// timeout, logging failures.
func (g *Gateway) persistAsync(op string, duelID int64, fn func(ctx context.Context) error) {
	if g.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			g.logger.Warn("duel persistence failed",
				zap.String("op", op),
				zap.Int64("duel_id", duelID),
				zap.Error(err),
			)
		}
	}()
}
