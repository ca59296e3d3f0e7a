// Package hub tracks the live transport connections of every duel room
// and delivers messages to them. It is decoupled from game semantics:
// it knows nothing about phases, turns, or card zones.
package hub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Conn is one live transport channel. Implementations must be safe for
// a single writer at a time; the hub serialises writes per connection.
type Conn interface {
	// ID uniquely identifies the connection for logging and membership.
	ID() string
	// Send encodes v and writes it to the transport, honouring ctx.
	Send(ctx context.Context, v any) error
}

// Identity describes who a connection speaks for, once known.
type Identity struct {
	PlayerID  int64
	Spectator bool
}

// ConnectionUpdate is the room-occupancy notification sent to every
// member when the room's membership changes.
type ConnectionUpdate struct {
	Type             string `json:"type"`
	ConnectedPlayers int    `json:"connected_players"`
}

type member struct {
	conn     Conn
	duelID   int64
	identity *Identity

	// wmu serialises writes to the connection so frames from
	// overlapping broadcasts never interleave.
	wmu sync.Mutex
}

// Hub is the process-wide connection manager.
// All methods are safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[int64]map[Conn]*member
	conns map[Conn]*member

	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewHub creates an empty Hub.
//
// Precondition: logger must be non-nil. writeTimeout bounds each
// delivery attempt; 0 disables the bound.
func NewHub(writeTimeout time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:        make(map[int64]map[Conn]*member),
		conns:        make(map[Conn]*member),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Connect registers conn in the duel's room, creating the room if
// absent, and notifies every member (the new one included) of the new
// occupancy count. ident may be nil for unauthenticated connections.
func (h *Hub) Connect(ctx context.Context, duelID int64, conn Conn, ident *Identity) {
	h.mu.Lock()
	m := &member{conn: conn, duelID: duelID, identity: ident}
	if h.rooms[duelID] == nil {
		h.rooms[duelID] = make(map[Conn]*member)
	}
	h.rooms[duelID][conn] = m
	h.conns[conn] = m
	count := len(h.rooms[duelID])
	h.mu.Unlock()

	h.logger.Info("connection joined room",
		zap.Int64("duel_id", duelID),
		zap.String("conn_id", conn.ID()),
		zap.Int("connections", count),
	)

	h.Broadcast(ctx, duelID, ConnectionUpdate{
		Type:             "connection_update",
		ConnectedPlayers: count,
	})
}

// Disconnect removes conn from the duel's room, dropping the room entry
// when it empties. The duel's game state is unaffected. Safe to call
// for a connection that is not present.
//
// Postcondition: Returns true iff the connection was a member.
func (h *Hub) Disconnect(duelID int64, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[duelID]
	if !ok {
		return false
	}
	if _, ok := room[conn]; !ok {
		return false
	}
	delete(room, conn)
	delete(h.conns, conn)
	if len(room) == 0 {
		delete(h.rooms, duelID)
	}

	h.logger.Info("connection left room",
		zap.Int64("duel_id", duelID),
		zap.String("conn_id", conn.ID()),
		zap.Int("connections", len(room)),
	)
	return true
}

// Identity returns the identity bound to conn, if any.
func (h *Hub) Identity(conn Conn) (*Identity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.conns[conn]
	if !ok || m.identity == nil {
		return nil, false
	}
	return m.identity, true
}

// Count returns the number of live connections in the duel's room.
func (h *Hub) Count(duelID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[duelID])
}

// Broadcast delivers v to every member of the duel's room. Delivery is
// best-effort and fans out concurrently; a member whose send fails is
// removed from the room before Broadcast returns, and its failure is
// never surfaced to the caller or the other members.
func (h *Hub) Broadcast(ctx context.Context, duelID int64, v any) {
	h.broadcast(ctx, duelID, v, nil)
}

// BroadcastExcept is Broadcast minus one connection, for notices the
// excluded connection already has the result of.
func (h *Hub) BroadcastExcept(ctx context.Context, duelID int64, v any, except Conn) {
	h.broadcast(ctx, duelID, v, except)
}

func (h *Hub) broadcast(ctx context.Context, duelID int64, v any, except Conn) {
	h.mu.RLock()
	targets := make([]*member, 0, len(h.rooms[duelID]))
	for conn, m := range h.rooms[duelID] {
		if conn == except {
			continue
		}
		targets = append(targets, m)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	var (
		fmu    sync.Mutex
		failed []*member
		wg     sync.WaitGroup
	)
	for _, m := range targets {
		wg.Add(1)
		go func(m *member) {
			defer wg.Done()
			if err := h.send(ctx, m, v); err != nil {
				h.logger.Warn("broadcast delivery failed",
					zap.Int64("duel_id", duelID),
					zap.String("conn_id", m.conn.ID()),
					zap.Error(err),
				)
				fmu.Lock()
				failed = append(failed, m)
				fmu.Unlock()
			}
		}(m)
	}
	wg.Wait()

	for _, m := range failed {
		h.Disconnect(duelID, m.conn)
	}
}

// SendTo delivers v to a single connection, propagating any transport
// failure to the caller.
func (h *Hub) SendTo(ctx context.Context, conn Conn, v any) error {
	h.mu.RLock()
	m, ok := h.conns[conn]
	h.mu.RUnlock()
	if !ok {
		// Not a member; write directly with the same deadline policy.
		m = &member{conn: conn}
	}
	return h.send(ctx, m, v)
}

func (h *Hub) send(ctx context.Context, m *member, v any) error {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	if h.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.writeTimeout)
		defer cancel()
	}
	return m.conn.Send(ctx, v)
}
