// Package registry tracks every duel session in the process and owns the
// per-session mutual-exclusion discipline. Each session carries its own
// lock, so gameplay on one duel never serialises behind another.
package registry

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duelhall/duelhall/internal/game/state"
)

// ErrSessionNotFound is returned by Acquire when the session does not
// exist and auto-creation is disabled.
var ErrSessionNotFound = errors.New("session not found")

// Session pairs one duel with the lock that serialises its operations.
type Session struct {
	id   int64
	mu   sync.Mutex
	duel *state.Duel
}

// ID returns the session id.
func (s *Session) ID() int64 { return s.id }

// Do runs fn with exclusive access to the session's duel. All state
// reads and mutations must happen inside fn; callers that broadcast the
// result of a mutation should issue the broadcast inside fn as well so
// room messages leave in operation order.
//
// Precondition: fn must not call Do on the same session (the lock is not
// reentrant).
func (s *Session) Do(fn func(*state.Duel) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.duel)
}

// Snapshot returns a consistent copy of the duel state.
func (s *Session) Snapshot() state.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duel.Snapshot()
}

// Registry is the process-wide map from session id to session.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	autoCreate   bool
	startingLife int
	logger       *zap.Logger
}

// NewRegistry creates an empty Registry.
//
// Precondition: logger must be non-nil.
// autoCreate controls whether Acquire lazily creates unknown sessions;
// startingLife of 0 selects the default life total.
func NewRegistry(autoCreate bool, startingLife int, logger *zap.Logger) *Registry {
	return &Registry{
		sessions:     make(map[int64]*Session),
		autoCreate:   autoCreate,
		startingLife: startingLife,
		logger:       logger,
	}
}

// Acquire returns the session for id, creating a fresh Waiting session
// when the id is unknown and auto-creation is enabled.
//
// Postcondition: Returns ErrSessionNotFound iff the id is unknown and
// auto-creation is disabled.
func (r *Registry) Acquire(id int64) (*Session, bool, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return sess, false, nil
	}

	if !r.autoCreate {
		return nil, false, ErrSessionNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check: another connection may have created it meanwhile.
	if sess, ok := r.sessions[id]; ok {
		return sess, false, nil
	}
	sess = &Session{id: id, duel: state.NewDuel(id, r.startingLife)}
	r.sessions[id] = sess
	r.logger.Info("session created", zap.Int64("duel_id", id))
	return sess, true, nil
}

// Get returns the session for id without creating it.
func (r *Registry) Get(id int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Remove drops the session from the registry. The session's game state
// remains usable by holders of the handle but is no longer reachable by
// id. A no-op if absent.
func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SweepIdle abandons and evicts every session whose last update is older
// than idleFor. Sessions already terminal are evicted without a status
// change. Returns the abandoned sessions so callers can notify rooms.
//
// Precondition: idleFor must be > 0.
func (r *Registry) SweepIdle(idleFor time.Duration) []*Session {
	cutoff := time.Now().Add(-idleFor)

	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		candidates = append(candidates, sess)
	}
	r.mu.RUnlock()

	var abandoned []*Session
	for _, sess := range candidates {
		evict := false
		wasLive := false
		_ = sess.Do(func(d *state.Duel) error {
			if d.UpdatedAt.After(cutoff) {
				return nil
			}
			evict = true
			switch d.Status {
			case state.StatusWaiting, state.StatusActive:
				d.Abandon()
				wasLive = true
			}
			return nil
		})
		if !evict {
			continue
		}
		r.Remove(sess.id)
		if wasLive {
			abandoned = append(abandoned, sess)
			r.logger.Info("idle session abandoned", zap.Int64("duel_id", sess.id))
		} else {
			r.logger.Debug("idle session evicted", zap.Int64("duel_id", sess.id))
		}
	}
	return abandoned
}
