package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/duelhall/duelhall/internal/game/state"
)

func TestAcquire_AutoCreate(t *testing.T) {
	r := NewRegistry(true, 0, zap.NewNop())

	sess, created, err := r.Acquire(42)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(42), sess.ID())
	assert.Equal(t, 1, r.Len())

	again, created, err := r.Acquire(42)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, sess, again)
	assert.Equal(t, 1, r.Len())
}

func TestAcquire_NoAutoCreate(t *testing.T) {
	r := NewRegistry(false, 0, zap.NewNop())

	_, _, err := r.Acquire(42)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, r.Len())
}

func TestAcquire_ConcurrentSameID(t *testing.T) {
	r := NewRegistry(true, 0, zap.NewNop())

	const n = 16
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, _, err := r.Acquire(7)
			require.NoError(t, err)
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len())
	for i := 1; i < n; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestSessionDo_SerialisesMutation(t *testing.T) {
	r := NewRegistry(true, 0, zap.NewNop())
	sess, _, err := r.Acquire(1)
	require.NoError(t, err)

	// Concurrent seatings: exactly two must win, one must see full.
	ids := []int64{10, 20, 30}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			errs[i] = sess.Do(func(d *state.Duel) error {
				return d.AddPlayer(id, "p")
			})
		}(i, id)
	}
	wg.Wait()

	full := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, state.ErrSessionFull)
			full++
		}
	}
	assert.Equal(t, 1, full)

	snap := sess.Snapshot()
	assert.Equal(t, state.StatusActive, snap.Status)
	assert.Len(t, snap.Players, 2)
}

func TestRemove(t *testing.T) {
	r := NewRegistry(true, 0, zap.NewNop())
	_, _, err := r.Acquire(1)
	require.NoError(t, err)

	r.Remove(1)
	assert.Zero(t, r.Len())
	r.Remove(1) // no-op
}

func TestSweepIdle(t *testing.T) {
	r := NewRegistry(true, 0, zap.NewNop())

	idle, _, err := r.Acquire(1)
	require.NoError(t, err)
	require.NoError(t, idle.Do(func(d *state.Duel) error {
		return d.AddPlayer(1, "Alice")
	}))

	done, _, err := r.Acquire(2)
	require.NoError(t, err)
	require.NoError(t, done.Do(func(d *state.Duel) error {
		if err := d.AddPlayer(1, "Alice"); err != nil {
			return err
		}
		if err := d.AddPlayer(2, "Bob"); err != nil {
			return err
		}
		return d.Complete(1)
	}))

	fresh, _, err := r.Acquire(3)
	require.NoError(t, err)

	// Backdate the first two sessions.
	for _, sess := range []*Session{idle, done} {
		require.NoError(t, sess.Do(func(d *state.Duel) error {
			d.UpdatedAt = time.Now().Add(-time.Hour)
			return nil
		}))
	}

	abandoned := r.SweepIdle(30 * time.Minute)

	// Only the live idle session is reported; the completed one is
	// evicted silently and the fresh one untouched.
	require.Len(t, abandoned, 1)
	assert.Equal(t, int64(1), abandoned[0].ID())
	assert.Equal(t, state.StatusAbandoned, abandoned[0].Snapshot().Status)
	assert.Equal(t, state.StatusCompleted, done.Snapshot().Status)

	assert.Equal(t, 1, r.Len())
	_, ok := r.Get(3)
	assert.True(t, ok)
	_ = fresh
}

func TestSweeper_StartStop(t *testing.T) {
	r := NewRegistry(true, 0, zap.NewNop())
	sess, _, err := r.Acquire(9)
	require.NoError(t, err)
	require.NoError(t, sess.Do(func(d *state.Duel) error {
		d.UpdatedAt = time.Now().Add(-time.Hour)
		return nil
	}))

	notified := make(chan int64, 1)
	sw := NewSweeper(r, 10*time.Millisecond, time.Minute, func(s *Session, snap state.Snapshot) {
		select {
		case notified <- s.ID():
		default:
		}
	}, zap.NewNop())

	go func() { _ = sw.Start() }()

	select {
	case id := <-notified:
		assert.Equal(t, int64(9), id)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not abandon the idle session")
	}
	sw.Stop()
	assert.Zero(t, r.Len())
}
