package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dispatchline/internal/domain"
)

// Store is the registry of active call sessions. A registry-level mutex
// guards the map; each entry carries its own mutex so overlapping webhook
// events for the same call identifier are serialized without blocking
// unrelated calls.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	maxTurns int
	idleTTL  time.Duration
	logger   *slog.Logger
}

type entry struct {
	mu   sync.Mutex
	sess *CallSession

	// lastTouch is guarded by Store.mu, not entry.mu, so the sweep can test
	// idleness without waiting on an in-flight turn's entry lock.
	lastTouch time.Time
}

// Config holds store tunables.
type Config struct {
	// MaxTurns caps session history length (opening turn included).
	MaxTurns int
	// IdleTTL is how long an untouched session survives before the reaper
	// evicts it. Telephony providers do not guarantee a termination
	// callback on every path, so eviction is the backstop.
	IdleTTL time.Duration
}

// NewStore creates an empty session store.
func NewStore(cfg Config, logger *slog.Logger) *Store {
	return &Store{
		entries:  make(map[string]*entry),
		maxTurns: cfg.MaxTurns,
		idleTTL:  cfg.IdleTTL,
		logger:   logger,
	}
}

// Update runs fn against the session for callSID under its per-key lock,
// creating the session if it does not exist. The bool reports whether the
// session was created by this call.
func (st *Store) Update(callSID string, fn func(s *CallSession)) bool {
	st.mu.Lock()
	e, ok := st.entries[callSID]
	if !ok {
		e = &entry{
			sess: &CallSession{
				CallSID:   callSID,
				Phase:     PhaseNew,
				StartedAt: time.Now(),
				maxTurns:  st.maxTurns,
			},
		}
		st.entries[callSID] = e
	}
	e.lastTouch = time.Now()
	st.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess)
	return !ok
}

// View runs fn against an existing session under its per-key lock.
// Returns domain.ErrNotFound when no session exists for callSID.
//
// Reads do not refresh the idle clock: a polling inspector must not keep a
// dead call alive. Only Update counts as activity.
func (st *Store) View(callSID string, fn func(s *CallSession)) error {
	st.mu.Lock()
	e, ok := st.entries[callSID]
	st.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess)
	return nil
}

// Delete removes the session for callSID and returns a final snapshot of it,
// or nil if none existed.
func (st *Store) Delete(callSID string) *CallSession {
	st.mu.Lock()
	e, ok := st.entries[callSID]
	if ok {
		delete(st.entries, callSID)
	}
	st.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	final := e.sess.Snapshot()
	return &final
}

// Snapshot returns a copy of one session for read-only inspection.
func (st *Store) Snapshot(callSID string) (CallSession, bool) {
	var cp CallSession
	err := st.View(callSID, func(s *CallSession) {
		cp = s.Snapshot()
	})
	return cp, err == nil
}

// List returns copies of all active sessions.
func (st *Store) List() []CallSession {
	st.mu.Lock()
	ids := make([]string, 0, len(st.entries))
	for id := range st.entries {
		ids = append(ids, id)
	}
	st.mu.Unlock()

	out := make([]CallSession, 0, len(ids))
	for _, id := range ids {
		if cp, ok := st.Snapshot(id); ok {
			out = append(out, cp)
		}
	}
	return out
}

// Len returns the number of active sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}

// Sweep evicts sessions untouched for longer than the idle TTL and returns
// their final snapshots so the caller can archive them.
//
// Idleness is decided under the registry lock alone. Taking an entry lock in
// here would park the whole registry behind whichever call happens to be
// mid-turn, stalling every unrelated call's webhook for the duration.
func (st *Store) Sweep(now time.Time) []CallSession {
	if st.idleTTL <= 0 {
		return nil
	}

	st.mu.Lock()
	var stale []*entry
	for id, e := range st.entries {
		if now.Sub(e.lastTouch) > st.idleTTL {
			delete(st.entries, id)
			stale = append(stale, e)
		}
	}
	st.mu.Unlock()

	evicted := make([]CallSession, 0, len(stale))
	for _, e := range stale {
		e.mu.Lock()
		evicted = append(evicted, e.sess.Snapshot())
		e.mu.Unlock()
	}
	return evicted
}

// StartReaper runs the idle sweep on interval until ctx is canceled.
// onSweep, if non-nil, runs after every sweep with the evicted sessions,
// which may be empty. Housekeeping hung off the reaper cadence (audio
// garbage collection) must run whether or not anything was evicted.
func (st *Store) StartReaper(ctx context.Context, interval time.Duration, onSweep func(evicted []CallSession)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				evicted := st.Sweep(now)
				for _, s := range evicted {
					st.logger.Warn("session evicted after idle timeout",
						"call_sid", s.CallSID,
						"turns", len(s.History),
					)
				}
				if onSweep != nil {
					onSweep(evicted)
				}
			}
		}
	}()
}
