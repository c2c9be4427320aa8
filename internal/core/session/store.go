// Package session holds per-tab terminal state in memory for the lifetime
// of the server process.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrTooManySessions = errors.New("too many active sessions")
	ErrSessionNotFound = errors.New("session not found")
)

// Options configures a Store.
type Options struct {
	MaxHistory  int
	MaxSessions int // 0 means unlimited
	HomeDir     string
	Logger      *zap.Logger
}

type entry struct {
	mu      sync.Mutex
	session Session
	// removed is set under mu once the entry left the table.
	removed bool
}

// Store is the in-memory session table. Each session has its own lock, so
// sessions never contend with each other.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*entry
	maxHistory  int
	maxSessions int
	homeDir     string
	logger      *zap.Logger
}

// NewStore creates a session store.
func NewStore(opts Options) *Store {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.HomeDir = home
		} else {
			opts.HomeDir = string(os.PathSeparator)
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		sessions:    make(map[string]*entry),
		maxHistory:  opts.MaxHistory,
		maxSessions: opts.MaxSessions,
		homeDir:     opts.HomeDir,
		logger:      opts.Logger,
	}
}

// MaxHistory returns the history bound N.
func (s *Store) MaxHistory() int {
	return s.maxHistory
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Get returns a copy of the session, creating it with defaults if absent.
func (s *Store) Get(id string) (Session, error) {
	e, err := s.lock(id)
	if err != nil {
		return Session{}, err
	}
	defer e.mu.Unlock()
	e.session.LastActive = time.Now()
	return e.session.clone(), nil
}

// Snapshot returns the history view of an existing session without
// creating it or touching its activity time.
func (s *Store) Snapshot(id string) (Snapshot, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		CommandHistory: append([]string{}, e.session.CommandHistory...),
		OutputHistory:  append([]string{}, e.session.OutputHistory...),
		MaxHistory:     s.maxHistory,
		CurrentPath:    e.session.CurrentPath,
	}, nil
}

// AppendHistory records a command and its output, keeping the last N pairs.
// A removed session is not resurrected.
func (s *Store) AppendHistory(id, command, output string) error {
	return s.updateExisting(id, func(sess *Session) {
		sess.CommandHistory = append(sess.CommandHistory, command)
		sess.OutputHistory = append(sess.OutputHistory, Truncate(output, MaxStoredOutput))
		if over := len(sess.CommandHistory) - s.maxHistory; over > 0 {
			sess.CommandHistory = append([]string(nil), sess.CommandHistory[over:]...)
			sess.OutputHistory = append([]string(nil), sess.OutputHistory[over:]...)
		}
	})
}

// SetPath updates the session's working directory.
func (s *Store) SetPath(id, path string) error {
	return s.updateExisting(id, func(sess *Session) {
		sess.CurrentPath = path
	})
}

// TrySetActiveProcess claims the session's single process slot. It returns
// false without waiting if the slot is taken.
func (s *Store) TrySetActiveProcess(id string, proc ActiveProcess) (bool, error) {
	acquired := false
	err := s.update(id, func(sess *Session) {
		if sess.ActiveProcess != nil {
			return
		}
		sess.ActiveProcess = &proc
		acquired = true
	})
	return acquired, err
}

// ClearActiveProcess releases the slot if it is held by processID.
func (s *Store) ClearActiveProcess(id, processID string) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.ActiveProcess != nil && e.session.ActiveProcess.ID == processID {
		e.session.ActiveProcess = nil
	}
}

// Remove deletes a session, e.g. when its tab is closed.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
		delete(s.sessions, id)
		s.logger.Debug("Session removed", zap.String("session", id))
	}
}

// EvictIdle removes sessions that have no running process and were not
// used for longer than maxIdle. It returns the removed ids.
func (s *Store) EvictIdle(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, e := range s.sessions {
		e.mu.Lock()
		if e.session.ActiveProcess == nil && e.session.LastActive.Before(cutoff) {
			e.removed = true
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
		e.mu.Unlock()
	}
	if len(evicted) > 0 {
		s.logger.Info("Evicted idle sessions",
			zap.Int("count", len(evicted)),
			zap.Duration("max_idle", maxIdle))
	}
	return evicted
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(maxIdle)
		}
	}
}

// lock returns the live entry for id with its mutex held, creating the
// entry if needed. An entry evicted while we waited for it is replaced.
func (s *Store) lock(id string) (*entry, error) {
	for {
		e, err := s.entry(id)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		if !e.removed {
			return e, nil
		}
		e.mu.Unlock()
	}
}

func (s *Store) update(id string, fn func(*Session)) error {
	e, err := s.lock(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	fn(&e.session)
	e.session.LastActive = time.Now()
	return nil
}

func (s *Store) updateExisting(id string, fn func(*Session)) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.session)
	e.session.LastActive = time.Now()
	return nil
}

func (s *Store) entry(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[id]; ok {
		return e, nil
	}
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		return nil, fmt.Errorf("%w (limit %d)", ErrTooManySessions, s.maxSessions)
	}

	now := time.Now()
	e = &entry{session: Session{
		ID:             id,
		CurrentPath:    s.homeDir,
		CommandHistory: []string{},
		OutputHistory:  []string{},
		CreatedAt:      now,
		LastActive:     now,
	}}
	s.sessions[id] = e
	s.logger.Debug("Session created", zap.String("session", id), zap.String("path", s.homeDir))
	return e, nil
}
