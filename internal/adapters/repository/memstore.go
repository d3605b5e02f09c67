package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/xsteal/internal/domain/session"
	"github.com/okian/xsteal/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// MemoryStore is a mutex-guarded map of sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	maxSessions           int
	metricsUpdateInterval time.Duration
}

// NewMemoryStore creates an empty store. The gauge updater stops when ctx
// is done.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:              make(map[string]*session.Session),
		maxSessions:           DefaultMaxSessions,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	metrics.UpdateSessionsActive(0)
	s.startMetricsUpdater(ctx)

	return s
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, sess *session.Session) error {
	start := time.Now()
	defer observe("create", start)

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.sessions[sess.ID()]; ok {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "already_exists")
		return fmt.Errorf("%w: %s", ErrAlreadyExists, sess.ID())
	}
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "capacity_exceeded")
		return fmt.Errorf("%w: limit %d", ErrCapacityExceeded, s.maxSessions)
	}
	s.sessions[sess.ID()] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.UpdateSessionsActive(n)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*session.Session, error) {
	start := time.Now()
	defer observe("get", start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	defer observe("delete", start)

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.UpdateSessionsActive(n)
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// startMetricsUpdater refreshes the active sessions gauge until ctx is done.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateSessionsActive(s.Count(ctx))
			}
		}
	}()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
