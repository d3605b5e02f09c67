// Package session ties a history window to the variant it is scored with.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/xsteal/internal/domain/estimator"
	"github.com/okian/xsteal/internal/domain/history"
	"github.com/okian/xsteal/internal/domain/model"
	"github.com/okian/xsteal/internal/domain/scoring"
)

// Session owns exactly one history buffer.
type Session struct {
	id        string
	createdAt time.Time
	history   *history.Buffer

	mu      sync.RWMutex
	variant string
}

// New creates a session. An empty id gets a random one; capacity <= 0
// keeps the history default.
func New(id, variant string, capacity int) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		id:        id,
		createdAt: time.Now(),
		history:   history.New(history.WithCapacity(capacity)),
		variant:   variant,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// History returns the session's buffer.
func (s *Session) History() *history.Buffer { return s.history }

// Variant returns the variant name attempts are scored with. Empty means the
// scorer's default.
func (s *Session) Variant() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.variant
}

// SetVariant switches the variant for later attempts. Recorded attempts keep
// the variant they were scored with.
func (s *Session) SetVariant(name string) {
	s.mu.Lock()
	s.variant = name
	s.mu.Unlock()
}

// Evaluation is the result of one Evaluate call.
type Evaluation struct {
	Attempt   model.Attempt
	Breakdown estimator.Breakdown
	Evicted   bool // the oldest attempt was dropped to make room
}

// Evaluate scores an attempt with the session's variant and records it.
// An empty attemptID gets a random one. Nothing is recorded on error.
func (s *Session) Evaluate(ctx context.Context, scorer scoring.Scorer, attemptID string, metrics estimator.Metrics, wasSuccessful bool, now time.Time) (Evaluation, error) {
	res, err := scorer.Score(ctx, scoring.Input{
		Variant:       s.Variant(),
		Metrics:       metrics,
		WasSuccessful: wasSuccessful,
	})
	if err != nil {
		return Evaluation{}, err
	}

	if attemptID == "" {
		attemptID = uuid.NewString()
	}
	a := model.NewAttempt(attemptID, res.Variant, metrics, res.Probability, res.Tokens, wasSuccessful, now)
	evicted := s.history.Record(a)

	return Evaluation{Attempt: a, Breakdown: res.Breakdown, Evicted: evicted}, nil
}
