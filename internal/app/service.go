// Package service wires the estimator, sessions and dedupe into the
// operations served over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/xsteal/internal/adapters/repository"
	"github.com/okian/xsteal/internal/domain/dedupe"
	"github.com/okian/xsteal/internal/domain/estimator"
	"github.com/okian/xsteal/internal/domain/model"
	"github.com/okian/xsteal/internal/domain/scoring"
	"github.com/okian/xsteal/internal/domain/session"
	"github.com/okian/xsteal/internal/domain/types"
	"github.com/okian/xsteal/pkg/logger"
	"github.com/okian/xsteal/pkg/metrics"
)

// Service implements the API dependencies.
type Service struct {
	mu sync.RWMutex

	sessions repository.Store
	deduper  dedupe.Deduper
	scorer   *scoring.InMemoryScorer

	historyCapacity int
	maxSessions     int
	dedupeSize      int

	sessionGaugeInterval time.Duration

	defaultVariant  string
	extraVariants   []estimator.Variant
	now             func() time.Time

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Components are created by Start.
func New(opts ...Option) *Service {
	s := &Service{
		historyCapacity: 10,
		maxSessions:     repository.DefaultMaxSessions,
		dedupeSize:      dedupe.DefaultMaxSize,
		defaultVariant:  estimator.Classic,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start creates the store, deduper and scorer. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	scorer := scoring.NewInMemoryScorer(
		scoring.WithVariants(s.extraVariants...),
		scoring.WithDefaultVariant(s.defaultVariant),
	)
	if _, err := scorer.Variant(""); err != nil {
		return fmt.Errorf("default variant: %w", err)
	}

	storeCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.scorer = scorer
	s.sessions = repository.NewMemoryStore(storeCtx,
		repository.WithMaxSessions(s.maxSessions),
		repository.WithMetricsUpdateInterval(s.sessionGaugeInterval),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.started = true
	s.logger.Info(ctx, "xsteal service started",
		logger.String("default_variant", s.defaultVariant),
		logger.Int("history_capacity", s.historyCapacity),
		logger.Int("max_sessions", s.maxSessions),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// Stop releases background resources. Sessions are dropped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.started = false
	s.logger.Info(context.Background(), "xsteal service stopped")
}

// components returns the live components or ErrNotStarted.
func (s *Service) components() (repository.Store, dedupe.Deduper, *scoring.InMemoryScorer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, ErrNotStarted
	}
	return s.sessions, s.deduper, s.scorer, nil
}

// Variants lists the variants the service accepts.
func (s *Service) Variants(_ context.Context) ([]types.Variant, error) {
	_, _, scorer, err := s.components()
	if err != nil {
		return nil, err
	}
	vs := scorer.Variants()
	out := make([]types.Variant, len(vs))
	for i, v := range vs {
		out[i] = types.FromVariant(v, v.Name() == scorer.DefaultVariant())
	}
	return out, nil
}

// Estimate returns the probability and breakdown for metrics.
func (s *Service) Estimate(ctx context.Context, variant string, m estimator.Metrics) (types.Estimate, error) {
	_, _, scorer, err := s.components()
	if err != nil {
		return types.Estimate{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.Estimate{}, err
	}

	start := time.Now()
	v, err := scorer.Variant(variant)
	if err != nil {
		s.recordFailure(err)
		return types.Estimate{}, err
	}
	b, err := estimator.Explain(v, m)
	if err != nil {
		s.recordFailure(err)
		return types.Estimate{}, err
	}
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordEstimate(b.Variant, b.Probability)

	return types.FromBreakdown(b), nil
}

// Score applies the reward rule to a caller-supplied probability.
func (s *Service) Score(_ context.Context, probability float64, wasSuccessful bool) (types.Score, error) {
	if _, _, _, err := s.components(); err != nil {
		return types.Score{}, err
	}
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		metrics.RecordInvalidInput()
		return types.Score{}, fmt.Errorf("%w: probability must be within [0,1]", estimator.ErrInvalidInput)
	}
	return types.Score{
		Probability:   probability,
		WasSuccessful: wasSuccessful,
		Tokens:        scoring.Tokens(probability, wasSuccessful),
	}, nil
}

// CreateSession starts a session scored with variant, or the default when
// variant is empty.
func (s *Service) CreateSession(ctx context.Context, variant string) (types.Session, error) {
	store, _, scorer, err := s.components()
	if err != nil {
		return types.Session{}, err
	}
	v, err := scorer.Variant(variant)
	if err != nil {
		return types.Session{}, err
	}

	sess := session.New("", v.Name(), s.historyCapacity)
	if err := store.Create(ctx, sess); err != nil {
		return types.Session{}, err
	}
	metrics.RecordSessionCreated()
	s.logger.Info(ctx, "session created",
		logger.String("session_id", sess.ID()),
		logger.String("variant", v.Name()),
	)
	return summarize(sess), nil
}

// GetSession returns a session summary.
func (s *Service) GetSession(ctx context.Context, id string) (types.Session, error) {
	store, _, _, err := s.components()
	if err != nil {
		return types.Session{}, err
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		return types.Session{}, err
	}
	return summarize(sess), nil
}

// SetSessionVariant switches the variant of later attempts in a session.
func (s *Service) SetSessionVariant(ctx context.Context, id, variant string) (types.Session, error) {
	store, _, scorer, err := s.components()
	if err != nil {
		return types.Session{}, err
	}
	v, err := scorer.Variant(variant)
	if err != nil {
		return types.Session{}, err
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		return types.Session{}, err
	}
	sess.SetVariant(v.Name())
	s.logger.Debug(ctx, "session variant changed",
		logger.String("session_id", id),
		logger.String("variant", v.Name()),
	)
	return summarize(sess), nil
}

// DeleteSession drops a session and its history.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	store, _, _, err := s.components()
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "session deleted", logger.String("session_id", id))
	return nil
}

// RecordAttempt scores an attempt and appends it to the session history.
// A repeated non-empty attemptID is reported as a duplicate and not
// appended again. While the first request for an attemptID is still being
// evaluated, a repeat fails with dedupe.ErrInFlight.
func (s *Service) RecordAttempt(ctx context.Context, sessionID, attemptID string, m estimator.Metrics, wasSuccessful bool) (types.AttemptResult, error) {
	store, deduper, scorer, err := s.components()
	if err != nil {
		return types.AttemptResult{}, err
	}
	sess, err := store.Get(ctx, sessionID)
	if err != nil {
		return types.AttemptResult{}, err
	}

	key := sessionID + "/" + attemptID
	if attemptID != "" {
		if err := deduper.Claim(ctx, key); err != nil {
			metrics.RecordErrorByComponent("scoring", "attempt_in_flight")
			return types.AttemptResult{}, err
		}
		defer deduper.Release(ctx, key)

		if deduper.SeenAndRecord(ctx, key) {
			metrics.RecordDuplicateAttempt()
			s.logger.Debug(ctx, "duplicate attempt",
				logger.String("session_id", sessionID),
				logger.String("attempt_id", attemptID),
			)
			res := types.AttemptResult{Duplicate: true}
			if prev, ok := findAttempt(sess.History().All(), attemptID); ok {
				res.Attempt = types.FromAttempt(prev)
				res.Estimate = types.Estimate{Variant: prev.Variant, Probability: prev.Probability}
			}
			return res, nil
		}
	}

	start := time.Now()
	ev, err := sess.Evaluate(ctx, scorer, attemptID, m, wasSuccessful, s.now())
	if err != nil {
		if attemptID != "" {
			deduper.Unrecord(ctx, key)
		}
		s.recordFailure(err)
		return types.AttemptResult{}, err
	}
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordEstimate(ev.Attempt.Variant, ev.Attempt.Probability)
	metrics.RecordAttempt(ev.Attempt.Variant, ev.Attempt.Outcome(), ev.Attempt.Tokens)
	if ev.Evicted {
		metrics.RecordHistoryEviction()
	}

	s.logger.Debug(ctx, "attempt recorded",
		logger.String("session_id", sessionID),
		logger.String("attempt_id", ev.Attempt.ID),
		logger.Float64("probability", ev.Attempt.Probability),
		logger.Float64("tokens", ev.Attempt.Tokens),
		logger.Bool("evicted", ev.Evicted),
	)

	return types.AttemptResult{
		Attempt:  types.FromAttempt(ev.Attempt),
		Estimate: types.FromBreakdown(ev.Breakdown),
		Evicted:  ev.Evicted,
	}, nil
}

// History returns a session's attempts, oldest first unless newestFirst.
func (s *Service) History(ctx context.Context, sessionID string, newestFirst bool) ([]types.Attempt, error) {
	store, _, _, err := s.components()
	if err != nil {
		return nil, err
	}
	sess, err := store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if newestFirst {
		return types.FromAttempts(sess.History().Recent()), nil
	}
	return types.FromAttempts(sess.History().All()), nil
}

// counterStats maps GetStats keys to the metric families they report.
var counterStats = map[string]string{
	"attemptsRecorded":  "attempts_total",
	"duplicateAttempts": "attempts_duplicate_total",
	"historyEvictions":  "history_evictions_total",
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"defaultVariant":  s.defaultVariant,
		"historyCapacity": s.historyCapacity,
		"maxSessions":     s.maxSessions,
		"dedupeSize":      s.dedupeSize,
	}

	if s.started {
		ctx := context.Background()
		n := s.sessions.Count(ctx)
		stats["sessions"] = n
		stats["dedupeEntries"] = s.deduper.Size()
		stats["variants"] = len(s.scorer.Variants())
		metrics.UpdateSessionsActive(n)

		for key, family := range counterStats {
			if v, err := metrics.CounterValue(family); err == nil {
				stats[key] = v
			}
		}
	}

	return stats
}

func (s *Service) recordFailure(err error) {
	switch {
	case errors.Is(err, estimator.ErrInvalidInput):
		metrics.RecordInvalidInput()
		metrics.RecordErrorByComponent("scoring", "invalid_input")
	case errors.Is(err, estimator.ErrUnknownVariant):
		metrics.RecordErrorByComponent("scoring", "unknown_variant")
	default:
		metrics.RecordErrorByComponent("scoring", "internal")
	}
}

func summarize(sess *session.Session) types.Session {
	all := sess.History().All()
	out := types.Session{
		ID:        sess.ID(),
		Variant:   sess.Variant(),
		CreatedAt: sess.CreatedAt(),
		Attempts:  len(all),
		Capacity:  sess.History().Cap(),
	}
	for _, a := range all {
		if a.WasSuccessful {
			out.Outs++
		}
		out.TotalTokens += a.Tokens
	}
	return out
}

func findAttempt(as []model.Attempt, id string) (model.Attempt, bool) {
	for i := len(as) - 1; i >= 0; i-- {
		if as[i].ID == id {
			return as[i], true
		}
	}
	return model.Attempt{}, false
}
