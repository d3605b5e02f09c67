// Package scoring converts an xSteal probability and the observed outcome
// into a signed token reward.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/okian/xsteal/internal/domain/estimator"
)

// Tokens returns the reward for an attempt. An out that was unlikely
// (probability near 0) pays close to 1; a safe runner who should have been
// out (probability near 1) costs close to 1.
//
// probability is expected in [0,1]; the result is then in [-1,1].
func Tokens(probability float64, wasSuccessful bool) float64 {
	if wasSuccessful {
		return 1 - probability
	}
	return -probability
}

// Option applies a configuration option to the InMemoryScorer.
type Option func(*InMemoryScorer)

// WithDefaultVariant sets the variant used when an input names none.
func WithDefaultVariant(name string) Option {
	return func(s *InMemoryScorer) {
		if name != "" {
			s.defaultVariant = name
		}
	}
}

// WithVariants registers extra variants next to the built-in ones. A variant
// with a built-in name replaces it.
func WithVariants(variants ...estimator.Variant) Option {
	return func(s *InMemoryScorer) {
		for _, v := range variants {
			if v.Name() != "" {
				s.variants[v.Name()] = v
			}
		}
	}
}

// Input is what a caller knows about one attempt.
type Input struct {
	Variant       string // empty selects the scorer's default
	Metrics       estimator.Metrics
	WasSuccessful bool
}

// Result carries the estimate, its breakdown and the reward.
type Result struct {
	Variant     string
	Probability float64
	Tokens      float64
	Breakdown   estimator.Breakdown
}

// Scorer evaluates attempts.
type Scorer interface {
	// Score estimates and rewards one attempt, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// InMemoryScorer implements Scorer over a fixed set of variants.
type InMemoryScorer struct {
	variants       map[string]estimator.Variant
	defaultVariant string
}

// NewInMemoryScorer creates a scorer seeded with the built-in variants.
func NewInMemoryScorer(opts ...Option) *InMemoryScorer {
	s := &InMemoryScorer{
		variants:       make(map[string]estimator.Variant),
		defaultVariant: estimator.Classic,
	}
	for _, v := range estimator.Variants() {
		s.variants[v.Name()] = v
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Variant resolves a name, falling back to the default for "".
func (s *InMemoryScorer) Variant(name string) (estimator.Variant, error) {
	if name == "" {
		name = s.defaultVariant
	}
	v, ok := s.variants[name]
	if !ok {
		return estimator.Variant{}, fmt.Errorf("%w: %q", estimator.ErrUnknownVariant, name)
	}
	return v, nil
}

// Variants lists every variant the scorer accepts, sorted by name.
func (s *InMemoryScorer) Variants() []estimator.Variant {
	out := make([]estimator.Variant, 0, len(s.variants))
	for _, v := range s.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DefaultVariant returns the name used for inputs without a variant.
func (s *InMemoryScorer) DefaultVariant() string {
	return s.defaultVariant
}

// Score computes the estimate and the tokens for in.
func (s *InMemoryScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	v, err := s.Variant(in.Variant)
	if err != nil {
		return Result{}, err
	}

	b, err := estimator.Explain(v, in.Metrics)
	if err != nil {
		return Result{}, err
	}
	if math.IsNaN(b.Probability) {
		return Result{}, fmt.Errorf("%w: probability is NaN", estimator.ErrInvalidInput)
	}

	return Result{
		Variant:     v.Name(),
		Probability: b.Probability,
		Tokens:      Tokens(b.Probability, in.WasSuccessful),
		Breakdown:   b,
	}, nil
}
