// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/xsteal/internal/domain/estimator"
)

// Outcome labels used by presentation layers.
const (
	OutcomeOut  = "out"
	OutcomeSafe = "safe"
)

// Attempt is an immutable snapshot of one evaluated steal attempt.
type Attempt struct {
	ID            string
	Variant       string
	Probability   float64 // xSteal, chance the defense records the out
	Tokens        float64 // reward in [-1,1]
	WasSuccessful bool    // true when the runner was thrown out
	CapturedAt    time.Time

	metrics estimator.Metrics
}

// NewAttempt builds an Attempt, copying metrics so later changes by the
// caller cannot leak into the record.
func NewAttempt(id, variant string, metrics estimator.Metrics, probability, tokens float64, wasSuccessful bool, capturedAt time.Time) Attempt {
	return Attempt{
		ID:            id,
		Variant:       variant,
		Probability:   probability,
		Tokens:        tokens,
		WasSuccessful: wasSuccessful,
		CapturedAt:    capturedAt,
		metrics:       copyMetrics(metrics),
	}
}

// Metrics returns a copy of the raw values the attempt was scored from.
func (a Attempt) Metrics() estimator.Metrics {
	return copyMetrics(a.metrics)
}

// Outcome returns OutcomeOut or OutcomeSafe.
func (a Attempt) Outcome() string {
	if a.WasSuccessful {
		return OutcomeOut
	}
	return OutcomeSafe
}

func copyMetrics(m estimator.Metrics) estimator.Metrics {
	cp := make(estimator.Metrics, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
