// Package types contains the JSON views shared by the HTTP API and the CLI.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/okian/xsteal/internal/domain/estimator"
	"github.com/okian/xsteal/internal/domain/model"
)

// Term is one metric's share of an estimate.
type Term struct {
	Metric       string  `json:"metric"`
	Raw          float64 `json:"raw"`
	Normalized   float64 `json:"normalized"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Estimate is a probability with its breakdown.
type Estimate struct {
	Variant     string  `json:"variant"`
	Probability float64 `json:"probability"`
	Terms       []Term  `json:"terms,omitempty"`
}

// Attempt is a recorded attempt.
type Attempt struct {
	ID            string             `json:"id"`
	Variant       string             `json:"variant"`
	Metrics       map[string]float64 `json:"metrics"`
	Probability   float64            `json:"probability"`
	Tokens        float64            `json:"tokens"`
	WasSuccessful bool               `json:"was_successful"`
	Outcome       string             `json:"outcome"`
	CapturedAt    time.Time          `json:"captured_at"`
}

// AttemptResult is returned when an attempt is submitted.
type AttemptResult struct {
	Attempt   Attempt  `json:"attempt"`
	Estimate  Estimate `json:"estimate"`
	Duplicate bool     `json:"duplicate"`
	Evicted   bool     `json:"evicted"`
}

// Session summarizes a session and its window.
type Session struct {
	ID          string    `json:"id"`
	Variant     string    `json:"variant"`
	CreatedAt   time.Time `json:"created_at"`
	Attempts    int       `json:"attempts"`
	Capacity    int       `json:"capacity"`
	Outs        int       `json:"outs"`
	TotalTokens float64   `json:"total_tokens"`
}

// MetricSpec describes one component of a variant.
type MetricSpec struct {
	Metric     string  `json:"metric"`
	Label      string  `json:"label"`
	Unit       string  `json:"unit"`
	Direction  string  `json:"direction"`
	Pivot      float64 `json:"pivot"`
	Span       float64 `json:"span"`
	Weight     float64 `json:"weight"`
	NominalMin float64 `json:"nominal_min"`
	NominalMax float64 `json:"nominal_max"`
	Step       float64 `json:"step"`
}

// Variant describes an estimator variant.
type Variant struct {
	Name    string       `json:"name"`
	Default bool         `json:"default"`
	Metrics []MetricSpec `json:"metrics"`
}

// Score is the reward for a probability and outcome.
type Score struct {
	Probability   float64 `json:"probability"`
	WasSuccessful bool    `json:"was_successful"`
	Tokens        float64 `json:"tokens"`
}

// FromBreakdown converts an estimator breakdown.
func FromBreakdown(b estimator.Breakdown) Estimate {
	terms := make([]Term, len(b.Terms))
	for i, t := range b.Terms {
		terms[i] = Term{
			Metric:       string(t.Metric),
			Raw:          t.Raw,
			Normalized:   t.Normalized,
			Weight:       t.Weight,
			Contribution: t.Contribution,
		}
	}
	return Estimate{Variant: b.Variant, Probability: b.Probability, Terms: terms}
}

// FromAttempt converts a recorded attempt.
func FromAttempt(a model.Attempt) Attempt {
	m := a.Metrics()
	metrics := make(map[string]float64, len(m))
	for k, v := range m {
		metrics[string(k)] = v
	}
	return Attempt{
		ID:            a.ID,
		Variant:       a.Variant,
		Metrics:       metrics,
		Probability:   a.Probability,
		Tokens:        a.Tokens,
		WasSuccessful: a.WasSuccessful,
		Outcome:       a.Outcome(),
		CapturedAt:    a.CapturedAt,
	}
}

// FromAttempts converts attempts keeping their order.
func FromAttempts(as []model.Attempt) []Attempt {
	out := make([]Attempt, len(as))
	for i, a := range as {
		out[i] = FromAttempt(a)
	}
	return out
}

// FromVariant converts a variant. Metrics keep the variant's order.
func FromVariant(v estimator.Variant, isDefault bool) Variant {
	cs := v.Components()
	specs := make([]MetricSpec, len(cs))
	for i, c := range cs {
		info, _ := estimator.Info(c.Metric)
		specs[i] = MetricSpec{
			Metric:     string(c.Metric),
			Label:      info.Label,
			Unit:       info.Unit,
			Direction:  c.Direction.String(),
			Pivot:      c.Pivot,
			Span:       c.Span,
			Weight:     c.Weight,
			NominalMin: info.NominalMin,
			NominalMax: info.NominalMax,
			Step:       info.Step,
		}
	}
	return Variant{Name: v.Name(), Default: isDefault, Metrics: specs}
}

// ToMetrics converts a wire metrics object into estimator metrics. Each
// value must be a JSON number; null or any other JSON type fails with
// estimator.ErrInvalidInput naming the metric.
func ToMetrics(m map[string]json.RawMessage) (estimator.Metrics, error) {
	out := make(estimator.Metrics, len(m))
	for _, k := range SortedMetricNames(m) {
		raw := bytes.TrimSpace(m[k])
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return nil, fmt.Errorf("%w: metric %s is null", estimator.ErrInvalidInput, k)
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: metric %s must be a number", estimator.ErrInvalidInput, k)
		}
		out[estimator.MetricName(k)] = v
	}
	return out, nil
}

// SortedMetricNames returns the keys of m in name order.
func SortedMetricNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
