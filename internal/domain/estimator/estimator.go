package estimator

import (
	"fmt"
	"math"
)

// Term is one metric's share of an estimate.
type Term struct {
	Metric       MetricName
	Raw          float64
	Normalized   float64
	Weight       float64
	Contribution float64
}

// Breakdown is an estimate with its per-metric terms in variant order.
type Breakdown struct {
	Variant     string
	Probability float64
	Terms       []Term
}

// Estimate returns the probability in [0,1] that the defense throws the
// runner out. Metrics the variant does not use are ignored.
func Estimate(v Variant, m Metrics) (float64, error) {
	b, err := Explain(v, m)
	if err != nil {
		return 0, err
	}
	return b.Probability, nil
}

// Explain computes the estimate and keeps every weighted term.
func Explain(v Variant, m Metrics) (Breakdown, error) {
	if len(v.components) == 0 {
		return Breakdown{}, fmt.Errorf("%w: zero variant", ErrInvalidVariant)
	}

	terms := make([]Term, len(v.components))
	var sum float64
	for i, c := range v.components {
		raw, ok := m[c.Metric]
		if !ok {
			return Breakdown{}, fmt.Errorf("%w: missing %s", ErrInvalidInput, c.Metric)
		}
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return Breakdown{}, fmt.Errorf("%w: %s is not a finite number", ErrInvalidInput, c.Metric)
		}
		n := c.normalize(raw)
		terms[i] = Term{
			Metric:       c.Metric,
			Raw:          raw,
			Normalized:   n,
			Weight:       c.Weight,
			Contribution: n * c.Weight,
		}
		sum += terms[i].Contribution
	}

	return Breakdown{
		Variant:     v.name,
		Probability: clamp01(sum),
		Terms:       terms,
	}, nil
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
