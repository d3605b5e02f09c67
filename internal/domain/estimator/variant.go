package estimator

import (
	"fmt"
	"math"
	"sort"
)

// Variant names shipped with the service.
const (
	Classic  = "classic"
	Extended = "extended"
)

// weightSumTolerance absorbs float rounding when checking that weights sum to 1.
const weightSumTolerance = 1e-9

// Component is one weighted, normalized term of a variant.
//
// LowerIsBetter: clamp((Pivot - v) / Span, 0, 1)
// HigherIsBetter: clamp((v - Pivot) / Span, 0, 1)
type Component struct {
	Metric    MetricName
	Direction Direction
	Pivot     float64
	Span      float64
	Weight    float64
}

// normalize maps a raw value into [0,1].
func (c Component) normalize(v float64) float64 {
	var n float64
	if c.Direction == LowerIsBetter {
		n = (c.Pivot - v) / c.Span
	} else {
		n = (v - c.Pivot) / c.Span
	}
	return clamp01(n)
}

// Variant is an immutable weighting model. Build one with NewVariant.
type Variant struct {
	name       string
	components []Component
}

// NewVariant validates components and returns a Variant. Weights must be
// non-negative and sum to 1, spans must be positive and metrics unique.
func NewVariant(name string, components ...Component) (Variant, error) {
	if name == "" {
		return Variant{}, fmt.Errorf("%w: empty name", ErrInvalidVariant)
	}
	if len(components) == 0 {
		return Variant{}, fmt.Errorf("%w: %s has no components", ErrInvalidVariant, name)
	}

	seen := make(map[MetricName]struct{}, len(components))
	var sum float64
	for _, c := range components {
		if _, dup := seen[c.Metric]; dup {
			return Variant{}, fmt.Errorf("%w: %s lists %s twice", ErrInvalidVariant, name, c.Metric)
		}
		seen[c.Metric] = struct{}{}

		if !(c.Span > 0) || math.IsInf(c.Span, 0) {
			return Variant{}, fmt.Errorf("%w: %s span for %s must be positive", ErrInvalidVariant, name, c.Metric)
		}
		if c.Weight < 0 || math.IsNaN(c.Weight) || math.IsNaN(c.Pivot) || math.IsInf(c.Pivot, 0) {
			return Variant{}, fmt.Errorf("%w: %s has a bad weight or pivot for %s", ErrInvalidVariant, name, c.Metric)
		}
		sum += c.Weight
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return Variant{}, fmt.Errorf("%w: %s weights sum to %g", ErrInvalidVariant, name, sum)
	}

	cp := make([]Component, len(components))
	copy(cp, components)
	return Variant{name: name, components: cp}, nil
}

func mustVariant(name string, components ...Component) Variant {
	v, err := NewVariant(name, components...)
	if err != nil {
		panic(err)
	}
	return v
}

// Name returns the variant name.
func (v Variant) Name() string { return v.name }

// Components returns a copy of the variant's terms in declaration order.
func (v Variant) Components() []Component {
	cp := make([]Component, len(v.components))
	copy(cp, v.components)
	return cp
}

// Metrics lists the metric names the variant reads.
func (v Variant) Metrics() []MetricName {
	names := make([]MetricName, len(v.components))
	for i, c := range v.components {
		names[i] = c.Metric
	}
	return names
}

// runner_speed enters both variants as a positive term even though a faster
// runner should lower the chance of an out. Kept as observed; see DESIGN.md.
var (
	classicVariant = mustVariant(Classic,
		Component{Metric: PitcherTimeToPlate, Direction: LowerIsBetter, Pivot: 2.0, Span: 0.5, Weight: 0.4},
		Component{Metric: RunnerSpeed, Direction: HigherIsBetter, Pivot: 25, Span: 5, Weight: 0.3},
		Component{Metric: JumpQuality, Direction: HigherIsBetter, Pivot: 0, Span: 100, Weight: 0.3},
	)

	extendedVariant = mustVariant(Extended,
		Component{Metric: PitcherTimeToPlate, Direction: LowerIsBetter, Pivot: 2.0, Span: 0.5, Weight: 0.25},
		Component{Metric: RunnerSpeed, Direction: HigherIsBetter, Pivot: 25, Span: 5, Weight: 0.2},
		Component{Metric: JumpQuality, Direction: HigherIsBetter, Pivot: 0, Span: 100, Weight: 0.15},
		Component{Metric: CatcherPopTime, Direction: LowerIsBetter, Pivot: 2.0, Span: 0.3, Weight: 0.25},
		Component{Metric: CatcherThrowVelocity, Direction: HigherIsBetter, Pivot: 75, Span: 15, Weight: 0.15},
	)

	builtins = map[string]Variant{
		Classic:  classicVariant,
		Extended: extendedVariant,
	}
)

// Lookup returns a built-in variant by name.
func Lookup(name string) (Variant, error) {
	v, ok := builtins[name]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}

// Variants returns the built-in variants sorted by name.
func Variants() []Variant {
	out := make([]Variant, 0, len(builtins))
	for _, v := range builtins {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
