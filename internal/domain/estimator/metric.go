// Package estimator turns raw steal-attempt measurements into the
// probability that the defense records an out (xSteal).
package estimator

// MetricName identifies a raw measurement. The value doubles as the wire key.
type MetricName string

// Known metrics.
const (
	PitcherTimeToPlate   MetricName = "pitcher_time_to_plate"
	RunnerSpeed          MetricName = "runner_speed"
	JumpQuality          MetricName = "jump_quality"
	CatcherPopTime       MetricName = "catcher_pop_time"
	CatcherThrowVelocity MetricName = "catcher_throw_velocity"
)

// Metrics holds raw values keyed by metric name.
type Metrics map[MetricName]float64

// Direction says which way a raw value moves its normalized component.
type Direction int

const (
	// LowerIsBetter components grow as the raw value drops below the pivot.
	LowerIsBetter Direction = iota
	// HigherIsBetter components grow as the raw value rises above the pivot.
	HigherIsBetter
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == LowerIsBetter {
		return "lower"
	}
	return "higher"
}

// MetricInfo describes a metric for presentation layers. The nominal range
// is an input hint only; the estimator clamps instead of rejecting.
type MetricInfo struct {
	Name       MetricName
	Label      string
	Unit       string
	NominalMin float64
	NominalMax float64
	Step       float64
}

var catalog = map[MetricName]MetricInfo{
	PitcherTimeToPlate:   {Name: PitcherTimeToPlate, Label: "Pitcher Time to Plate", Unit: "s", NominalMin: 1.2, NominalMax: 2.5, Step: 0.1},
	RunnerSpeed:          {Name: RunnerSpeed, Label: "Runner Speed", Unit: "ft/s", NominalMin: 23, NominalMax: 32, Step: 0.1},
	JumpQuality:          {Name: JumpQuality, Label: "Jump Quality", Unit: "score", NominalMin: 0, NominalMax: 100, Step: 1},
	CatcherPopTime:       {Name: CatcherPopTime, Label: "Catcher Pop Time", Unit: "s", NominalMin: 1.7, NominalMax: 2.2, Step: 0.01},
	CatcherThrowVelocity: {Name: CatcherThrowVelocity, Label: "Catcher Throw Velocity", Unit: "mph", NominalMin: 75, NominalMax: 90, Step: 0.5},
}

// Info returns the catalog entry for name.
func Info(name MetricName) (MetricInfo, bool) {
	info, ok := catalog[name]
	return info, ok
}
