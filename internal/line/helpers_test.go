package line_test

import (
	"sync"
	"time"

	"checkweigher/internal/line"
)

// sequenceSource replays a fixed list of draws, wrapping around.
type sequenceSource struct {
	values []float64
	next   int
}

func (s *sequenceSource) Float64() float64 {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// centred makes every uniform(±spread) draw return zero error.
func centred() *sequenceSource { return &sequenceSource{values: []float64{0.5}} }

type recorder struct {
	mu     sync.Mutex
	events []line.Event
}

func (r *recorder) Publish(evt line.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []line.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]line.Event(nil), r.events...)
}

func (r *recorder) kinds() []line.EventKind {
	var out []line.EventKind
	for _, evt := range r.snapshot() {
		out = append(out, evt.Kind)
	}
	return out
}

func smallProfile() line.Profile {
	return line.Profile{
		Name:                 "small",
		Shape:                line.ShapeSmallBag,
		BaseWeight:           25,
		ContainerWeight:      0.010,
		Giveaway:             0,
		BaggingTolerance:     0.015,
		SensorAccuracy:       0.005,
		RangeMin:             25.000,
		RangeMax:             25.110,
		FinalTolerance:       0.03,
		ThroughputKgPerHour:  30000,
		ThroughputMultiplier: 1,
	}
}

func largeProfile() line.Profile {
	return line.Profile{
		Name:                 "large",
		Shape:                line.ShapeSack,
		BaseWeight:           750,
		ContainerWeight:      3.5,
		Giveaway:             0.5,
		BaggingTolerance:     0.015,
		SensorAccuracy:       0.005,
		RangeMin:             753.5,
		RangeMax:             754.5,
		FinalTolerance:       0.25,
		ThroughputKgPerHour:  30000,
		ThroughputMultiplier: 10,
	}
}

func testSettings() line.Settings {
	return line.Settings{
		Name:              "A",
		InfeedPosition:    45,
		ScanPosition:      274,
		WeighPosition:     475,
		DisposalBound:     950,
		ExitDelayTicks:    50,
		DrainPollInterval: time.Millisecond,
		DrainTimeout:      5 * time.Second,
	}
}

var fixedTime = time.Date(2026, 1, 4, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }
