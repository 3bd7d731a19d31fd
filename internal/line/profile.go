package line

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrConfiguration marks a profile that cannot be adopted.
var ErrConfiguration = errors.New("configuration error")

// Shape selects how a renderer draws an item. It has no effect on inspection.
type Shape string

const (
	ShapeSack     Shape = "sack"
	ShapeSmallBag Shape = "small_bag"
)

// Profile is an immutable snapshot of the weight formula and gate thresholds
// for items produced under it. Items copy the profile at creation.
type Profile struct {
	Name  string
	Shape Shape

	BaseWeight       float64 // product weight, kg
	ContainerWeight  float64 // empty bag, kg
	Giveaway         float64 // deliberate overfill, kg
	BaggingTolerance float64 // ± filler error and the final gate tolerance, kg
	SensorAccuracy   float64 // ± load cell error, kg
	RangeMin         float64
	RangeMax         float64
	// FinalTolerance gates the final nominal check when BaggingTolerance is zero.
	FinalTolerance float64

	ThroughputKgPerHour  float64
	ThroughputMultiplier float64
}

// FinalNominal is the weight a perfectly filled item should read.
func (p Profile) FinalNominal() float64 {
	return p.BaseWeight + p.ContainerWeight + p.Giveaway
}

// GateTolerance returns the allowed deviation from FinalNominal.
func (p Profile) GateTolerance() float64 {
	if p.BaggingTolerance > 0 {
		return p.BaggingTolerance
	}
	return p.FinalTolerance
}

// SpawnIntervalTicks returns the bagging interval for this profile at speed 1.
func (p Profile) SpawnIntervalTicks() int {
	return SpawnIntervalTicks(p.BaseWeight, p.ThroughputKgPerHour, p.ThroughputMultiplier)
}

// Validate checks that every required value is present. Ranges are not checked.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: profile name is required", ErrConfiguration)
	}
	fields := []struct {
		key   string
		value float64
	}{
		{"base_weight", p.BaseWeight},
		{"container_weight", p.ContainerWeight},
		{"giveaway", p.Giveaway},
		{"bagging_tolerance", p.BaggingTolerance},
		{"sensor_accuracy", p.SensorAccuracy},
		{"range_min", p.RangeMin},
		{"range_max", p.RangeMax},
		{"final_tolerance", p.FinalTolerance},
		{"throughput_kg_per_hour", p.ThroughputKgPerHour},
		{"throughput_multiplier", p.ThroughputMultiplier},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: profile %q: %s is missing", ErrConfiguration, p.Name, f.key)
		}
	}
	if p.ThroughputKgPerHour == 0 {
		return fmt.Errorf("%w: profile %q: throughput_kg_per_hour is missing", ErrConfiguration, p.Name)
	}
	return nil
}
