package simrun

import (
	"fmt"
	"strings"

	"checkweigher/internal/config"
	"checkweigher/internal/line"
)

// Profile resolves a configured preset into a line profile. Tolerances and
// throughput left unset fall back to the [accuracy] and [throughput] sections.
func Profile(cfg *config.Config, name string) (line.Profile, error) {
	if cfg == nil {
		return line.Profile{}, fmt.Errorf("%w: config is required", line.ErrConfiguration)
	}
	pc, ok := cfg.Profiles[name]
	if !ok {
		return line.Profile{}, fmt.Errorf("%w: unknown profile %q", line.ErrConfiguration, name)
	}
	if missing := pc.MissingFields(); len(missing) > 0 {
		return line.Profile{}, fmt.Errorf("%w: profile %q: missing %s",
			line.ErrConfiguration, name, strings.Join(missing, ", "))
	}
	p := line.Profile{
		Name:                 name,
		Shape:                line.Shape(pc.Shape),
		BaseWeight:           *pc.BaseWeight,
		ContainerWeight:      *pc.ContainerWeight,
		Giveaway:             *pc.Giveaway,
		BaggingTolerance:     config.ValueOr(pc.BaggingTolerance, cfg.Accuracy.Bagging),
		SensorAccuracy:       config.ValueOr(pc.SensorAccuracy, cfg.Accuracy.Sensor),
		RangeMin:             *pc.RangeMin,
		RangeMax:             *pc.RangeMax,
		FinalTolerance:       config.ValueOr(pc.FinalTolerance, cfg.Accuracy.Final),
		ThroughputKgPerHour:  config.ValueOr(pc.ThroughputKgPerHour, cfg.Throughput.KgPerHour),
		ThroughputMultiplier: config.ValueOr(pc.ThroughputMultiplier, 1),
	}
	if err := p.Validate(); err != nil {
		return line.Profile{}, err
	}
	return p, nil
}

// Settings builds the belt geometry for the named machine.
func Settings(cfg *config.Config, machine string) line.Settings {
	return line.Settings{
		Name:              machine,
		InfeedPosition:    cfg.Line.InfeedPosition,
		ScanPosition:      cfg.Line.ScanPosition,
		WeighPosition:     cfg.Line.WeighPosition,
		DisposalBound:     cfg.Line.DisposalBound,
		ExitDelayTicks:    cfg.Line.ExitDelayTicks,
		DrainPollInterval: cfg.SwapPollInterval(),
		DrainTimeout:      cfg.SwapTimeout(),
	}
}
