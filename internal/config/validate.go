package config

import (
	"errors"
	"fmt"
	"strings"
)

var validShapes = map[string]struct{}{
	defaultSmallShape: {},
	defaultLargeShape: {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLine(); err != nil {
		return err
	}
	if err := c.validateIntervals(); err != nil {
		return err
	}
	if err := c.validateProfiles(); err != nil {
		return err
	}
	if err := c.validateMachines(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLine() error {
	l := c.Line
	if l.ScanPosition >= l.WeighPosition {
		return errors.New("line.scan_position must be less than line.weigh_position")
	}
	if l.InfeedPosition > l.ScanPosition {
		return errors.New("line.infeed_position must not be past line.scan_position")
	}
	if l.DisposalBound <= l.WeighPosition {
		return errors.New("line.disposal_bound must be greater than line.weigh_position")
	}
	if l.ExitDelayTicks < 0 {
		return errors.New("line.exit_delay_ticks must not be negative")
	}
	return nil
}

func (c *Config) validateIntervals() error {
	return ensurePositiveMap(map[string]int{
		"line.tick_rate":             c.Line.TickRate,
		"safe_swap.poll_interval_ms": c.SafeSwap.PollIntervalMillis,
		"safe_swap.timeout_seconds":  c.SafeSwap.TimeoutSeconds,
		"feed.capacity":              c.Feed.Capacity,
		"feed.lifespan_seconds":      c.Feed.LifespanSeconds,
	})
}

func (c *Config) validateProfiles() error {
	if len(c.Profiles) == 0 {
		return errors.New("at least one [profiles.<name>] table is required")
	}
	for _, name := range c.ProfileNames() {
		p := c.Profiles[name]
		if missing := p.MissingFields(); len(missing) > 0 {
			return fmt.Errorf("profiles.%s: missing %s", name, strings.Join(missing, ", "))
		}
		if _, ok := validShapes[p.Shape]; !ok {
			return fmt.Errorf("profiles.%s.shape must be %q or %q", name, defaultSmallShape, defaultLargeShape)
		}
		if *p.RangeMin > *p.RangeMax {
			return fmt.Errorf("profiles.%s.range_min must not exceed range_max", name)
		}
	}
	return nil
}

func (c *Config) validateMachines() error {
	if len(c.Machines) == 0 {
		return errors.New("at least one [[machines]] entry is required")
	}
	seen := make(map[string]struct{}, len(c.Machines))
	for i, m := range c.Machines {
		if m.Name == "" {
			return fmt.Errorf("machines[%d].name must be set", i)
		}
		key := strings.ToLower(m.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("machines[%d].name %q is duplicated", i, m.Name)
		}
		seen[key] = struct{}{}
		if _, ok := c.Profiles[m.Profile]; !ok {
			return fmt.Errorf("machines[%d].profile %q is not a configured profile", i, m.Profile)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
