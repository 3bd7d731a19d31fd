package config

import (
	"slices"
	"strings"
	"time"
)

// MissingFields lists the TOML keys a preset must set but does not. Tolerances
// and throughput fall back to [accuracy] and [throughput] and are never missing.
func (p ProfileConfig) MissingFields() []string {
	required := []struct {
		key   string
		value *float64
	}{
		{"base_weight", p.BaseWeight},
		{"container_weight", p.ContainerWeight},
		{"giveaway", p.Giveaway},
		{"range_min", p.RangeMin},
		{"range_max", p.RangeMax},
	}
	var missing []string
	for _, field := range required {
		if field.value == nil {
			missing = append(missing, field.key)
		}
	}
	return missing
}

// ValueOr returns *v, or fallback when v is unset.
func ValueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// ProfileNames returns configured preset names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Machine looks up a machine by case-insensitive name.
func (c *Config) Machine(name string) (Machine, bool) {
	for _, m := range c.Machines {
		if strings.EqualFold(m.Name, strings.TrimSpace(name)) {
			return m, true
		}
	}
	return Machine{}, false
}

// Order returns the production order filled by a profile.
func (c *Config) Order(profile string) (Order, bool) {
	order, ok := c.Orders[profile]
	return order, ok
}

// TickInterval is the wall-clock period of one tick in realtime mode.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Line.TickRate)
}

// SwapPollInterval is the safe-swap drain poll cadence.
func (c *Config) SwapPollInterval() time.Duration {
	return time.Duration(c.SafeSwap.PollIntervalMillis) * time.Millisecond
}

// SwapTimeout bounds the safe-swap drain wait.
func (c *Config) SwapTimeout() time.Duration {
	return time.Duration(c.SafeSwap.TimeoutSeconds) * time.Second
}

// FeedLifespan is how long a verdict stays in the feed.
func (c *Config) FeedLifespan() time.Duration {
	return time.Duration(c.Feed.LifespanSeconds) * time.Second
}
