package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSimulation(); err != nil {
		return err
	}
	c.normalizeLine()
	c.normalizeProfiles()
	c.normalizeMachines()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSimulation() error {
	if c.Simulation.Seed == 0 {
		if value, ok := os.LookupEnv("CHECKWEIGHER_SEED"); ok && strings.TrimSpace(value) != "" {
			seed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return fmt.Errorf("CHECKWEIGHER_SEED: %w", err)
			}
			c.Simulation.Seed = seed
		}
	}
	if c.Simulation.Ticks <= 0 {
		c.Simulation.Ticks = defaultSimulationTicks
	}
	return nil
}

func (c *Config) normalizeLine() {
	if c.Line.TickRate <= 0 {
		c.Line.TickRate = defaultTickRate
	}
	if c.Line.SpeedScale <= 0 {
		c.Line.SpeedScale = defaultSpeedScale
	}
	if c.Line.DefaultSpeed < 0 {
		c.Line.DefaultSpeed = 0
	}
	if c.Throughput.KgPerHour <= 0 {
		c.Throughput.KgPerHour = defaultThroughputKgPerHour
	}
	if c.Feed.Capacity <= 0 {
		c.Feed.Capacity = defaultFeedCapacity
	}
	if c.Feed.LifespanSeconds <= 0 {
		c.Feed.LifespanSeconds = defaultFeedLifespanSeconds
	}
	if c.SafeSwap.PollIntervalMillis <= 0 {
		c.SafeSwap.PollIntervalMillis = defaultSwapPollIntervalMS
	}
	if c.SafeSwap.TimeoutSeconds <= 0 {
		c.SafeSwap.TimeoutSeconds = defaultSwapTimeoutSeconds
	}
}

func (c *Config) normalizeProfiles() {
	for name, p := range c.Profiles {
		p.Shape = strings.ToLower(strings.TrimSpace(p.Shape))
		if p.Shape == "" {
			p.Shape = defaultSmallShape
		}
		c.Profiles[name] = p
	}
}

func (c *Config) normalizeMachines() {
	for i := range c.Machines {
		c.Machines[i].Name = strings.TrimSpace(c.Machines[i].Name)
		c.Machines[i].Profile = strings.TrimSpace(c.Machines[i].Profile)
		if c.Machines[i].Speed <= 0 {
			c.Machines[i].Speed = c.Line.DefaultSpeed
		}
	}
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("CHECKWEIGHER_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
