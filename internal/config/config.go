package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Line contains the belt geometry and tick clock shared by every machine.
type Line struct {
	InfeedPosition float64 `toml:"infeed_position"`
	ScanPosition   float64 `toml:"scan_position"`
	WeighPosition  float64 `toml:"weigh_position"`
	DisposalBound  float64 `toml:"disposal_bound"`
	ExitDelayTicks int     `toml:"exit_delay_ticks"`
	TickRate       int     `toml:"tick_rate"` // ticks per second in realtime mode
	DefaultSpeed   float64 `toml:"default_speed"`
	// SpeedScale converts operator speed settings into belt units per tick.
	SpeedScale float64 `toml:"speed_scale"`
}

// Throughput contains the bagging machine rate.
type Throughput struct {
	KgPerHour float64 `toml:"kg_per_hour"`
}

// Accuracy holds fallbacks for profiles that leave tolerances unset.
type Accuracy struct {
	Sensor  float64 `toml:"sensor"`
	Bagging float64 `toml:"bagging"`
	Final   float64 `toml:"final"`
}

// SafeSwap bounds the drain wait of a safe profile swap.
type SafeSwap struct {
	PollIntervalMillis int `toml:"poll_interval_ms"`
	TimeoutSeconds     int `toml:"timeout_seconds"`
}

// Feed configures the verdict history shown per machine.
type Feed struct {
	Capacity        int `toml:"capacity"`
	LifespanSeconds int `toml:"lifespan_seconds"`
}

// ProfileConfig is a package preset as written in TOML. Fields are pointers so
// a missing value can be told apart from zero.
type ProfileConfig struct {
	Shape                string   `toml:"shape"`
	BaseWeight           *float64 `toml:"base_weight"`
	ContainerWeight      *float64 `toml:"container_weight"`
	Giveaway             *float64 `toml:"giveaway"`
	BaggingTolerance     *float64 `toml:"bagging_tolerance"`
	SensorAccuracy       *float64 `toml:"sensor_accuracy"`
	RangeMin             *float64 `toml:"range_min"`
	RangeMax             *float64 `toml:"range_max"`
	FinalTolerance       *float64 `toml:"final_tolerance"`
	ThroughputKgPerHour  *float64 `toml:"throughput_kg_per_hour"`
	ThroughputMultiplier *float64 `toml:"throughput_multiplier"`
}

// Order describes the production order a profile is filling.
type Order struct {
	Silo           string   `toml:"silo"`
	Lines          []string `toml:"lines"`
	Lot            string   `toml:"lot"`
	ProductType    string   `toml:"product_type"`
	Grade          string   `toml:"grade"`
	QuantityTonnes float64  `toml:"quantity_tonnes"`
	PackageKg      float64  `toml:"package_kg"`
}

// Machine is one bagging line with its own belt, scheduler and checkweigher.
type Machine struct {
	Name    string  `toml:"name"`
	Profile string  `toml:"profile"`
	Speed   float64 `toml:"speed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Simulation contains run defaults.
type Simulation struct {
	Seed  uint64 `toml:"seed"` // 0 picks a seed from the clock
	Ticks int    `toml:"ticks"`
}

// Config encapsulates all configuration values for checkweigher.
//
// Configuration sections by subsystem:
//   - Paths: log and state directories
//   - Line: belt geometry, tick clock and speed
//   - Throughput, Accuracy: fallbacks shared by every profile
//   - SafeSwap: drain wait cadence and bound
//   - Feed: verdict history size and lifespan
//   - Profiles: package presets keyed by name
//   - Orders: production orders keyed by profile name
//   - Machines: lines to simulate side by side
//   - Logging, Simulation: output and run defaults
type Config struct {
	Paths      Paths                    `toml:"paths"`
	Line       Line                     `toml:"line"`
	Throughput Throughput               `toml:"throughput"`
	Accuracy   Accuracy                 `toml:"accuracy"`
	SafeSwap   SafeSwap                 `toml:"safe_swap"`
	Feed       Feed                     `toml:"feed"`
	Profiles   map[string]ProfileConfig `toml:"profiles"`
	Orders     map[string]Order         `toml:"orders"`
	Machines   []Machine                `toml:"machines"`
	Logging    Logging                  `toml:"logging"`
	Simulation Simulation               `toml:"simulation"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Tables from the file replace the default presets wholesale.
		cfg.Profiles = nil
		cfg.Orders = nil
		cfg.Machines = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		defaults := Default()
		if len(cfg.Profiles) == 0 {
			cfg.Profiles = defaults.Profiles
		}
		if cfg.Orders == nil {
			cfg.Orders = defaults.Orders
		}
		if len(cfg.Machines) == 0 {
			cfg.Machines = defaults.Machines
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("checkweigher.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is where a running simulation holds its instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "checkweigher.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
