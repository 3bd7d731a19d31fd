package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"checkweigher/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndUsesEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CHECKWEIGHER_SEED", "1234")
	t.Setenv("CHECKWEIGHER_LOG_LEVEL", "DEBUG")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "checkweigher", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Simulation.Seed != 1234 {
		t.Fatalf("expected seed from env, got %d", cfg.Simulation.Seed)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected log level from env, got %q", cfg.Logging.Level)
	}
	if cfg.Line.ScanPosition != 274 || cfg.Line.WeighPosition != 475 {
		t.Fatalf("unexpected checkpoints: %+v", cfg.Line)
	}
	if cfg.Feed.Capacity != 9 || cfg.FeedLifespan() != time.Minute {
		t.Fatalf("unexpected feed defaults: %+v", cfg.Feed)
	}
	if cfg.SwapPollInterval() != 250*time.Millisecond || cfg.SwapTimeout() != 30*time.Second {
		t.Fatalf("unexpected swap defaults: %+v", cfg.SafeSwap)
	}
	if got := cfg.ProfileNames(); len(got) != 2 || got[0] != "large" || got[1] != "small" {
		t.Fatalf("unexpected profiles: %v", got)
	}
	if len(cfg.Machines) != 2 {
		t.Fatalf("expected two default machines, got %d", len(cfg.Machines))
	}
}

func TestLoadInvalidSeedEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHECKWEIGHER_SEED", "not-a-number")
	t.Chdir(t.TempDir())

	if _, _, _, err := config.Load(""); err == nil || !strings.Contains(err.Error(), "CHECKWEIGHER_SEED") {
		t.Fatalf("expected seed parse error, got %v", err)
	}
}

func TestLoadCustomPathReplacesPresets(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	content := `
[paths]
log_dir = "` + filepath.Join(dir, "logs") + `"

[line]
scan_position = 100.0
weigh_position = 200.0
disposal_bound = 400.0

[profiles.flour]
shape = "small_bag"
base_weight = 10.0
container_weight = 0.05
giveaway = 0.0
range_min = 9.9
range_max = 10.2

[[machines]]
name = "C"
profile = "flour"

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q, got %q exists=%v", path, resolved, exists)
	}
	if _, ok := cfg.Profiles["small"]; ok {
		t.Fatal("file profiles should replace the default presets")
	}
	if len(cfg.Machines) != 1 || cfg.Machines[0].Speed != 1 {
		t.Fatalf("unexpected machines: %+v", cfg.Machines)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized format, got %q", cfg.Logging.Format)
	}
	if cfg.Line.TickRate != 60 {
		t.Fatalf("expected default tick rate, got %d", cfg.Line.TickRate)
	}
	if m, ok := cfg.Machine("c"); !ok || m.Profile != "flour" {
		t.Fatalf("machine lookup failed: %+v %v", m, ok)
	}
	if _, ok := cfg.Order("flour"); ok {
		t.Fatal("no order configured for flour")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if len(cfg.Profiles) != 2 || len(cfg.Machines) != 2 {
		t.Fatalf("sample should carry both presets and machines: %+v", cfg)
	}
	if cfg.Profiles["small"].BaggingTolerance == nil || *cfg.Profiles["small"].BaggingTolerance != 0.03 {
		t.Fatal("sample small preset should set bagging tolerance")
	}
	if cfg.Profiles["large"].BaggingTolerance != nil {
		t.Fatal("sample large preset should fall back to [accuracy]")
	}
	if !strings.Contains(cfg.Paths.LogDir, "checkweigher") {
		t.Fatalf("expected log dir to contain checkweigher, got %q", cfg.Paths.LogDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"scan after weigh", func(c *config.Config) { c.Line.ScanPosition = 500 }, "line.scan_position"},
		{"disposal before scale", func(c *config.Config) { c.Line.DisposalBound = 400 }, "line.disposal_bound"},
		{"zero tick rate", func(c *config.Config) { c.Line.TickRate = 0 }, "line.tick_rate"},
		{"missing base weight", func(c *config.Config) {
			p := c.Profiles["small"]
			p.BaseWeight = nil
			c.Profiles["small"] = p
		}, "profiles.small: missing base_weight"},
		{"inverted range", func(c *config.Config) {
			p := c.Profiles["large"]
			lo, hi := 800.0, 700.0
			p.RangeMin, p.RangeMax = &lo, &hi
			c.Profiles["large"] = p
		}, "profiles.large.range_min"},
		{"unknown shape", func(c *config.Config) {
			p := c.Profiles["small"]
			p.Shape = "drum"
			c.Profiles["small"] = p
		}, "profiles.small.shape"},
		{"machine without profile", func(c *config.Config) { c.Machines[0].Profile = "medium" }, "machines[0].profile"},
		{"duplicate machine", func(c *config.Config) { c.Machines[1].Name = "a" }, "duplicated"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestMissingFieldsAndValueOr(t *testing.T) {
	var p config.ProfileConfig
	if got := p.MissingFields(); len(got) != 5 {
		t.Fatalf("expected five required fields, got %v", got)
	}
	if config.ValueOr(nil, 0.5) != 0.5 {
		t.Fatal("expected fallback for nil value")
	}
	v := 0.0
	if config.ValueOr(&v, 0.5) != 0 {
		t.Fatal("explicit zero must not fall back")
	}
}

func TestEncodeRoundTripsMachines(t *testing.T) {
	cfg := config.Default()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), "[[machines]]") {
		t.Fatalf("encoded config missing machines: %s", data)
	}
}
