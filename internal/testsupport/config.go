package testsupport

import (
	"path/filepath"
	"testing"

	"checkweigher/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Simulation.Seed = 42
	cfgVal.SafeSwap.PollIntervalMillis = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithSeed overrides the simulation seed.
func WithSeed(seed uint64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Simulation.Seed = seed
	}
}

// WithMachines replaces the configured machines with one per profile name,
// named A, B, C and so on.
func WithMachines(profiles ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Machines = nil
		for i, profile := range profiles {
			b.cfg.Machines = append(b.cfg.Machines, config.Machine{
				Name:    string(rune('A' + i)),
				Profile: profile,
				Speed:   1,
			})
		}
	}
}

// WithSwapTimeout bounds the safe-swap drain wait.
func WithSwapTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.SafeSwap.TimeoutSeconds = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
