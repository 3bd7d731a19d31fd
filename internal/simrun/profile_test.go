package simrun_test

import (
	"errors"
	"strings"
	"testing"

	"checkweigher/internal/config"
	"checkweigher/internal/line"
	"checkweigher/internal/simrun"
)

func TestProfileFallsBackToSharedSections(t *testing.T) {
	cfg := config.Default()

	large, err := simrun.Profile(&cfg, "large")
	if err != nil {
		t.Fatalf("Profile(large): %v", err)
	}
	if large.BaggingTolerance != cfg.Accuracy.Bagging || large.SensorAccuracy != cfg.Accuracy.Sensor {
		t.Fatalf("expected accuracy fallbacks, got %+v", large)
	}
	if large.FinalTolerance != cfg.Accuracy.Final || large.ThroughputKgPerHour != cfg.Throughput.KgPerHour {
		t.Fatalf("expected final/throughput fallbacks, got %+v", large)
	}
	if large.ThroughputMultiplier != 10 || large.Shape != line.ShapeSack {
		t.Fatalf("unexpected large preset: %+v", large)
	}
	if large.SpawnIntervalTicks() != 540 {
		t.Fatalf("large interval = %d, want 540", large.SpawnIntervalTicks())
	}

	small, err := simrun.Profile(&cfg, "small")
	if err != nil {
		t.Fatalf("Profile(small): %v", err)
	}
	if small.BaggingTolerance != 0.03 || small.ThroughputMultiplier != 1 || small.Shape != line.ShapeSmallBag {
		t.Fatalf("unexpected small preset: %+v", small)
	}
	if small.SpawnIntervalTicks() != 180 {
		t.Fatalf("small interval = %d, want 180", small.SpawnIntervalTicks())
	}
}

func TestProfileReportsMissingFields(t *testing.T) {
	cfg := config.Default()
	pc := cfg.Profiles["small"]
	pc.BaseWeight = nil
	pc.RangeMax = nil
	cfg.Profiles["small"] = pc

	_, err := simrun.Profile(&cfg, "small")
	if !errors.Is(err, line.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "base_weight") || !strings.Contains(err.Error(), "range_max") {
		t.Fatalf("error should name missing keys: %v", err)
	}

	if _, err := simrun.Profile(&cfg, "medium"); !errors.Is(err, line.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown profile, got %v", err)
	}
}

func TestSettingsMirrorLineSection(t *testing.T) {
	cfg := config.Default()
	s := simrun.Settings(&cfg, "A")
	if s.Name != "A" || s.ScanPosition != cfg.Line.ScanPosition || s.WeighPosition != cfg.Line.WeighPosition {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.DrainPollInterval != cfg.SwapPollInterval() || s.DrainTimeout != cfg.SwapTimeout() {
		t.Fatalf("unexpected drain settings: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
}
