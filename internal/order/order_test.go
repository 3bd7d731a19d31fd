package order_test

import (
	"math"
	"testing"
	"time"

	"checkweigher/internal/config"
	"checkweigher/internal/line"
	"checkweigher/internal/order"
)

func smallOrder() config.Order {
	return config.Order{
		Silo:           "91T060A",
		Lines:          []string{"A", "B"},
		Lot:            "0260104002",
		ProductType:    "1126NK",
		Grade:          "PREMIUM",
		QuantityTonnes: 388.79,
		PackageKg:      25,
	}
}

func TestComputeProgressAndETA(t *testing.T) {
	now := time.Date(2026, 1, 4, 9, 0, 0, 0, time.UTC)
	p := order.Compute("small", smallOrder(), 5441, 30000, now)

	if p.TotalBags != 15551 {
		t.Fatalf("total bags = %d, want 15551", p.TotalBags)
	}
	if p.Lines != "A/B" {
		t.Fatalf("lines = %q", p.Lines)
	}
	if math.Abs(p.RemainingKg-252765) > 1e-6 {
		t.Fatalf("remaining kg = %v", p.RemainingKg)
	}
	wantRemaining := time.Duration(252765.0 / 30000 * float64(time.Hour))
	if diff := p.Remaining - wantRemaining; diff > time.Millisecond || diff < -time.Millisecond {
		t.Fatalf("remaining = %v, want %v", p.Remaining, wantRemaining)
	}
	if !p.ETA.Equal(now.Add(p.Remaining)) {
		t.Fatalf("remaining = %v eta = %v", p.Remaining, p.ETA)
	}
	if math.Abs(p.Fraction-5441.0/15551) > 1e-9 {
		t.Fatalf("fraction = %v", p.Fraction)
	}
	if p.Complete() {
		t.Fatal("order should not be complete")
	}
}

func TestComputeCapsAtCompletion(t *testing.T) {
	now := time.Now()
	p := order.Compute("small", smallOrder(), 20000, 30000, now)
	if p.Fraction != 1 || p.RemainingKg != 0 || p.Remaining != 0 || !p.Complete() {
		t.Fatalf("unexpected completed progress: %+v", p)
	}

	empty := order.Compute("small", config.Order{}, 3, 0, now)
	if empty.TotalBags != 0 || empty.Fraction != 0 || empty.Complete() {
		t.Fatalf("unexpected progress for empty order: %+v", empty)
	}
}

func TestTrackerCountsPassedBagsOnOrderLines(t *testing.T) {
	o := smallOrder()
	o.Lines = []string{"A"}
	tr := order.NewTracker("small", o, 30000)

	events := []line.Event{
		{Kind: line.EventVerdict, Line: "A", Profile: "small", Verdict: line.VerdictPassed},
		{Kind: line.EventVerdict, Line: "A", Profile: "small", Verdict: line.VerdictRejected},
		{Kind: line.EventVerdict, Line: "B", Profile: "small", Verdict: line.VerdictPassed},
		{Kind: line.EventVerdict, Line: "A", Profile: "large", Verdict: line.VerdictPassed},
		{Kind: line.EventScanClear, Line: "A", Profile: "small"},
		{Kind: line.EventVerdict, Line: "A", Profile: "small", Verdict: line.VerdictPassed},
	}
	for _, evt := range events {
		tr.Publish(evt)
	}
	if got := tr.Progress(time.Now()).ProducedBags; got != 2 {
		t.Fatalf("produced bags = %d, want 2", got)
	}
}
