package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"checkweigher/internal/config"
	"checkweigher/internal/feed"
	"checkweigher/internal/line"
	"checkweigher/internal/order"
)

func TestDisplayLabel(t *testing.T) {
	tests := map[string]string{
		"non_ferrous": "Non Ferrous",
		"small_bag":   "Small Bag",
		"passed":      "Passed",
		"":            "-",
	}
	for input, want := range tests {
		if got := displayLabel(input); got != want {
			t.Fatalf("displayLabel(%q) = %q, want %q", input, got, want)
		}
	}
	if got := verdictLabel(line.VerdictRejected, line.ReasonTolerance); got != "Rejected: Tolerance" {
		t.Fatalf("verdictLabel = %q", got)
	}
	if got := contaminantLabel(line.ContaminantFerrous); got != "Ferrous (2.5 mm)" {
		t.Fatalf("contaminantLabel = %q", got)
	}
	if got := contaminantLabel(line.ContaminantNone); got != "Clear" {
		t.Fatalf("contaminantLabel = %q", got)
	}
}

func TestRenderBeltUsesShapeGlyphs(t *testing.T) {
	settings := line.Settings{InfeedPosition: 45, ScanPosition: 274, WeighPosition: 475, DisposalBound: 950}
	items := []line.ItemView{
		{ID: 1, Shape: line.ShapeSack, Position: 100, Verdict: line.VerdictInTransit},
		{ID: 2, Shape: line.ShapeSmallBag, Position: 600, Verdict: line.VerdictRejected},
		{ID: 3, Shape: line.ShapeSmallBag, Position: 2000},
	}
	belt := renderBelt(items, settings)
	if len([]rune(belt)) != beltWidth+2 {
		t.Fatalf("belt width = %d", len([]rune(belt)))
	}
	for _, glyph := range []string{"B", "x", "|", "#"} {
		if !strings.Contains(belt, glyph) {
			t.Fatalf("belt %q missing %q", belt, glyph)
		}
	}
}

func TestRenderStatusLinePlain(t *testing.T) {
	got := renderStatusLine("Run", statusOK, "complete", false)
	if !strings.Contains(got, "Run:") || !strings.Contains(got, "[OK] complete") {
		t.Fatalf("unexpected status line %q", got)
	}
	if strings.Contains(got, ansiReset) {
		t.Fatal("plain status line must not contain ANSI codes")
	}
}

func TestFeedFollowerPrintsVerdictsUntilRunEnds(t *testing.T) {
	hub := feed.NewHub(9, feed.WithLifespan(0))
	weight := 25.012
	hub.Publish(line.Event{Kind: line.EventVerdict, Line: "A", ItemID: 1, Profile: "small",
		MeasuredWeight: &weight, Verdict: line.VerdictPassed})

	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		newFeedFollower(&buf, false).follow(ctx, "A", hub)
	}()

	time.Sleep(10 * time.Millisecond)
	hub.Publish(line.Event{Kind: line.EventVerdict, Line: "A", ItemID: 2, Profile: "small",
		Verdict: line.VerdictRejected, RejectReason: line.ReasonRange})
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("follower did not stop after the run ended")
	}

	out := buf.String()
	requireContains(t, out, "Line A:")
	requireContains(t, out, "#1 small 25.012 kg Passed")
	requireContains(t, out, "#2 small - Rejected: Range")
	if strings.Count(out, "#1 ") != 1 {
		t.Fatalf("verdict printed more than once:\n%s", out)
	}
}

func TestOrderRowMarksCompletedOrders(t *testing.T) {
	o := config.Order{Lot: "0260104002", Lines: []string{"A"}, QuantityTonnes: 0.05, PackageKg: 25}
	now := time.Date(2026, 1, 4, 9, 0, 0, 0, time.UTC)

	if row := orderRow(order.Compute("small", o, 2, 30000, now)); row[len(row)-1] != "complete" {
		t.Fatalf("expected completed order, got %v", row)
	}
	if row := orderRow(order.Compute("small", o, 1, 30000, now)); row[len(row)-1] == "complete" || row[5] != "1 / 2" {
		t.Fatalf("unexpected open order row %v", row)
	}
}
