package simrun_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"checkweigher/internal/feed"
	"checkweigher/internal/line"
	"checkweigher/internal/simrun"
	"checkweigher/internal/testsupport"
)

type eventLog struct {
	mu     sync.Mutex
	events []line.Event
}

func (l *eventLog) Publish(evt line.Event) {
	l.mu.Lock()
	l.events = append(l.events, evt)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []line.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]line.Event(nil), l.events...)
}

func mustRun(t *testing.T, ctx context.Context, opts simrun.Options, cfgOpts ...testsupport.ConfigOption) *simrun.Result {
	t.Helper()
	cfg := testsupport.NewConfig(t, cfgOpts...)
	res, err := simrun.Run(ctx, cfg, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestRunSingleMachineTalliesAgree(t *testing.T) {
	res := mustRun(t, context.Background(), simrun.Options{Ticks: 3600}, testsupport.WithMachines("small"))

	if len(res.Machines) != 1 {
		t.Fatalf("expected one machine, got %d", len(res.Machines))
	}
	m := res.Machines[0]
	if m.Stats.Ticks != 3600 {
		t.Fatalf("ticks = %d", m.Stats.Ticks)
	}
	// Items leave the bagger every 181 ticks at speed 1.
	if m.Stats.Produced != 19 {
		t.Fatalf("produced = %d, want 19", m.Stats.Produced)
	}
	if len(res.Summary) != 1 {
		t.Fatalf("expected one summary row, got %+v", res.Summary)
	}
	s := res.Summary[0]
	if s.Line != "A" || s.Profile != "small" {
		t.Fatalf("unexpected summary key: %+v", s)
	}
	if s.Passed != m.Stats.Passed || s.Rejected() != m.Stats.Rejected() || s.Weighed != m.Stats.Passed+m.Stats.Rejected() {
		t.Fatalf("journal %+v disagrees with stats %+v", s, m.Stats)
	}
	if s.Flagged != m.Stats.Flagged {
		t.Fatalf("flagged journal=%d stats=%d", s.Flagged, m.Stats.Flagged)
	}
	if len(m.Feed) > 9 || len(m.Feed) == 0 {
		t.Fatalf("feed length = %d", len(m.Feed))
	}
	if res.JournalDropped != 0 {
		t.Fatalf("journal dropped %d events", res.JournalDropped)
	}
	if res.Elapsed <= 0 {
		t.Fatalf("expected simulated elapsed time, got %v", res.Elapsed)
	}

	var found bool
	for _, p := range res.Orders {
		if p.Profile == "small" {
			found = true
			if p.ProducedBags != m.Stats.Passed {
				t.Fatalf("order produced = %d, want %d", p.ProducedBags, m.Stats.Passed)
			}
		}
	}
	if !found {
		t.Fatal("expected small order progress")
	}
}

func TestRunIsReproducibleForSeed(t *testing.T) {
	opts := simrun.Options{Ticks: 2000, Seed: 7}
	first := mustRun(t, context.Background(), opts)
	second := mustRun(t, context.Background(), opts)

	if len(first.Machines) != 2 || len(second.Machines) != 2 {
		t.Fatalf("expected both default machines")
	}
	for i := range first.Machines {
		a, b := first.Machines[i], second.Machines[i]
		if a.Stats != b.Stats {
			t.Fatalf("machine %s stats differ: %+v vs %+v", a.Name, a.Stats, b.Stats)
		}
		if len(a.Feed) != len(b.Feed) {
			t.Fatalf("machine %s feed length differs", a.Name)
		}
		for j := range a.Feed {
			if *a.Feed[j].MeasuredWeight != *b.Feed[j].MeasuredWeight {
				t.Fatalf("machine %s feed entry %d differs", a.Name, j)
			}
		}
	}
	if first.RunID == second.RunID {
		t.Fatal("expected distinct run IDs")
	}
}

func TestRunRefusesConcurrentRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	holder := flock.New(cfg.LockPath())
	ok, err := holder.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer holder.Unlock()

	if _, err := simrun.Run(context.Background(), cfg, simrun.Options{Ticks: 10}); !errors.Is(err, simrun.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestRunRejectsUnknownTargets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := simrun.Run(context.Background(), cfg, simrun.Options{Machines: []string{"Z"}}); !errors.Is(err, line.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown machine, got %v", err)
	}
	swap, _ := simrun.ParseSwap("10=medium")
	if _, err := simrun.Run(context.Background(), cfg, simrun.Options{Actions: []simrun.Action{swap}}); !errors.Is(err, line.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown profile, got %v", err)
	}
	pause, _ := simrun.ParsePause("Q:10")
	if _, err := simrun.Run(context.Background(), cfg, simrun.Options{Actions: []simrun.Action{pause}}); !errors.Is(err, simrun.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction for unknown machine, got %v", err)
	}
}

func TestRunSafeSwapDrainsBeforeNewProfile(t *testing.T) {
	swap, err := simrun.ParseSwap("400=large")
	if err != nil {
		t.Fatalf("ParseSwap: %v", err)
	}
	events := &eventLog{}
	res := mustRun(t, context.Background(), simrun.Options{
		Ticks:   3600,
		Actions: []simrun.Action{swap},
		Sinks:   []line.Sink{events},
	}, testsupport.WithMachines("small"))

	m := res.Machines[0]
	if m.Profile != "large" || m.SpawnInterval != 540 {
		t.Fatalf("unexpected final profile %q interval %d", m.Profile, m.SpawnInterval)
	}
	if len(m.Swaps) != 1 || !m.Swaps[0].Drained {
		t.Fatalf("unexpected swaps: %+v", m.Swaps)
	}

	seenLarge := false
	for _, evt := range events.snapshot() {
		switch evt.Profile {
		case "large":
			seenLarge = true
		case "small":
			if seenLarge {
				t.Fatalf("small item %d reported after a large item entered the line", evt.ItemID)
			}
		}
	}
	if !seenLarge {
		t.Fatal("expected large items after the swap")
	}
	if len(res.Summary) != 2 || res.Summary[0].Profile != "large" || res.Summary[1].Profile != "small" {
		t.Fatalf("expected summary rows for both profiles, got %+v", res.Summary)
	}
}

func TestRunImmediateSwapKeepsInFlightProfile(t *testing.T) {
	swap, _ := simrun.ParseSwap("200=large")
	events := &eventLog{}
	res := mustRun(t, context.Background(), simrun.Options{
		Ticks:    1500,
		SwapMode: simrun.SwapImmediate,
		Actions:  []simrun.Action{swap},
		Sinks:    []line.Sink{events},
	}, testsupport.WithMachines("small"))

	if res.Machines[0].Profile != "large" {
		t.Fatalf("profile = %q", res.Machines[0].Profile)
	}
	var firstVerdict *line.Event
	for _, evt := range events.snapshot() {
		if evt.Kind == line.EventVerdict {
			firstVerdict = &evt
			break
		}
	}
	if firstVerdict == nil || firstVerdict.ItemID != 1 || firstVerdict.Profile != "small" {
		t.Fatalf("item bagged before the swap should keep its profile, got %+v", firstVerdict)
	}
}

func TestRunPauseAndResume(t *testing.T) {
	pause, _ := simrun.ParsePause("0")
	res := mustRun(t, context.Background(), simrun.Options{
		Ticks:   3600,
		Actions: []simrun.Action{pause},
	}, testsupport.WithMachines("small"))
	if res.Machines[0].Stats.Produced != 0 {
		t.Fatalf("paused line produced %d items", res.Machines[0].Stats.Produced)
	}

	resume, _ := simrun.ParseResume("1000")
	res = mustRun(t, context.Background(), simrun.Options{
		Ticks:   3600,
		Actions: []simrun.Action{pause, resume},
	}, testsupport.WithMachines("small"))
	// The counter kept running while paused, so the first item leaves on the
	// resume tick and then every 181 ticks.
	if got := res.Machines[0].Stats.Produced; got != 15 {
		t.Fatalf("produced = %d, want 15", got)
	}
}

func TestRunSpeedScalesThroughput(t *testing.T) {
	speed, _ := simrun.ParseSpeed("2")
	res := mustRun(t, context.Background(), simrun.Options{
		Ticks:   1000,
		Actions: []simrun.Action{speed},
	}, testsupport.WithMachines("small"))
	// Threshold halves to 90 ticks, so an item leaves every 91 ticks.
	if got := res.Machines[0].Stats.Produced; got != 10 {
		t.Fatalf("produced = %d, want 10", got)
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := line.SinkFunc(func(evt line.Event) {
		if evt.Kind == line.EventVerdict {
			cancel()
		}
	})
	res := mustRun(t, ctx, simrun.Options{
		Ticks: 3600,
		Sinks: []line.Sink{stop},
	}, testsupport.WithMachines("small"))

	if !res.Interrupted {
		t.Fatal("expected interrupted run")
	}
	if ticks := res.Machines[0].Stats.Ticks; ticks >= 3600 {
		t.Fatalf("expected early stop, ran %d ticks", ticks)
	}
	if len(res.Summary) != 1 || res.Summary[0].Weighed != 1 {
		t.Fatalf("expected the single verdict in the journal, got %+v", res.Summary)
	}
}

func TestRunRealtimePacesTicks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMachines("small"))
	cfg.Line.TickRate = 1000
	res, err := simrun.Run(context.Background(), cfg, simrun.Options{Ticks: 25, Realtime: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Machines[0].Stats.Ticks != 25 {
		t.Fatalf("ticks = %d", res.Machines[0].Stats.Ticks)
	}
	if res.Elapsed < 20*time.Millisecond {
		t.Fatalf("realtime run finished too fast: %v", res.Elapsed)
	}
}

func TestRunFollowsEachMachineFeedAndListsRejects(t *testing.T) {
	var (
		mu       sync.Mutex
		followed = map[string][]feed.Entry{}
	)
	follow := func(ctx context.Context, machine string, hub *feed.Hub) {
		var since uint64
		for {
			entries, next, err := hub.Fetch(ctx, since, true)
			mu.Lock()
			followed[machine] = append(followed[machine], entries...)
			mu.Unlock()
			since = next
			if err != nil {
				break
			}
		}
		entries, _, _ := hub.Fetch(context.Background(), since, false)
		mu.Lock()
		followed[machine] = append(followed[machine], entries...)
		mu.Unlock()
	}

	res := mustRun(t, context.Background(), simrun.Options{Ticks: 3600, Follow: follow})

	mu.Lock()
	defer mu.Unlock()
	if len(followed) != len(res.Machines) {
		t.Fatalf("followed %d machines, ran %d", len(followed), len(res.Machines))
	}
	for _, m := range res.Machines {
		got := followed[m.Name]
		if len(got) == 0 || len(m.Feed) == 0 {
			t.Fatalf("machine %s: followed %d entries, feed %d", m.Name, len(got), len(m.Feed))
		}
		for i, e := range got {
			if e.Line != m.Name {
				t.Fatalf("machine %s followed entry from %s", m.Name, e.Line)
			}
			if i > 0 && e.Sequence <= got[i-1].Sequence {
				t.Fatalf("machine %s: entry %d repeated or out of order", m.Name, e.Sequence)
			}
		}
		if last := got[len(got)-1]; last.ItemID != m.Feed[len(m.Feed)-1].ItemID {
			t.Fatalf("machine %s: follower stopped at item %d before the last verdict", m.Name, last.ItemID)
		}

		want := min(5, m.Stats.Rejected())
		if len(m.Rejects) != want {
			t.Fatalf("machine %s: %d rejects listed, want %d", m.Name, len(m.Rejects), want)
		}
		for i, e := range m.Rejects {
			if e.Verdict != line.VerdictRejected || e.Line != m.Name {
				t.Fatalf("machine %s: unexpected reject entry %+v", m.Name, e)
			}
			if i > 0 && e.ItemID >= m.Rejects[i-1].ItemID {
				t.Fatalf("machine %s: rejects not newest first", m.Name)
			}
		}
	}
}
