package simrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"checkweigher/internal/config"
	"checkweigher/internal/feed"
	"checkweigher/internal/journal"
	"checkweigher/internal/line"
	"checkweigher/internal/logging"
	"checkweigher/internal/order"
)

// ErrRunInProgress is returned when another run holds the state-directory lock.
var ErrRunInProgress = errors.New("another simulation run is in progress")

// Options configures a single run.
type Options struct {
	Ticks    int      // 0 uses simulation.ticks
	Realtime bool     // pace ticks at line.tick_rate
	Machines []string // empty runs every configured machine
	Seed     uint64   // 0 uses simulation.seed, then the clock
	SwapMode SwapMode
	Actions  []Action
	Logger   *slog.Logger
	// Sinks receive every event in addition to the feed, journal and orders.
	// They are called from the machine goroutines and must be safe for
	// concurrent use.
	Sinks []line.Sink
	// Follow, when set, runs once per machine on its own goroutine with that
	// machine's verdict feed. Its context ends when the last tick has run;
	// Run waits for every Follow call to return.
	Follow func(ctx context.Context, machine string, hub *feed.Hub)
}

// recentRejects is how many rejections each machine result carries.
const recentRejects = 5

// MachineResult is the end state of one machine.
type MachineResult struct {
	Name          string            `json:"name"`
	Profile       string            `json:"profile"`
	SpawnInterval int               `json:"spawn_interval_ticks"`
	Stats         line.Stats        `json:"stats"`
	Feed          []feed.Entry      `json:"feed"`
	Items         []line.ItemView   `json:"items"`
	Swaps         []line.SwapResult `json:"swaps,omitempty"`
	Rejects       []line.Event      `json:"rejects,omitempty"` // newest first
}

// Result collects everything a finished run reports.
type Result struct {
	RunID       string                `json:"run_id"`
	Seed        uint64                `json:"seed"`
	Ticks       int                   `json:"ticks"`
	StartedAt   time.Time             `json:"started_at"`
	Elapsed     time.Duration         `json:"elapsed_ns"` // simulated time in fast mode
	Interrupted bool                  `json:"interrupted"`
	Machines    []MachineResult       `json:"machines"`
	Summary     []journal.LineSummary `json:"summary"`
	Orders      []order.Progress      `json:"orders"`

	JournalWritten uint64 `json:"journal_written"`
	JournalDropped uint64 `json:"journal_dropped"`
}

// Run executes a simulation with cfg. Cancelling ctx stops every machine after
// its current tick; the partial result is still returned with Interrupted set.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	ticks := opts.Ticks
	if ticks <= 0 {
		ticks = cfg.Simulation.Ticks
	}
	selected, err := selectMachines(cfg, opts.Machines)
	if err != nil {
		return nil, err
	}
	if err := checkActions(cfg, selected, opts.Actions); err != nil {
		return nil, err
	}
	mode := opts.SwapMode
	if mode == "" {
		mode = SwapSafe
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, ErrRunInProgress
	}
	defer func() { _ = lock.Unlock() }()

	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Simulation.Seed
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	base := logging.WithContext(ctx, opts.Logger)
	logger := logging.NewComponentLogger(base, "simrun")

	j, err := journal.Open(ctx, journal.Options{RunID: runID, Logger: base})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	started := time.Now()
	names := make([]string, 0, len(selected))
	for _, m := range selected {
		names = append(names, m.Name)
	}
	if err := j.RecordRun(ctx, journal.Run{Seed: seed, StartedAt: started, Machines: names}); err != nil {
		return nil, err
	}

	trackers, err := orderTrackers(cfg)
	if err != nil {
		return nil, err
	}
	shared := line.Sinks{j}
	for _, tr := range trackers {
		shared = append(shared, tr)
	}
	shared = append(shared, opts.Sinks...)

	machines := make([]*machine, 0, len(selected))
	for i, mc := range selected {
		m, err := newMachine(cfg, mc, machineOptions{
			seed:     seed + uint64(i),
			start:    started,
			realtime: opts.Realtime,
			mode:     mode,
			actions:  forMachine(opts.Actions, mc.Name),
			sinks:    shared,
			logger:   base,
		})
		if err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}

	logger.Info("simulation started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Uint64("seed", seed),
		logging.Int("ticks", ticks),
		logging.Bool("realtime", opts.Realtime),
		logging.String("machines", strings.Join(names, ",")),
	)

	followCtx, stopFollow := context.WithCancel(ctx)
	defer stopFollow()
	var followers sync.WaitGroup
	if opts.Follow != nil {
		for _, m := range machines {
			followers.Add(1)
			go func() {
				defer followers.Done()
				opts.Follow(followCtx, m.name, m.hub)
			}()
		}
	}

	var wg sync.WaitGroup
	for _, m := range machines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.run(ctx, ticks)
		}()
	}
	wg.Wait()
	stopFollow()
	followers.Wait()
	j.Flush()

	res := &Result{
		RunID:       runID,
		Seed:        seed,
		Ticks:       ticks,
		StartedAt:   started,
		Interrupted: ctx.Err() != nil,
	}
	end := started
	// The run context may already be cancelled; the journal still has to load.
	queryCtx := context.WithoutCancel(ctx)
	for _, m := range machines {
		mr := m.result()
		rejects, err := j.RecentRejects(queryCtx, m.name, recentRejects)
		if err != nil {
			return res, fmt.Errorf("load rejects for %s: %w", m.name, err)
		}
		mr.Rejects = rejects
		res.Machines = append(res.Machines, mr)
		if now := m.now(); now.After(end) {
			end = now
		}
	}
	res.Elapsed = end.Sub(started)
	for _, name := range cfg.ProfileNames() {
		if tr, ok := trackers[name]; ok {
			res.Orders = append(res.Orders, tr.Progress(end))
		}
	}
	summary, err := j.Summary(queryCtx)
	if err != nil {
		return res, fmt.Errorf("summarize journal: %w", err)
	}
	res.Summary = summary
	res.JournalWritten, res.JournalDropped, _ = j.Stats()

	logger.Info("simulation finished",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.Bool("interrupted", res.Interrupted),
		logging.Duration("elapsed", res.Elapsed),
		logging.Uint64("journal_written", res.JournalWritten),
		logging.Uint64("journal_dropped", res.JournalDropped),
	)
	if res.JournalDropped > 0 {
		logging.WarnWithContext(logger, "journal dropped events", "journal_events_dropped",
			logging.Uint64("dropped", res.JournalDropped),
			logging.String(logging.FieldImpact, "summary counts are lower than the line tallies"),
			logging.String(logging.FieldErrorHint, "shorten the run or lower the machine count"),
		)
	}
	return res, nil
}

func selectMachines(cfg *config.Config, names []string) ([]config.Machine, error) {
	if len(names) == 0 {
		if len(cfg.Machines) == 0 {
			return nil, fmt.Errorf("%w: no machines configured", line.ErrConfiguration)
		}
		return cfg.Machines, nil
	}
	out := make([]config.Machine, 0, len(names))
	for _, name := range names {
		m, ok := cfg.Machine(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown machine %q", line.ErrConfiguration, name)
		}
		out = append(out, m)
	}
	return out, nil
}

func checkActions(cfg *config.Config, selected []config.Machine, actions []Action) error {
	for _, a := range actions {
		if a.Machine != "" && !containsMachine(selected, a.Machine) {
			return fmt.Errorf("%w: %s at tick %d targets machine %q which is not running",
				ErrInvalidAction, a.Kind, a.Tick, a.Machine)
		}
		if a.Kind == ActionSwap {
			if _, err := Profile(cfg, a.Profile); err != nil {
				return fmt.Errorf("swap at tick %d: %w", a.Tick, err)
			}
		}
	}
	return nil
}

func containsMachine(machines []config.Machine, name string) bool {
	for _, m := range machines {
		if strings.EqualFold(m.Name, name) {
			return true
		}
	}
	return false
}

// orderTrackers follows every configured order, keyed by profile.
func orderTrackers(cfg *config.Config) (map[string]*order.Tracker, error) {
	trackers := make(map[string]*order.Tracker, len(cfg.Orders))
	for name, o := range cfg.Orders {
		p, err := Profile(cfg, name)
		if err != nil {
			return nil, fmt.Errorf("order %q: %w", name, err)
		}
		trackers[name] = order.NewTracker(name, o, p.ThroughputKgPerHour)
	}
	return trackers, nil
}
