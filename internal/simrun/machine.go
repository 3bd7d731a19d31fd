package simrun

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"checkweigher/internal/config"
	"checkweigher/internal/feed"
	"checkweigher/internal/line"
	"checkweigher/internal/logging"
)

type machineOptions struct {
	seed     uint64
	start    time.Time
	realtime bool
	mode     SwapMode
	actions  []Action
	sinks    line.Sinks
	logger   *slog.Logger
}

// machine drives one controller. Its tick loop runs on a single goroutine;
// safe swaps wait for the drain on a second one.
type machine struct {
	cfg      *config.Config
	name     string
	ctrl     *line.Controller
	hub      *feed.Hub
	logger   *slog.Logger
	interval time.Duration
	start    time.Time
	realtime bool
	mode     SwapMode
	actions  []Action

	speed float64
	tick  atomic.Int64

	swapWG   sync.WaitGroup
	swapDone chan struct{} // closed when the pending safe swap returns

	mu    sync.Mutex
	swaps []line.SwapResult
}

func newMachine(cfg *config.Config, mc config.Machine, opts machineOptions) (*machine, error) {
	profile, err := Profile(cfg, mc.Profile)
	if err != nil {
		return nil, err
	}
	m := &machine{
		cfg:      cfg,
		name:     mc.Name,
		interval: cfg.TickInterval(),
		start:    opts.start,
		realtime: opts.realtime,
		mode:     opts.mode,
		actions:  opts.actions,
		speed:    line.ClampSpeed(mc.Speed),
	}
	m.logger = logging.NewComponentLogger(opts.logger, "simrun").With(logging.String(logging.FieldLine, mc.Name))
	m.hub = feed.NewHub(cfg.Feed.Capacity, feed.WithLifespan(cfg.FeedLifespan()), feed.WithClock(m.now))

	sinks := append(line.Sinks{m.hub}, opts.sinks...)
	ctrl, err := line.NewController(Settings(cfg, mc.Name), profile,
		line.WithSource(line.NewSource(opts.seed)),
		line.WithSink(sinks),
		line.WithLogger(opts.logger),
		line.WithClock(m.now),
	)
	if err != nil {
		return nil, err
	}
	m.ctrl = ctrl
	return m, nil
}

// now is the machine clock: wall time in realtime mode, otherwise the run
// start plus one tick interval per completed tick.
func (m *machine) now() time.Time {
	if m.realtime {
		return time.Now()
	}
	return m.start.Add(time.Duration(m.tick.Load()) * m.interval)
}

func (m *machine) run(ctx context.Context, ticks int) {
	var tickC <-chan time.Time
	if m.realtime {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tickC = ticker.C
	}
	swapCtx, cancelSwap := context.WithCancel(ctx)
	defer cancelSwap()

	next := 0
	for tick := 1; tick <= ticks; tick++ {
		if tickC != nil {
			select {
			case <-ctx.Done():
			case <-tickC:
			}
		}
		if ctx.Err() != nil {
			break
		}
		for next < len(m.actions) && m.actions[next].Tick <= tick {
			m.apply(swapCtx, m.actions[next])
			next++
		}
		m.tick.Store(int64(tick))
		m.ctrl.Tick(m.speed * m.cfg.Line.SpeedScale)

		// In fast mode the belt outruns the drain poll; hold the next tick
		// until the swap has switched so runs stay reproducible.
		if !m.realtime && m.swapDone != nil && m.ctrl.Drained() {
			<-m.swapDone
			m.swapDone = nil
		}
	}
	if m.ctrl.Swapping() && !m.ctrl.Drained() {
		cancelSwap()
	}
	m.swapWG.Wait()
}

func (m *machine) apply(ctx context.Context, a Action) {
	switch a.Kind {
	case ActionPause:
		m.ctrl.Pause()
		m.logger.Info("bagging paused", logging.String(logging.FieldEventType, "line_paused"), logging.Int("tick", a.Tick))
	case ActionResume:
		m.ctrl.Resume()
		m.logger.Info("bagging resumed", logging.String(logging.FieldEventType, "line_resumed"), logging.Int("tick", a.Tick))
	case ActionSpeed:
		m.speed = line.ClampSpeed(a.Speed)
		m.logger.Info("line speed changed",
			logging.String(logging.FieldEventType, "line_speed_changed"),
			logging.Int("tick", a.Tick),
			logging.Float64("speed", m.speed),
		)
	case ActionSwap:
		m.swap(ctx, a)
	}
}

func (m *machine) swap(ctx context.Context, a Action) {
	p, err := Profile(m.cfg, a.Profile)
	if err != nil {
		m.warnSwap(a, err)
		return
	}
	if m.mode == SwapImmediate {
		if err := m.ctrl.SwitchProfile(p); err != nil {
			m.warnSwap(a, err)
			return
		}
		m.recordSwap(line.SwapResult{Profile: p.Name, Drained: m.ctrl.Drained()})
		return
	}
	if m.swapPending() || m.ctrl.Swapping() {
		m.warnSwap(a, line.ErrSwapInProgress)
		return
	}

	// Stop bagging before the drain goroutine is scheduled so no item slips
	// in under the old profile.
	m.ctrl.Pause()
	done := make(chan struct{})
	m.swapDone = done
	m.swapWG.Add(1)
	go func() {
		defer m.swapWG.Done()
		defer close(done)
		res, err := m.ctrl.SwapProfileSafely(ctx, p)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				m.warnSwap(a, err)
			}
			return
		}
		m.recordSwap(res)
	}()
}

// swapPending reports whether a safe swap launched by this machine is still
// waiting to switch.
func (m *machine) swapPending() bool {
	if m.swapDone == nil {
		return false
	}
	select {
	case <-m.swapDone:
		m.swapDone = nil
		return false
	default:
		return true
	}
}

func (m *machine) recordSwap(res line.SwapResult) {
	m.mu.Lock()
	m.swaps = append(m.swaps, res)
	m.mu.Unlock()
	m.logger.Info("profile swap complete",
		logging.String(logging.FieldEventType, "profile_swap_completed"),
		logging.Profile(res.Profile),
		logging.Bool("drained", res.Drained),
		logging.Duration("waited", res.Waited),
	)
}

func (m *machine) warnSwap(a Action, err error) {
	logging.WarnWithContext(m.logger, "profile swap skipped", "profile_swap_skipped",
		logging.Profile(a.Profile),
		logging.Int("tick", a.Tick),
		logging.Error(err),
		logging.String(logging.FieldImpact, "the line keeps running the current profile"),
		logging.String(logging.FieldErrorHint, "check the profile definition or space out scheduled swaps"),
	)
}

func (m *machine) result() MachineResult {
	m.mu.Lock()
	swaps := append([]line.SwapResult(nil), m.swaps...)
	m.mu.Unlock()
	return MachineResult{
		Name:          m.name,
		Profile:       m.ctrl.Profile().Name,
		SpawnInterval: m.ctrl.SpawnInterval(),
		Stats:         m.ctrl.Stats(),
		Feed:          m.hub.Entries(),
		Items:         m.ctrl.Items(),
		Swaps:         swaps,
	}
}
