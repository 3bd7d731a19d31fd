package line

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"checkweigher/internal/logging"
)

var (
	// ErrSwapInProgress is returned when a safe swap is already waiting for the belt to drain.
	ErrSwapInProgress = errors.New("profile swap already in progress")
	// ErrUnknownItem is returned when an item ID is not on the belt.
	ErrUnknownItem = errors.New("item not on the belt")
)

// Settings fixes the belt geometry and drain behaviour of a line.
type Settings struct {
	Name           string
	InfeedPosition float64 // where new items appear
	ScanPosition   float64
	WeighPosition  float64
	DisposalBound  float64 // items beyond this are off the belt
	ExitDelayTicks int     // ticks a rejected item stays visible

	DrainPollInterval time.Duration
	DrainTimeout      time.Duration
}

// Validate checks the checkpoint ordering the pipeline relies on.
func (s Settings) Validate() error {
	if s.ScanPosition >= s.WeighPosition {
		return fmt.Errorf("%w: scan position %.1f must be before weigh position %.1f",
			ErrConfiguration, s.ScanPosition, s.WeighPosition)
	}
	if s.InfeedPosition > s.ScanPosition {
		return fmt.Errorf("%w: infeed position %.1f must not be past scan position %.1f",
			ErrConfiguration, s.InfeedPosition, s.ScanPosition)
	}
	if s.DisposalBound <= s.WeighPosition {
		return fmt.Errorf("%w: disposal bound %.1f must be past weigh position %.1f",
			ErrConfiguration, s.DisposalBound, s.WeighPosition)
	}
	return nil
}

// Stats tallies what a line has produced since it was created.
type Stats struct {
	Ticks               uint64 `json:"ticks"`
	Produced            int    `json:"produced"`
	Flagged             int    `json:"flagged"`
	Passed              int    `json:"passed"`
	RejectedContaminant int    `json:"rejected_contaminant"`
	RejectedRange       int    `json:"rejected_range"`
	RejectedTolerance   int    `json:"rejected_tolerance"`
	Discarded           int    `json:"discarded"`
	Disposed            int    `json:"disposed"`
	Active              int    `json:"active"`
}

// Rejected sums every rejection reason.
func (s Stats) Rejected() int {
	return s.RejectedContaminant + s.RejectedRange + s.RejectedTolerance
}

// SwapResult describes how a safe profile swap completed.
type SwapResult struct {
	Profile string        `json:"profile"`
	Drained bool          `json:"drained"` // false when the drain wait timed out
	Waited  time.Duration `json:"waited_ns"`
}

// Option configures optional Controller behavior.
type Option func(*Controller)

// WithSource sets the random source shared by item creation and the load cell.
func WithSource(src Source) Option {
	return func(c *Controller) { c.rng = src }
}

// WithSink sets where checkpoint events go.
func WithSink(sink Sink) Option {
	return func(c *Controller) { c.sink = sink }
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithClock sets the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the active items, the profile and the scheduler of one line.
// All methods are safe for concurrent use; Tick and the safe-swap drain loop
// serialise on the same mutex.
type Controller struct {
	settings Settings
	logger   *slog.Logger
	rng      Source
	sink     Sink
	now      func() time.Time

	mu        sync.Mutex
	pipeline  *Pipeline
	scheduler *Scheduler
	profile   Profile
	items     []*Item
	nextID    int64
	swapping  bool
	// resumeAfterSwap is the operator's pause state requested while a safe
	// swap held the scheduler.
	resumeAfterSwap bool
	stats           Stats
}

// NewController validates settings and the initial profile and returns a
// running line with an empty belt.
func NewController(settings Settings, profile Profile, opts ...Option) (*Controller, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if settings.DrainPollInterval <= 0 {
		settings.DrainPollInterval = 250 * time.Millisecond
	}
	if settings.DrainTimeout <= 0 {
		settings.DrainTimeout = 30 * time.Second
	}
	c := &Controller{settings: settings, profile: profile}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = NewSource(uint64(time.Now().UnixNano()))
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.logger = logging.NewComponentLogger(c.logger, "line").With(logging.String(logging.FieldLine, settings.Name))
	c.sink = guardSink(c.sink, c.logger)
	c.pipeline = NewPipeline(settings.Name, c.rng, c.sink, c.now)
	c.scheduler = NewScheduler(profile.SpawnIntervalTicks(), c.spawnLocked)
	return c, nil
}

// guardSink isolates each sink so a panicking consumer cannot abort the tick
// that published to it or starve the sinks after it.
func guardSink(sink Sink, logger *slog.Logger) Sink {
	switch s := sink.(type) {
	case nil:
		return nil
	case Sinks:
		guarded := make(Sinks, 0, len(s))
		for _, inner := range s {
			if inner != nil {
				guarded = append(guarded, guardSink(inner, logger))
			}
		}
		return guarded
	}
	return SinkFunc(func(evt Event) {
		defer func() {
			if r := recover(); r != nil {
				logging.ErrorWithContext(logger, "event sink failed", "sink_panic",
					logging.Any("panic", r),
					logging.ItemID(evt.ItemID),
					logging.String("event_kind", string(evt.Kind)),
					logging.String(logging.FieldErrorHint, "the event was dropped for this sink only"),
				)
			}
		}()
		sink.Publish(evt)
	})
}

// Name returns the line name.
func (c *Controller) Name() string { return c.settings.Name }

// Settings returns the belt geometry.
func (c *Controller) Settings() Settings { return c.settings }

// spawnLocked is the scheduler's factory; it runs inside Tick with mu held.
func (c *Controller) spawnLocked() *Item {
	c.nextID++
	item := NewItem(c.nextID, c.profile, c.rng)
	item.position = c.settings.InfeedPosition
	return item
}

// Tick advances the line by one frame at the given speed. It never panics:
// a failure inside the tick is logged and the rest of the tick is skipped.
func (c *Controller) Tick(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(c.logger, "tick aborted", "tick_panic",
				logging.Any("panic", r),
				logging.Uint64("tick", c.stats.Ticks),
				logging.String(logging.FieldErrorHint, "report the item state logged above"),
			)
		}
	}()

	c.stats.Ticks++
	if item := c.scheduler.Tick(speed); item != nil {
		c.items = append(c.items, item)
		c.stats.Produced++
		c.logger.Debug("item bagged",
			logging.ItemID(item.id),
			logging.Profile(item.profile.Name),
			logging.Weight("simulated_weight", item.simulatedWeight),
		)
	}

	for _, item := range c.items {
		if item.verdict.Terminal() {
			item.ticksSinceVerdict++
		}
		c.pipeline.Advance(item, speed)
		if !item.contaminantChecked && item.position >= c.settings.ScanPosition {
			c.pipeline.ScanCheckpoint(item)
			if item.contaminantFlagged {
				c.stats.Flagged++
			}
		}
		if !item.measured && item.position >= c.settings.WeighPosition {
			c.pipeline.WeighCheckpoint(item)
			c.recordVerdictLocked(item)
		}
	}
	c.disposeLocked()
}

func (c *Controller) recordVerdictLocked(item *Item) {
	switch item.rejectReason {
	case ReasonContaminant:
		c.stats.RejectedContaminant++
	case ReasonRange:
		c.stats.RejectedRange++
	case ReasonTolerance:
		c.stats.RejectedTolerance++
	default:
		if item.verdict == VerdictPassed {
			c.stats.Passed++
		}
	}
	c.logger.Debug("item weighed",
		logging.ItemID(item.id),
		logging.Weight("measured_weight", item.measuredWeight),
		logging.Verdict(string(item.verdict), string(item.rejectReason)),
	)
}

// disposeLocked drops items that have left the belt: past the disposal
// bound, pushed back behind the infeed, or rejected long enough ago.
func (c *Controller) disposeLocked() {
	kept := c.items[:0]
	for _, item := range c.items {
		if c.offBeltLocked(item) {
			c.stats.Disposed++
			continue
		}
		kept = append(kept, item)
	}
	for i := len(kept); i < len(c.items); i++ {
		c.items[i] = nil
	}
	c.items = kept
}

func (c *Controller) offBeltLocked(item *Item) bool {
	if item.position > c.settings.DisposalBound {
		return true
	}
	if !item.measured {
		return false
	}
	if item.position < c.settings.InfeedPosition {
		return true
	}
	return item.verdict == VerdictRejected && item.ticksSinceVerdict >= c.settings.ExitDelayTicks
}

// SwitchProfile adopts p for items created from now on. In-flight items keep
// the profile they were created with. An invalid profile leaves the current
// one active.
func (c *Controller) SwitchProfile(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switchProfileLocked(p)
	return nil
}

func (c *Controller) switchProfileLocked(p Profile) {
	previous := c.profile.Name
	c.profile = p
	c.scheduler.SetInterval(p.SpawnIntervalTicks())
	c.logger.Info("profile switched",
		logging.String(logging.FieldEventType, "profile_switched"),
		logging.String("previous_profile", previous),
		logging.Profile(p.Name),
		logging.Int("spawn_interval_ticks", c.scheduler.Interval()),
	)
}

// SwapProfileSafely pauses bagging, waits until no unweighed item is still
// upstream of the weigh checkpoint, then switches to p, resets the spawn
// counter and resumes. The wait is bounded by the drain timeout; on timeout
// the swap proceeds anyway and a warning is logged. Cancelling ctx resumes
// bagging without switching. Call it from its own goroutine: it blocks while
// the tick driver keeps running.
func (c *Controller) SwapProfileSafely(ctx context.Context, p Profile) (SwapResult, error) {
	if err := p.Validate(); err != nil {
		return SwapResult{}, err
	}
	c.mu.Lock()
	if c.swapping {
		c.mu.Unlock()
		return SwapResult{}, ErrSwapInProgress
	}
	c.swapping = true
	c.resumeAfterSwap = true
	c.scheduler.Pause()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.swapping = false
		c.mu.Unlock()
	}()

	start := time.Now()
	drained, err := c.waitForDrain(ctx)
	waited := time.Since(start)
	if err != nil {
		c.mu.Lock()
		c.releaseSchedulerLocked()
		c.mu.Unlock()
		return SwapResult{Profile: c.Profile().Name, Waited: waited}, err
	}
	if !drained {
		logging.WarnWithContext(c.logger, "belt did not drain before profile swap",
			"profile_swap_timeout",
			logging.Profile(p.Name),
			logging.Duration("waited", waited),
			logging.String(logging.FieldImpact, "items created under the previous profile are still upstream of the checkweigher"),
			logging.String(logging.FieldErrorHint, "raise safe_swap.timeout_seconds or lower the line speed before swapping"),
		)
	}

	c.mu.Lock()
	c.switchProfileLocked(p)
	c.scheduler.Reset()
	c.releaseSchedulerLocked()
	c.mu.Unlock()
	return SwapResult{Profile: p.Name, Drained: drained, Waited: waited}, nil
}

// releaseSchedulerLocked ends the swap's hold on bagging, honouring a pause
// the operator asked for while the belt drained.
func (c *Controller) releaseSchedulerLocked() {
	if c.resumeAfterSwap {
		c.scheduler.Resume()
	}
}

// waitForDrain polls the drain condition until it holds, the timeout
// expires (false, nil), or ctx ends.
func (c *Controller) waitForDrain(ctx context.Context) (bool, error) {
	if c.Drained() {
		return true, nil
	}
	ticker := time.NewTicker(c.settings.DrainPollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(c.settings.DrainTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timeout.C:
			return c.Drained(), nil
		case <-ticker.C:
			if c.Drained() {
				return true, nil
			}
		}
	}
}

// Drained reports whether every item upstream of the weigh checkpoint has
// already been measured.
func (c *Controller) Drained() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if !item.measured && item.position < c.settings.WeighPosition {
			return false
		}
	}
	return true
}

// Swapping reports whether a safe swap is waiting for the belt to drain.
func (c *Controller) Swapping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.swapping
}

// Pause stops bagging new items. Items on the belt keep moving. During a
// safe swap the line stays paused once the swap finishes.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.swapping {
		c.resumeAfterSwap = false
		return
	}
	c.scheduler.Pause()
}

// Resume restarts bagging. During a safe swap bagging stays held until the
// swap switches profiles, so no item is bagged under the old profile.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.swapping {
		c.resumeAfterSwap = true
		return
	}
	c.scheduler.Resume()
}

// Paused reports whether bagging is paused.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduler.Paused()
}

// Remove takes an item off the belt by hand. An item removed before weighing
// never gets a verdict; a discarded event records that it left unresolved.
func (c *Controller) Remove(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for idx, item := range c.items {
		if item.id != id {
			continue
		}
		c.items = append(c.items[:idx], c.items[idx+1:]...)
		if item.measured {
			c.stats.Disposed++
			return nil
		}
		c.stats.Discarded++
		evt := newEvent(c.now(), c.settings.Name, EventDiscarded, item)
		if c.sink != nil {
			c.sink.Publish(evt)
		}
		c.logger.Info("item removed before weighing",
			logging.ItemID(id),
			logging.String(logging.FieldEventType, "item_discarded"),
			logging.Bool("contaminant_flagged", item.contaminantFlagged),
		)
		return nil
	}
	return fmt.Errorf("remove item %d: %w", id, ErrUnknownItem)
}

// Profile returns the profile new items are created with.
func (c *Controller) Profile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// SpawnInterval returns the current bagging interval at speed 1.
func (c *Controller) SpawnInterval() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduler.Interval()
}

// Items returns snapshots of every item on the belt, infeed first.
func (c *Controller) Items() []ItemView {
	c.mu.Lock()
	defer c.mu.Unlock()
	views := make([]ItemView, 0, len(c.items))
	for _, item := range c.items {
		views = append(views, item.Snapshot())
	}
	return views
}

// Stats returns a copy of the line tallies.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Active = len(c.items)
	return stats
}
