package feed

import (
	"context"
	"sync"
	"time"

	"checkweigher/internal/line"
)

const (
	// DefaultCapacity is how many verdicts the operator panel shows.
	DefaultCapacity = 9
	// DefaultLifespan is how long a verdict stays on the panel.
	DefaultLifespan = 60 * time.Second
)

// Entry is one verdict as shown in the feed.
type Entry struct {
	Sequence       uint64            `json:"seq"`
	Timestamp      time.Time         `json:"ts"`
	Line           string            `json:"line"`
	ItemID         int64             `json:"item_id"`
	Profile        string            `json:"profile"`
	MeasuredWeight *float64          `json:"measured_weight,omitempty"`
	Verdict        line.Verdict      `json:"verdict"`
	Contaminant    line.Contaminant  `json:"contaminant"`
	RejectReason   line.RejectReason `json:"reject_reason"`
}

// Passed reports whether the entry is an accepted item.
func (e Entry) Passed() bool { return e.Verdict == line.VerdictPassed }

// Option configures a Hub.
type Option func(*Hub)

// WithLifespan sets how long entries stay visible. Zero disables expiry.
func WithLifespan(d time.Duration) Option {
	return func(h *Hub) { h.lifespan = d }
}

// WithClock sets the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// Hub keeps the most recent verdicts, evicting the oldest first, and wakes
// followers when new ones arrive. It implements line.Sink.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	lifespan time.Duration
	now      func() time.Time
	buffer   []Entry
	nextSeq  uint64
}

// NewHub constructs a bounded verdict feed.
func NewHub(capacity int, opts ...Option) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	h := &Hub{capacity: capacity, lifespan: DefaultLifespan, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish records verdict events. Scan and discard events are ignored.
func (h *Hub) Publish(evt line.Event) {
	if h == nil || evt.Kind != line.EventVerdict {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	entry := Entry{
		Sequence:       h.nextSeq,
		Timestamp:      evt.Timestamp,
		Line:           evt.Line,
		ItemID:         evt.ItemID,
		Profile:        evt.Profile,
		MeasuredWeight: evt.MeasuredWeight,
		Verdict:        evt.Verdict,
		Contaminant:    evt.Contaminant,
		RejectReason:   evt.RejectReason,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = h.now()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, entry)
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Entries returns the live entries, oldest first.
func (h *Hub) Entries() []Entry {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expireLocked()
	out := make([]Entry, len(h.buffer))
	copy(out, h.buffer)
	return out
}

// Fetch returns live entries with sequence greater than since. When wait is
// true, Fetch blocks until at least one entry is available or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, wait bool) ([]Entry, uint64, error) {
	if h == nil {
		return nil, since, nil
	}

	cancelWait := make(chan struct{})
	if wait && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		h.expireLocked()
		entries := h.sinceLocked(since)
		if len(entries) > 0 || !wait {
			return entries, h.nextSeq, ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil, h.nextSeq, err
		}
		h.cond.Wait()
		if err := ctx.Err(); err != nil {
			return nil, h.nextSeq, err
		}
	}
}

func (h *Hub) sinceLocked(since uint64) []Entry {
	for i, entry := range h.buffer {
		if entry.Sequence > since {
			out := make([]Entry, len(h.buffer)-i)
			copy(out, h.buffer[i:])
			return out
		}
	}
	return nil
}

func (h *Hub) expireLocked() {
	if h.lifespan <= 0 || len(h.buffer) == 0 {
		return
	}
	cutoff := h.now().Add(-h.lifespan)
	drop := 0
	for drop < len(h.buffer) && h.buffer[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		h.buffer = append(h.buffer[:0], h.buffer[drop:]...)
	}
}
