package order

import (
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"checkweigher/internal/config"
	"checkweigher/internal/line"
)

// Progress is a point-in-time view of a production order.
type Progress struct {
	Profile      string        `json:"profile"`
	Lot          string        `json:"lot"`
	Silo         string        `json:"silo"`
	Lines        string        `json:"lines"`
	ProductType  string        `json:"product_type"`
	Grade        string        `json:"grade"`
	PackageKg    float64       `json:"package_kg"`
	TotalBags    int           `json:"total_bags"`
	ProducedBags int           `json:"produced_bags"`
	ProducedKg   float64       `json:"produced_kg"`
	RemainingKg  float64       `json:"remaining_kg"`
	Fraction     float64       `json:"fraction"` // produced share of total bags, capped at 1
	Remaining    time.Duration `json:"remaining_ns"`
	ETA          time.Time     `json:"eta"`
}

// Complete reports whether every bag of the order has been produced.
func (p Progress) Complete() bool { return p.TotalBags > 0 && p.ProducedBags >= p.TotalBags }

// Compute derives order progress from the number of accepted bags. The ETA
// assumes the bagging machine keeps running at rateKgPerHour.
func Compute(profile string, o config.Order, produced int, rateKgPerHour float64, now time.Time) Progress {
	totalKg := o.QuantityTonnes * 1000
	p := Progress{
		Profile:      profile,
		Lot:          o.Lot,
		Silo:         o.Silo,
		Lines:        strings.Join(o.Lines, "/"),
		ProductType:  o.ProductType,
		Grade:        o.Grade,
		PackageKg:    o.PackageKg,
		ProducedBags: produced,
	}
	if o.PackageKg > 0 {
		p.TotalBags = int(math.Floor(totalKg / o.PackageKg))
	}
	p.ProducedKg = float64(produced) * o.PackageKg
	p.RemainingKg = math.Max(0, totalKg-p.ProducedKg)
	if p.TotalBags > 0 {
		p.Fraction = math.Min(1, float64(produced)/float64(p.TotalBags))
	}
	if rateKgPerHour > 0 {
		hours := p.RemainingKg / rateKgPerHour
		p.Remaining = time.Duration(hours * float64(time.Hour))
	}
	p.ETA = now.Add(p.Remaining)
	return p
}

// Tracker counts accepted bags for one order. It implements line.Sink.
type Tracker struct {
	profile string
	order   config.Order
	rate    float64

	mu       sync.Mutex
	produced int
}

// NewTracker follows the order filled by profile. Only lines listed on the
// order count; an order with no lines accepts every line.
func NewTracker(profile string, o config.Order, rateKgPerHour float64) *Tracker {
	return &Tracker{profile: profile, order: o, rate: rateKgPerHour}
}

// Publish counts passed verdicts for the tracked profile.
func (t *Tracker) Publish(evt line.Event) {
	if evt.Kind != line.EventVerdict || evt.Verdict != line.VerdictPassed || evt.Profile != t.profile {
		return
	}
	if len(t.order.Lines) > 0 && !slices.Contains(t.order.Lines, evt.Line) {
		return
	}
	t.mu.Lock()
	t.produced++
	t.mu.Unlock()
}

// Progress reports the order state at now.
func (t *Tracker) Progress(now time.Time) Progress {
	t.mu.Lock()
	produced := t.produced
	t.mu.Unlock()
	return Compute(t.profile, t.order, produced, t.rate, now)
}
