package line

import (
	"math"
	"time"
)

const (
	// rejectSpeedFactor is how much faster the reject gate moves an item.
	rejectSpeedFactor = 1.5
	// MinSpeed bounds the speed used as a divisor.
	MinSpeed = 0.1
)

// ClampSpeed turns arbitrary speed input into a usable non-negative value.
func ClampSpeed(speed float64) float64 {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed < 0 {
		return 0
	}
	return speed
}

// Pipeline advances items and evaluates the scan and weigh checkpoints.
// It holds no item state of its own.
type Pipeline struct {
	lineName string
	sensor   Source
	sink     Sink
	now      func() time.Time
}

// NewPipeline builds a pipeline. sensor supplies load-cell noise; sink may be nil.
func NewPipeline(lineName string, sensor Source, sink Sink, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{lineName: lineName, sensor: sensor, sink: sink, now: now}
}

// Advance moves item by speed. Rejected items leave toward their exit side.
func (p *Pipeline) Advance(item *Item, speed float64) {
	speed = ClampSpeed(speed)
	if item.verdict != VerdictRejected {
		item.position += speed
		return
	}
	switch item.exitDirection {
	case ExitBackward:
		item.position -= speed * rejectSpeedFactor
	case ExitForward:
		item.position += speed * rejectSpeedFactor
	default:
		item.position += speed * 0.5
	}
}

// ScanCheckpoint runs the contamination scanner once per item. It flags but
// never rejects; the weigh checkpoint acts on the flag.
func (p *Pipeline) ScanCheckpoint(item *Item) {
	if item.contaminantChecked {
		return
	}
	item.contaminantChecked = true
	kind := EventScanClear
	if item.contaminant.Present() {
		item.contaminantFlagged = true
		kind = EventScanFlagged
	}
	p.publish(newEvent(p.now(), p.lineName, kind, item))
}

// WeighCheckpoint takes the single measurement of an item and resolves its
// verdict. Rules apply in order and the first match wins: contaminant flag,
// explicit pass range, then tolerance around the final nominal.
func (p *Pipeline) WeighCheckpoint(item *Item) {
	if item.measured {
		return
	}
	profile := item.profile
	item.measuredWeight = item.simulatedWeight + uniform(p.sensor, profile.SensorAccuracy)
	item.measured = true
	item.verdict = VerdictWaiting

	reading := item.measuredWeight
	switch {
	case item.contaminantFlagged:
		item.reject(ReasonContaminant, ExitBackward)
	case reading < profile.RangeMin || reading > profile.RangeMax:
		item.reject(ReasonRange, ExitForward)
	case math.Abs(reading-profile.FinalNominal()) <= profile.GateTolerance()+toleranceEpsilon:
		item.verdict = VerdictPassed
	default:
		item.reject(ReasonTolerance, ExitForward)
	}
	p.publish(newEvent(p.now(), p.lineName, EventVerdict, item))
}

// toleranceEpsilon absorbs float rounding so a reading exactly on the
// tolerance boundary passes.
const toleranceEpsilon = 1e-9

func (i *Item) reject(reason RejectReason, dir ExitDirection) {
	i.verdict = VerdictRejected
	i.rejectReason = reason
	i.exitDirection = dir
}

func (p *Pipeline) publish(evt Event) {
	if p.sink != nil {
		p.sink.Publish(evt)
	}
}
