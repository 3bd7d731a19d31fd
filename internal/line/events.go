package line

import "time"

// EventKind identifies what a checkpoint reported.
type EventKind string

const (
	EventScanClear   EventKind = "scan_clear"
	EventScanFlagged EventKind = "scan_flagged"
	EventVerdict     EventKind = "verdict"
	// EventDiscarded reports an item taken off the belt before it was weighed.
	EventDiscarded EventKind = "discarded"
)

// Event is published at most once per checkpoint per item.
type Event struct {
	Timestamp      time.Time     `json:"ts"`
	Line           string        `json:"line,omitempty"`
	Kind           EventKind     `json:"kind"`
	ItemID         int64         `json:"item_id"`
	Profile        string        `json:"profile,omitempty"`
	MeasuredWeight *float64      `json:"measured_weight,omitempty"`
	Verdict        Verdict       `json:"verdict"`
	Contaminant    Contaminant   `json:"contaminant"`
	RejectReason   RejectReason  `json:"reject_reason"`
	ExitDirection  ExitDirection `json:"exit_direction,omitempty"`
}

// Sink consumes pipeline events. Publish runs inside a tick and must not block
// or call back into the controller.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish calls f.
func (f SinkFunc) Publish(evt Event) { f(evt) }

// Sinks fans an event out to every non-nil sink in order.
type Sinks []Sink

// Publish forwards evt to each sink.
func (s Sinks) Publish(evt Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Publish(evt)
		}
	}
}

func newEvent(now time.Time, lineName string, kind EventKind, item *Item) Event {
	evt := Event{
		Timestamp:     now,
		Line:          lineName,
		Kind:          kind,
		ItemID:        item.id,
		Profile:       item.profile.Name,
		Verdict:       item.verdict,
		Contaminant:   item.contaminant,
		RejectReason:  item.rejectReason,
		ExitDirection: item.exitDirection,
	}
	if item.measured {
		w := item.measuredWeight
		evt.MeasuredWeight = &w
	}
	return evt
}
