package line

// Contaminant is the foreign-body class carried by an item.
type Contaminant string

const (
	ContaminantNone       Contaminant = "none"
	ContaminantFerrous    Contaminant = "ferrous"
	ContaminantNonFerrous Contaminant = "non_ferrous"
	ContaminantStainless  Contaminant = "stainless"
)

// contaminantTable is the cumulative draw distribution; anything above the
// last bound is clean.
var contaminantTable = []struct {
	upper float64
	class Contaminant
}{
	{0.10, ContaminantFerrous},
	{0.15, ContaminantNonFerrous},
	{0.18, ContaminantStainless},
}

var contaminantSizeMM = map[Contaminant]float64{
	ContaminantFerrous:    2.5,
	ContaminantNonFerrous: 3,
	ContaminantStainless:  3,
}

// SizeMM reports the simulated particle size for the class.
func (c Contaminant) SizeMM() float64 {
	return contaminantSizeMM[c]
}

// Present reports whether the class is an actual contaminant.
func (c Contaminant) Present() bool {
	return c != "" && c != ContaminantNone
}

// DrawContaminant maps a uniform value in [0, 1) onto a contaminant class.
func DrawContaminant(r float64) Contaminant {
	for _, entry := range contaminantTable {
		if r < entry.upper {
			return entry.class
		}
	}
	return ContaminantNone
}

// Verdict is the inspection state of an item.
type Verdict string

const (
	VerdictInTransit Verdict = "in_transit"
	VerdictWaiting   Verdict = "waiting"
	VerdictPassed    Verdict = "passed"
	VerdictRejected  Verdict = "rejected"
)

// Terminal reports whether the verdict is final.
func (v Verdict) Terminal() bool {
	return v == VerdictPassed || v == VerdictRejected
}

// RejectReason explains a rejection.
type RejectReason string

const (
	ReasonNone        RejectReason = "none"
	ReasonContaminant RejectReason = "contaminant"
	ReasonRange       RejectReason = "range"
	ReasonTolerance   RejectReason = "tolerance"
)

// ExitDirection is where the reject gate pushes an item.
type ExitDirection string

const (
	ExitNone     ExitDirection = "none"
	ExitBackward ExitDirection = "backward" // toward infeed
	ExitForward  ExitDirection = "forward"  // toward outfeed
)

// Draw holds the random inputs of an item. NewItem samples one from a
// Source; NewItemFromDraw replays a recorded one.
type Draw struct {
	BaggingError float64
	Contaminant  Contaminant
}

// Item is a single bag moving through the line. Weight, contaminant and
// profile are fixed at creation; only the Pipeline mutates inspection state.
type Item struct {
	id              int64
	profile         Profile
	simulatedWeight float64
	contaminant     Contaminant

	position           float64
	measuredWeight     float64
	measured           bool
	contaminantChecked bool
	contaminantFlagged bool
	verdict            Verdict
	rejectReason       RejectReason
	exitDirection      ExitDirection

	ticksSinceVerdict int
}

// NewItem draws the bagging error and contaminant class from src.
func NewItem(id int64, profile Profile, src Source) *Item {
	draw := Draw{BaggingError: uniform(src, profile.BaggingTolerance)}
	if src != nil {
		draw.Contaminant = DrawContaminant(src.Float64())
	}
	return NewItemFromDraw(id, profile, draw)
}

// NewItemFromDraw builds an item from recorded draws.
func NewItemFromDraw(id int64, profile Profile, draw Draw) *Item {
	contaminant := draw.Contaminant
	if contaminant == "" {
		contaminant = ContaminantNone
	}
	return &Item{
		id:              id,
		profile:         profile,
		simulatedWeight: profile.FinalNominal() + draw.BaggingError,
		contaminant:     contaminant,
		verdict:         VerdictInTransit,
		rejectReason:    ReasonNone,
		exitDirection:   ExitNone,
	}
}

func (i *Item) ID() int64                    { return i.id }
func (i *Item) Profile() Profile             { return i.profile }
func (i *Item) Shape() Shape                 { return i.profile.Shape }
func (i *Item) SimulatedWeight() float64     { return i.simulatedWeight }
func (i *Item) Contaminant() Contaminant     { return i.contaminant }
func (i *Item) Position() float64            { return i.position }
func (i *Item) ContaminantChecked() bool     { return i.contaminantChecked }
func (i *Item) ContaminantFlagged() bool     { return i.contaminantFlagged }
func (i *Item) Verdict() Verdict             { return i.verdict }
func (i *Item) RejectReason() RejectReason   { return i.rejectReason }
func (i *Item) ExitDirection() ExitDirection { return i.exitDirection }

// MeasuredWeight returns the checkweigher reading once the item was weighed.
func (i *Item) MeasuredWeight() (float64, bool) {
	return i.measuredWeight, i.measured
}

// ItemView is a read-only copy of an item for renderers.
type ItemView struct {
	ID                 int64         `json:"id"`
	Profile            string        `json:"profile"`
	Shape              Shape         `json:"shape"`
	Position           float64       `json:"position"`
	SimulatedWeight    float64       `json:"simulated_weight"`
	MeasuredWeight     *float64      `json:"measured_weight,omitempty"`
	Contaminant        Contaminant   `json:"contaminant"`
	ContaminantSizeMM  float64       `json:"contaminant_size_mm,omitempty"`
	ContaminantChecked bool          `json:"contaminant_checked"`
	ContaminantFlagged bool          `json:"contaminant_flagged"`
	Verdict            Verdict       `json:"verdict"`
	RejectReason       RejectReason  `json:"reject_reason"`
	ExitDirection      ExitDirection `json:"exit_direction"`
}

// Snapshot copies the item's current state.
func (i *Item) Snapshot() ItemView {
	view := ItemView{
		ID:                 i.id,
		Profile:            i.profile.Name,
		Shape:              i.profile.Shape,
		Position:           i.position,
		SimulatedWeight:    i.simulatedWeight,
		Contaminant:        i.contaminant,
		ContaminantSizeMM:  i.contaminant.SizeMM(),
		ContaminantChecked: i.contaminantChecked,
		ContaminantFlagged: i.contaminantFlagged,
		Verdict:            i.verdict,
		RejectReason:       i.rejectReason,
		ExitDirection:      i.exitDirection,
	}
	if i.measured {
		w := i.measuredWeight
		view.MeasuredWeight = &w
	}
	return view
}
