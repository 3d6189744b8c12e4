package gesture

import (
	"errors"
	"sort"

	"github.com/ayusman/mudra/internal/detector"
	"gonum.org/v1/gonum/num/quat"
)

// ErrDisposed is returned by Detect after Dispose.
var ErrDisposed = errors.New("gesture classifier disposed")

var handOrder = map[detector.Handedness]int{
	detector.HandLeft:    0,
	detector.HandRight:   1,
	detector.HandUnknown: 2,
}

var typeOrder = map[Type]int{
	TypeFist:      0,
	TypePinch:     1,
	TypeHoldPinch: 2,
}

// Classifier owns one state machine per (hand, type) and is driven one frame
// at a time by a single goroutine.
type Classifier struct {
	cfg      Config
	machines map[Key]*machine
	lastTs   int64
	hasTs    bool
	disposed bool
}

// NewClassifier creates a classifier. The config must already be valid.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		cfg:      cfg,
		machines: make(map[Key]*machine),
	}
}

// Config returns the classifier tuning.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Detect advances every state machine by one tick and returns the events the
// tick produced. Hands that are missing or malformed force their engaged
// gestures to ENDED.
func (c *Classifier) Detect(frame Frame, timestampMs int64) (*Result, error) {
	if c.disposed {
		return nil, ErrDisposed
	}

	var dt float64
	if c.hasTs && timestampMs > c.lastTs {
		dt = float64(timestampMs-c.lastTs) / 1000
	}
	c.lastTs = timestampMs
	c.hasTs = true

	present := selectHands(frame.Hands)

	for hand := range present {
		for _, t := range Types {
			key := Key{Hand: hand, Type: t}
			if _, ok := c.machines[key]; !ok {
				c.machines[key] = newMachine(key)
			}
		}
	}

	res := &Result{status: make(map[Key]Status, len(c.machines))}

	for _, key := range c.sortedKeys() {
		m := c.machines[key]

		var s sample
		if sel, ok := present[key.Hand]; ok {
			s.present = true
			s.value, s.point = sel.obs.Feature(key.Type)
			if key.Type != TypeFist {
				fist := c.machines[Key{Hand: key.Hand, Type: TypeFist}]
				s.suppressed = sel.obs.Openness <= c.cfg.Fist.Engage || fist.engaged()
			}
		}

		if ev, ok := m.step(s, timestampMs, dt, &c.cfg); ok {
			res.Events = append(res.Events, ev)
		}
		res.status[key] = m.status()
	}

	left, okL := present[detector.HandLeft]
	right, okR := present[detector.HandRight]
	if okL && okR {
		ql, l := HandOrientation(left.hand)
		qr, r := HandOrientation(right.hand)
		if l && r {
			res.rotation = AverageRotation(ql, qr)
			res.hasRotation = true
		}
	}

	return res, nil
}

// Reset returns every machine to idle without emitting events.
func (c *Classifier) Reset() {
	c.machines = make(map[Key]*machine)
	c.hasTs = false
	c.lastTs = 0
}

// Dispose releases the machines. Detect fails afterwards.
func (c *Classifier) Dispose() {
	c.machines = nil
	c.disposed = true
}

func (c *Classifier) sortedKeys() []Key {
	keys := make([]Key, 0, len(c.machines))
	for k := range c.machines {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		hi, hj := handOrder[keys[i].Hand], handOrder[keys[j].Hand]
		if hi != hj {
			return hi < hj
		}
		return typeOrder[keys[i].Type] < typeOrder[keys[j].Type]
	})
	return keys
}

type selected struct {
	hand *detector.HandLandmarks
	obs  Observation
}

// selectHands keeps one well-formed hand per label, preferring the higher score.
func selectHands(hands []detector.HandLandmarks) map[detector.Handedness]selected {
	out := make(map[detector.Handedness]selected, len(hands))
	for i := range hands {
		h := &hands[i]
		obs, ok := Observe(h)
		if !ok {
			continue
		}
		label := h.Handedness
		if _, known := handOrder[label]; !known {
			label = detector.HandUnknown
			obs.Hand = label
		}
		if prev, dup := out[label]; dup && prev.hand.Score >= h.Score {
			continue
		}
		out[label] = selected{hand: h, obs: obs}
	}
	return out
}

// Result is the outcome of one Detect call.
type Result struct {
	Events []Event

	status      map[Key]Status
	rotation    quat.Number
	hasRotation bool
}

// Status returns the state of one gesture. Unknown keys report idle.
func (r *Result) Status(hand detector.Handedness, t Type) Status {
	if s, ok := r.status[Key{Hand: hand, Type: t}]; ok {
		return s
	}
	return Status{State: StateIdle}
}

// Pinch returns the pinch status for a hand.
func (r *Result) Pinch(hand detector.Handedness) Status { return r.Status(hand, TypePinch) }

// Fist returns the fist status for a hand.
func (r *Result) Fist(hand detector.Handedness) Status { return r.Status(hand, TypeFist) }

// HoldPinch returns the hold-pinch status for a hand.
func (r *Result) HoldPinch(hand detector.Handedness) Status { return r.Status(hand, TypeHoldPinch) }

// CombinedRotation returns the averaged palm orientation when both a left and
// a right hand are present.
func (r *Result) CombinedRotation() (quat.Number, bool) {
	return r.rotation, r.hasRotation
}
