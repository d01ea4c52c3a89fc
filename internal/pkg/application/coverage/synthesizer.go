package coverage

import (
	"errors"
	"time"

	"github.com/diwise/integration-coverage/domain"
	"github.com/diwise/integration-coverage/internal/pkg/geodesy"
)

var ErrOutOfOrder = errors.New("record precedes the last processed record")

const (
	DefaultHeadingCode  = "vrHeading"
	DefaultDistanceCode = "vrDistanceTraveled"

	// fallbackTravelM and maxTravelM bound the trailing edge projected when
	// consecutive edges coincide.
	fallbackTravelM = 1.0
	maxTravelM      = 4.0

	// stationaryM is the movement below which two points are the same place.
	stationaryM = 0.01
)

// Section is the geometry and engagement of one resolved section.
type Section interface {
	Engaged(rec domain.SpatialRecord) bool
	GroundOffset() (inline, lateral float64)
	SwathWidth() float64
}

type Options struct {
	HeadingCode  string
	DistanceCode string
}

func (o Options) withDefaults() Options {
	if o.HeadingCode == "" {
		o.HeadingCode = DefaultHeadingCode
	}
	if o.DistanceCode == "" {
		o.DistanceCode = DefaultDistanceCode
	}
	return o
}

type Phase int

const (
	Idle Phase = iota
	Tracking
)

func (p Phase) String() string {
	if p == Tracking {
		return "tracking"
	}
	return "idle"
}

// LeadingEdge holds the ground-contact points of a section at its most
// recent engaged sample.
type LeadingEdge struct {
	Left   geodesy.Point
	Center geodesy.Point
	Right  geodesy.Point
}

func newLeadingEdge(center geodesy.Point, heading, width float64) LeadingEdge {
	return LeadingEdge{
		Left:   geodesy.Destination(center, width/2, heading-90),
		Center: center,
		Right:  geodesy.Destination(center, width/2, heading+90),
	}
}

func (e LeadingEdge) valid() bool {
	return e.Left.IsValid() && e.Center.IsValid() && e.Right.IsValid()
}

func (e LeadingEdge) shifted(distanceM, bearing float64) LeadingEdge {
	return LeadingEdge{
		Left:   geodesy.Destination(e.Left, distanceM, bearing),
		Center: geodesy.Destination(e.Center, distanceM, bearing),
		Right:  geodesy.Destination(e.Right, distanceM, bearing),
	}
}

// State is the per-section sliding window. The zero value is Idle with no
// history. It holds at most one leading edge and the previous raw position.
type State struct {
	phase       Phase
	edge        LeadingEdge
	lastPoint   geodesy.Point
	hasLast     bool
	lastTime    time.Time
	lastHeading float64
	lastTravelM float64
}

func (s State) Phase() Phase { return s.phase }

// Edge returns the current leading edge, if the section is tracking.
func (s State) Edge() (LeadingEdge, bool) {
	return s.edge, s.phase == Tracking
}

func (s State) reset() State {
	s.phase = Idle
	s.edge = LeadingEdge{}
	s.lastTravelM = 0
	return s
}

type Outcome int

const (
	// Skipped records carried the (0,0) sentinel position; nothing changed.
	Skipped Outcome = iota
	// Disengaged records stopped the section or failed to produce geometry.
	Disengaged
	// Seeded records started a new coverage run without emitting a polygon.
	Seeded
	// Emitted records produced a polygon.
	Emitted
	// Rejected records advanced the edge but the polygon was invalid.
	Rejected
)

type Result struct {
	Outcome Outcome
	Polygon CoveragePolygon
}

// Advance feeds one record through the section's state machine and returns
// the new state. Records must arrive in non-decreasing timestamp order; an
// earlier record yields ErrOutOfOrder and leaves the state untouched.
func Advance(state State, section Section, opts Options, rec domain.SpatialRecord) (State, Result, error) {
	opts = opts.withDefaults()
	point := geodesy.Point{Lon: rec.Longitude, Lat: rec.Latitude}

	if point.IsSentinel() {
		return state, Result{Outcome: Skipped}, nil
	}
	if state.hasLast && rec.Timestamp.Before(state.lastTime) {
		return state, Result{Outcome: Skipped}, ErrOutOfOrder
	}
	if !point.IsValid() {
		return state.reset(), Result{Outcome: Disengaged}, nil
	}

	prior, hasPrior := state.lastPoint, state.hasLast
	state.lastPoint = point
	state.hasLast = true
	state.lastTime = rec.Timestamp

	heading := headingOf(rec, opts, prior, hasPrior, point, state.lastHeading)
	state.lastHeading = heading

	if !section.Engaged(rec) {
		return state.reset(), Result{Outcome: Disengaged}, nil
	}

	inline, lateral := section.GroundOffset()
	ground := geodesy.Destination(point, inline, heading)
	ground = geodesy.Destination(ground, lateral, heading+90)

	edge := newLeadingEdge(ground, heading, section.SwathWidth())
	if !edge.valid() {
		return state.reset(), Result{Outcome: Disengaged}, nil
	}

	if state.phase == Idle {
		state.phase = Tracking
		state.edge = edge
		return state, Result{Outcome: Seeded}, nil
	}

	previous := state.edge
	if travelled := geodesy.Distance(previous.Center, edge.Center); travelled < stationaryM {
		previous = edge.shifted(bridgingDistance(rec, opts, state.lastTravelM), heading+180)
	} else {
		state.lastTravelM = travelled
	}
	state.edge = edge

	polygon := newCoveragePolygon(rec.Timestamp, edge, previous)
	if !polygon.IsValid() {
		return state, Result{Outcome: Rejected}, nil
	}

	return state, Result{Outcome: Emitted, Polygon: polygon}, nil
}

// headingOf prefers a reported heading, then the bearing from the prior
// position. A machine that has not moved keeps its last heading.
func headingOf(rec domain.SpatialRecord, opts Options, prior geodesy.Point, hasPrior bool, current geodesy.Point, lastHeading float64) float64 {
	if v, ok := rec.Values[opts.HeadingCode]; ok && v.Number != nil {
		return geodesy.NormalizeBearing(*v.Number)
	}
	if !hasPrior {
		return 0
	}
	if geodesy.Distance(prior, current) < stationaryM {
		return lastHeading
	}
	return geodesy.NormalizeBearing(geodesy.Bearing(prior, current))
}

// bridgingDistance is the travel used to project a trailing edge when the
// edges themselves give none: the reported distance, else the last
// calculated one, else one metre, never more than four.
func bridgingDistance(rec domain.SpatialRecord, opts Options, lastTravelM float64) float64 {
	d := fallbackTravelM
	if v, ok := rec.Values[opts.DistanceCode]; ok && v.Number != nil && *v.Number > 0 {
		d = *v.Number
	} else if lastTravelM > 0 {
		d = lastTravelM
	}
	if d > maxTravelM {
		d = maxTravelM
	}
	return d
}

// Synthesizer owns the state of one section for the length of a stream.
type Synthesizer struct {
	section Section
	opts    Options
	state   State
}

func NewSynthesizer(section Section, opts Options) *Synthesizer {
	return &Synthesizer{section: section, opts: opts.withDefaults()}
}

func (s *Synthesizer) Process(rec domain.SpatialRecord) (Result, error) {
	state, result, err := Advance(s.state, s.section, s.opts, rec)
	s.state = state
	return result, err
}

func (s *Synthesizer) State() State {
	return s.state
}
