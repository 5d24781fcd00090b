package gesture

import (
	"fmt"
	"time"
)

// Direction is the committed scroll axis.
type Direction int

const (
	// DirectionNone means no axis is locked yet (initial and after Reset).
	DirectionNone Direction = iota
	// DirectionVertical is locked by the last vertical emission.
	DirectionVertical
	// DirectionHorizontal is locked by the last horizontal emission.
	DirectionHorizontal
)

// String returns "none", "vertical" or "horizontal".
func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "none"
	case DirectionVertical:
		return "vertical"
	case DirectionHorizontal:
		return "horizontal"
	default:
		return "unknown"
	}
}

// MarshalText encodes d as its String form.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts the String forms; empty input decodes to DirectionNone.
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none", "":
		*d = DirectionNone
	case "vertical":
		*d = DirectionVertical
	case "horizontal":
		*d = DirectionHorizontal
	default:
		return fmt.Errorf("unknown direction %q", string(b))
	}
	return nil
}

// ScrollEvent is one discrete scroll step. Exactly one of V and H is non-zero.
//
// Positive raw vertical motion maps to V = -1.
type ScrollEvent struct {
	V  int       `json:"v"` // -1, 0, +1
	H  int       `json:"h"` // -1, 0, +1
	At time.Time `json:"ts"`
}

// Direction returns the axis the event scrolls along.
func (e ScrollEvent) Direction() Direction {
	switch {
	case e.V != 0:
		return DirectionVertical
	case e.H != 0:
		return DirectionHorizontal
	default:
		return DirectionNone
	}
}

// Outcome says what happened to a sample.
type Outcome int

const (
	// OutcomeGated means the smoothed magnitude was below the threshold.
	OutcomeGated Outcome = iota
	// OutcomeSuppressed means hysteresis blocked a change of axis.
	OutcomeSuppressed
	// OutcomeEmitted means an event was produced.
	OutcomeEmitted
)

// String returns "gated", "suppressed" or "emitted".
func (o Outcome) String() string {
	switch o {
	case OutcomeGated:
		return "gated"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeEmitted:
		return "emitted"
	default:
		return "unknown"
	}
}

// Result is the full trace of one classification step.
type Result struct {
	Outcome Outcome
	Event   ScrollEvent // valid only when Outcome == OutcomeEmitted

	SmoothX   int
	SmoothY   int
	Magnitude int
	WeightedX int // zero when gated
	WeightedY int // zero when gated
}

// Emitted reports whether the step produced an event.
func (r Result) Emitted() bool { return r.Outcome == OutcomeEmitted }
