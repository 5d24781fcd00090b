// Package gesture turns raw two-axis motion deltas into debounced,
// single-axis scroll events.
//
// A Classifier smooths the most recent deltas with a fixed-window moving
// average, gates on the L1 magnitude, weighs each axis by a fixed-point bias,
// and locks onto one axis with 2x hysteresis. All arithmetic is integer and
// truncating so results are reproducible bit for bit.
//
// A Classifier is not safe for concurrent use. It is meant to be owned by the
// single goroutine that dispatches input for one device.
package gesture

import "time"

// Clock supplies event timestamps.
type Clock func() time.Time

// Classifier is the per-device gesture state machine.
type Classifier struct {
	cfg   Config
	clock Clock

	accumulatedX int
	accumulatedY int

	historyX     [MaxSmoothing]int
	historyY     [MaxSmoothing]int
	historyIndex int

	lastDirection Direction
	sampleCount   int
}

// Option configures a Classifier at construction.
type Option func(*Classifier)

// WithClock overrides the timestamp source (default time.Now).
func WithClock(clock Clock) Option {
	return func(c *Classifier) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New validates cfg and returns a zeroed Classifier.
func New(cfg Config, opts ...Option) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{
		cfg:   cfg,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the tuning the classifier was built with.
func (c *Classifier) Config() Config { return c.cfg }

// OnSample feeds one pair of deltas and returns the event it produced, if any.
func (c *Classifier) OnSample(dx, dy int16) (ScrollEvent, bool) {
	r := c.Classify(dx, dy)
	return r.Event, r.Emitted()
}

// Classify is OnSample with the intermediate values exposed.
func (c *Classifier) Classify(dx, dy int16) Result {
	c.sampleCount++
	c.accumulatedX += int(dx)
	c.accumulatedY += int(dy)

	c.historyX[c.historyIndex] = int(dx)
	c.historyY[c.historyIndex] = int(dy)
	c.historyIndex = (c.historyIndex + 1) % c.cfg.Smoothing

	smoothX, smoothY := c.smoothed()

	absX, absY := abs(smoothX), abs(smoothY)
	r := Result{
		SmoothX:   smoothX,
		SmoothY:   smoothY,
		Magnitude: absX + absY,
	}
	if r.Magnitude < c.cfg.Threshold {
		r.Outcome = OutcomeGated
		return r
	}

	// Multiply before dividing; the truncation order is part of the contract.
	r.WeightedY = (absY * c.cfg.VerticalBias) / BiasUnit
	r.WeightedX = (absX * c.cfg.HorizontalBias) / BiasUnit

	var ev ScrollEvent
	if r.WeightedY > r.WeightedX {
		if c.lastDirection == DirectionHorizontal && r.WeightedY < r.WeightedX*2 {
			r.Outcome = OutcomeSuppressed
			return r
		}
		c.lastDirection = DirectionVertical
		ev.V = 1
		if smoothY > 0 {
			ev.V = -1
		}
	} else {
		if c.lastDirection == DirectionVertical && r.WeightedX < r.WeightedY*2 {
			r.Outcome = OutcomeSuppressed
			return r
		}
		c.lastDirection = DirectionHorizontal
		ev.H = -1
		if smoothX > 0 {
			ev.H = 1
		}
	}
	ev.At = c.clock()

	c.accumulatedX = 0
	c.accumulatedY = 0

	r.Outcome = OutcomeEmitted
	r.Event = ev
	return r
}

// smoothed averages the active window with truncating division.
func (c *Classifier) smoothed() (int, int) {
	var sx, sy int
	for i := 0; i < c.cfg.Smoothing; i++ {
		sx += c.historyX[i]
		sy += c.historyY[i]
	}
	return sx / c.cfg.Smoothing, sy / c.cfg.Smoothing
}

// Reset returns the classifier to its zero state, including the ring buffer.
func (c *Classifier) Reset() {
	c.accumulatedX = 0
	c.accumulatedY = 0
	c.sampleCount = 0
	c.lastDirection = DirectionNone
	c.historyX = [MaxSmoothing]int{}
	c.historyY = [MaxSmoothing]int{}
	c.historyIndex = 0
}

// Direction returns the current direction lock.
func (c *Classifier) Direction() Direction { return c.lastDirection }

// State is a point-in-time copy of the classifier's mutable fields.
type State struct {
	AccumulatedX  int       `json:"accumulated_x"`
	AccumulatedY  int       `json:"accumulated_y"`
	HistoryX      []int     `json:"history_x"`
	HistoryY      []int     `json:"history_y"`
	HistoryIndex  int       `json:"history_index"`
	LastDirection Direction `json:"last_direction"`
	SampleCount   int       `json:"sample_count"`
}

// State returns a snapshot. HistoryX/HistoryY cover the active window only.
func (c *Classifier) State() State {
	n := c.cfg.Smoothing
	hx := make([]int, n)
	hy := make([]int, n)
	copy(hx, c.historyX[:n])
	copy(hy, c.historyY[:n])
	return State{
		AccumulatedX:  c.accumulatedX,
		AccumulatedY:  c.accumulatedY,
		HistoryX:      hx,
		HistoryY:      hy,
		HistoryIndex:  c.historyIndex,
		LastDirection: c.lastDirection,
		SampleCount:   c.sampleCount,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
