package gesture

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassifier(t *testing.T, cfg Config) *Classifier {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func unitConfig(threshold, smoothing int) Config {
	return Config{
		Threshold:      threshold,
		VerticalBias:   BiasUnit,
		HorizontalBias: BiasUnit,
		Smoothing:      smoothing,
	}
}

func TestNew_RejectsSmoothingOutOfRange(t *testing.T) {
	t.Parallel()

	for _, smoothing := range []int{-1, 0, MaxSmoothing + 1, 100} {
		_, err := New(unitConfig(5, smoothing))
		require.Error(t, err, "smoothing=%d", smoothing)
		assert.ErrorIs(t, err, ErrInvalidSmoothing)
	}

	for smoothing := 1; smoothing <= MaxSmoothing; smoothing++ {
		_, err := New(unitConfig(5, smoothing))
		assert.NoError(t, err, "smoothing=%d", smoothing)
	}
}

func TestNew_RejectsNegativeTuning(t *testing.T) {
	t.Parallel()

	cases := map[string]Config{
		"threshold":       {Threshold: -1, VerticalBias: 10, HorizontalBias: 10, Smoothing: 1},
		"vertical_bias":   {Threshold: 1, VerticalBias: -10, HorizontalBias: 10, Smoothing: 1},
		"horizontal_bias": {Threshold: 1, VerticalBias: 10, HorizontalBias: -1, Smoothing: 1},
	}
	for name, cfg := range cases {
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}
}

func TestNew_DiagonalThresholdIsAccepted(t *testing.T) {
	t.Parallel()

	cfg := unitConfig(5, 1)
	cfg.DiagonalThreshold = 42
	c := newClassifier(t, cfg)
	assert.Equal(t, 42, c.Config().DiagonalThreshold)

	ev, ok := c.OnSample(10, 10)
	require.True(t, ok)
	assert.Equal(t, 1, ev.H, "diagonal motion still resolves to a single axis")
	assert.Equal(t, 0, ev.V)
}

func TestOnSample_GatingBelowThreshold(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(10, 1))

	_, ok := c.OnSample(3, 4)
	assert.False(t, ok)
	assert.Equal(t, DirectionNone, c.Direction())

	_, ok = c.OnSample(0, 20)
	require.True(t, ok)
	require.Equal(t, DirectionVertical, c.Direction())

	r := c.Classify(2, 3)
	assert.Equal(t, OutcomeGated, r.Outcome)
	assert.Equal(t, 5, r.Magnitude)
	assert.Equal(t, DirectionVertical, c.Direction(), "gating must not touch the lock")
}

func TestOnSample_GatingKeepsSmoothingState(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(100, 2))

	_, ok := c.OnSample(4, -6)
	require.False(t, ok)

	st := c.State()
	assert.Equal(t, 4, st.AccumulatedX)
	assert.Equal(t, -6, st.AccumulatedY)
	assert.Equal(t, []int{4, 0}, st.HistoryX)
	assert.Equal(t, []int{-6, 0}, st.HistoryY)
	assert.Equal(t, 1, st.HistoryIndex)
	assert.Equal(t, 1, st.SampleCount)
}

func TestOnSample_SignMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		dx, dy int16
		want   ScrollEvent
	}{
		{0, 10, ScrollEvent{V: -1}},
		{0, -10, ScrollEvent{V: 1}},
		{10, 0, ScrollEvent{H: 1}},
		{-10, 0, ScrollEvent{H: -1}},
	}
	for _, tc := range cases {
		c := newClassifier(t, unitConfig(5, 1))
		ev, ok := c.OnSample(tc.dx, tc.dy)
		require.True(t, ok, "dx=%d dy=%d", tc.dx, tc.dy)
		assert.Equal(t, tc.want.V, ev.V, "dx=%d dy=%d", tc.dx, tc.dy)
		assert.Equal(t, tc.want.H, ev.H, "dx=%d dy=%d", tc.dx, tc.dy)
	}
}

func TestOnSample_SustainedVerticalMotion(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(5, 3))

	// 12/3 = 4, still below threshold.
	_, ok := c.OnSample(0, 12)
	assert.False(t, ok)

	ev, ok := c.OnSample(0, 12)
	require.True(t, ok)
	assert.Equal(t, -1, ev.V)
	assert.Equal(t, 0, ev.H)

	ev, ok = c.OnSample(0, 12)
	require.True(t, ok)
	assert.Equal(t, -1, ev.V)
}

func TestOnSample_HysteresisHoldsThenFlips(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(1, 1))

	_, ok := c.OnSample(0, 10)
	require.True(t, ok)
	require.Equal(t, DirectionVertical, c.Direction())

	// weighted_x=15 is not at least 2x weighted_y=10.
	r := c.Classify(15, 10)
	assert.Equal(t, OutcomeSuppressed, r.Outcome)
	assert.Equal(t, DirectionVertical, c.Direction())

	// 20 == 2*10 is enough to release the lock.
	ev, ok := c.OnSample(20, 10)
	require.True(t, ok)
	assert.Equal(t, ScrollEvent{H: 1, At: ev.At}, ev)
	assert.Equal(t, DirectionHorizontal, c.Direction())

	r = c.Classify(10, 15)
	assert.Equal(t, OutcomeSuppressed, r.Outcome)
	assert.Equal(t, DirectionHorizontal, c.Direction())

	ev, ok = c.OnSample(10, 20)
	require.True(t, ok)
	assert.Equal(t, -1, ev.V)
	assert.Equal(t, DirectionVertical, c.Direction())
}

func TestOnSample_SuppressionKeepsAccumulators(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(1, 1))
	_, ok := c.OnSample(0, 10)
	require.True(t, ok)
	assert.Equal(t, 0, c.State().AccumulatedY)

	_, ok = c.OnSample(15, 10)
	require.False(t, ok)
	st := c.State()
	assert.Equal(t, 15, st.AccumulatedX)
	assert.Equal(t, 10, st.AccumulatedY)
}

// Traces the two-sample scenario through the axis rule: the second sample
// has weighted_y == 0, so the 2x margin is trivially met and the lock flips.
func TestOnSample_ConcreteScenario(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, Config{
		Threshold:         5,
		VerticalBias:      10,
		HorizontalBias:    10,
		Smoothing:         1,
		DiagonalThreshold: 0,
	})

	ev, ok := c.OnSample(0, 10)
	require.True(t, ok)
	assert.Equal(t, -1, ev.V)
	assert.Equal(t, 0, ev.H)

	r := c.Classify(10, 0)
	assert.Equal(t, 0, r.WeightedY)
	assert.Equal(t, 10, r.WeightedX)
	require.Equal(t, OutcomeEmitted, r.Outcome)
	assert.Equal(t, 0, r.Event.V)
	assert.Equal(t, 1, r.Event.H)
}

func TestOnSample_TieFavorsHorizontal(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(1, 1))
	ev, ok := c.OnSample(10, 10)
	require.True(t, ok)
	assert.Equal(t, 1, ev.H)
	assert.Equal(t, 0, ev.V)

	c.Reset()
	ev, ok = c.OnSample(-10, 10)
	require.True(t, ok)
	assert.Equal(t, -1, ev.H)

	// Tie produced by bias: |y|=5 at x2.0 equals |x|=10 at x1.0.
	biased := newClassifier(t, Config{Threshold: 1, VerticalBias: 20, HorizontalBias: 10, Smoothing: 1})
	r := biased.Classify(10, 5)
	assert.Equal(t, r.WeightedX, r.WeightedY)
	require.True(t, r.Emitted())
	assert.Equal(t, 1, r.Event.H)
}

func TestOnSample_BiasTruncation(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, Config{Threshold: 1, VerticalBias: 15, HorizontalBias: 5, Smoothing: 1})

	r := c.Classify(9, 3)
	// 3*15/10 = 4 (4.5 truncated), 9*5/10 = 4 (4.5 truncated): a tie.
	assert.Equal(t, 4, r.WeightedY)
	assert.Equal(t, 4, r.WeightedX)
	assert.Equal(t, 1, r.Event.H)
}

func TestOnSample_SmoothingWindowWrapsAround(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(1000, 5))

	wantX := []int{0, 0, 1, 2, 3, 4, 5}
	for i := 0; i < 7; i++ {
		v := int16(i + 1)
		r := c.Classify(v, -v)
		assert.Equal(t, OutcomeGated, r.Outcome)
		assert.Equal(t, wantX[i], r.SmoothX, "sample %d", i+1)
		assert.Equal(t, -wantX[i], r.SmoothY, "sample %d (truncates toward zero)", i+1)
	}

	st := c.State()
	assert.Equal(t, []int{6, 7, 3, 4, 5}, st.HistoryX)
	assert.Equal(t, 2, st.HistoryIndex)
}

func TestOnSample_TruncatingAverage(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(1000, 2))
	r := c.Classify(-3, 3)
	assert.Equal(t, -1, r.SmoothX)
	assert.Equal(t, 1, r.SmoothY)
}

func TestOnSample_WarmUpAfterReset(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(5, 5))

	for i := 0; i < 2; i++ {
		_, ok := c.OnSample(0, 10)
		assert.False(t, ok, "sample %d averages against zeroed slots", i+1)
	}
	_, ok := c.OnSample(0, 10)
	assert.True(t, ok)

	c.Reset()
	_, ok = c.OnSample(0, 10)
	assert.False(t, ok, "warm-up restarts after reset")
}

func TestOnSample_EmissionClearsAccumulators(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(5, 3))

	_, ok := c.OnSample(1, 6)
	require.False(t, ok)
	assert.Equal(t, 6, c.State().AccumulatedY)

	_, ok = c.OnSample(2, 9)
	require.True(t, ok)

	st := c.State()
	assert.Equal(t, 0, st.AccumulatedX)
	assert.Equal(t, 0, st.AccumulatedY)
	assert.Equal(t, []int{6, 9, 0}, st.HistoryY, "history survives emission")
	assert.Equal(t, DirectionVertical, st.LastDirection)
	assert.Equal(t, 2, st.SampleCount)
}

func TestOnSample_UsesInjectedClock(t *testing.T) {
	t.Parallel()

	at := time.Unix(1700000000, 0).UTC()
	c, err := New(unitConfig(1, 1), WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	ev, ok := c.OnSample(0, -5)
	require.True(t, ok)
	assert.True(t, ev.At.Equal(at))
	assert.Equal(t, DirectionVertical, ev.Direction())
}

func TestOnSample_ExtremeDeltas(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, Config{Threshold: 1, VerticalBias: 1000, HorizontalBias: 1000, Smoothing: 1})
	r := c.Classify(-32768, 32767)
	require.True(t, r.Emitted())
	assert.Equal(t, -32768, r.SmoothX)
	assert.Equal(t, 3276800, r.WeightedX)
	assert.Equal(t, 3276700, r.WeightedY)
	assert.Equal(t, -1, r.Event.H)
	assert.Equal(t, 0, r.Event.V)
}

func TestReset_Idempotent(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(3, 4))
	for _, s := range [][2]int16{{5, 1}, {7, -2}, {0, 9}, {-4, 4}, {3, 3}} {
		c.OnSample(s[0], s[1])
	}
	require.NotEqual(t, 0, c.State().SampleCount)

	c.Reset()
	once := c.State()
	c.Reset()
	twice := c.State()

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second reset changed state (-once +twice):\n%s", diff)
	}

	fresh := newClassifier(t, unitConfig(3, 4)).State()
	if diff := cmp.Diff(fresh, once); diff != "" {
		t.Fatalf("reset state differs from zero state (-fresh +reset):\n%s", diff)
	}
	assert.Equal(t, [MaxSmoothing]int{}, c.historyX)
	assert.Equal(t, [MaxSmoothing]int{}, c.historyY)
}

func TestReset_ClearsDirectionLock(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(1, 1))
	_, ok := c.OnSample(0, 10)
	require.True(t, ok)

	c.Reset()
	assert.Equal(t, DirectionNone, c.Direction())

	// Without a lock the horizontal candidate is not held back.
	ev, ok := c.OnSample(15, 10)
	require.True(t, ok)
	assert.Equal(t, 1, ev.H)
}

func TestState_JSON(t *testing.T) {
	t.Parallel()

	c := newClassifier(t, unitConfig(1, 2))
	c.OnSample(0, 4)

	b, err := json.Marshal(c.State())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"accumulated_x": 0,
		"accumulated_y": 0,
		"history_x": [0, 0],
		"history_y": [4, 0],
		"history_index": 1,
		"last_direction": "vertical",
		"sample_count": 1
	}`, string(b))
}
