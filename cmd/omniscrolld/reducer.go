package main

import (
	"fmt"
	"time"

	"omniscroll/internal/gesture"
)

// This file implements the reducer-style building blocks:
//
//   - Events: inputs to the reducer (samples, gesture lifecycle, ticks, sink failures)
//   - Commands: side effects requested by the reducer (publishing to sinks)
//   - Reduce(): advances DaemonState and returns Commands, without performing I/O
//
// The classifier inside DaemonState is mutated in place. That is safe because
// Reduce only ever runs on the daemon goroutine, which owns the state.

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Tick is emitted by the daemon loop at a fixed cadence.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// TimedEvent wraps a payload event with the time the daemon received it.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// RequestStateSnapshot asks the daemon for a StateSnapshot on Reply.
// Reply should be buffered; the effects stage never blocks on it.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// SinkPublishFailed is emitted when a sink rejects a publication.
type SinkPublishFailed struct {
	Sink string
	Err  error
	At   time.Time
}

func (SinkPublishFailed) eventMarker() {}

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
type Command interface {
	commandMarker()
	String() string
}

// CmdPublishScroll hands one scroll event to the configured sinks.
type CmdPublishScroll struct {
	Publication ScrollPublication
}

func (CmdPublishScroll) commandMarker() {}
func (c CmdPublishScroll) String() string {
	return fmt.Sprintf("CmdPublishScroll(seq=%d v=%d h=%d)", c.Publication.Seq, c.Publication.V, c.Publication.H)
}

// CmdPublishLifecycle announces gesture press/release to observers.
type CmdPublishLifecycle struct {
	Kind   string // "gesture_pressed", "gesture_released", "classifier_reset"
	Reason string
	At     time.Time
}

func (CmdPublishLifecycle) commandMarker() {}
func (c CmdPublishLifecycle) String() string {
	return fmt.Sprintf("CmdPublishLifecycle(kind=%s reason=%s)", c.Kind, c.Reason)
}

// CmdPublishStateSnapshot delivers a snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Snapshot StateSnapshot
	Reply    chan StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }

// ==============================
// Reducer input/output
// ==============================

// LifecycleConfig is the gesture activation policy.
type LifecycleConfig struct {
	// ActivationKey is true when samples count only between press and release.
	ActivationKey bool

	// ReleaseTimeout ends an always-active gesture after this much silence.
	// Zero disables it. Ignored when ActivationKey is set.
	ReleaseTimeout time.Duration
}

// ReduceResult is the output of Reduce(): next state plus Commands to execute.
type ReduceResult struct {
	State    *DaemonState
	Commands []Command
}

// Reduce applies one event.
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must only be called from the goroutine that owns s
func Reduce(s *DaemonState, e Event, cfg LifecycleConfig) ReduceResult {
	if s == nil || s.Classifier == nil {
		return ReduceResult{State: s}
	}
	if te, ok := e.(TimedEvent); ok {
		return reduceAt(s, te.Event, te.At, cfg)
	}
	return reduceAt(s, e, time.Time{}, cfg)
}

func reduceAt(s *DaemonState, e Event, at time.Time, cfg LifecycleConfig) ReduceResult {
	var cmds []Command

	switch ev := e.(type) {
	case MotionSample:
		cmds = handleSample(s, ev.DX, ev.DY, ev.Source, at)

	case BindingPressed:
		// A binding press carries its own sample and implies activation.
		s.Active = true
		dx, dy := gesture.UnpackParam(ev.Param)
		cmds = handleSample(s, dx, dy, "binding", at)

	case GesturePressed:
		if !s.Active {
			s.Active = true
			cmds = append(cmds, CmdPublishLifecycle{Kind: "gesture_pressed", At: at})
		}

	case GestureReleased:
		cmds = release(s, ev.Reason, at, cfg)

	case ResetClassifier:
		s.Classifier.Reset()
		cmds = append(cmds, CmdPublishLifecycle{Kind: "classifier_reset", At: at})

	case Tick:
		if cfg.ActivationKey || cfg.ReleaseTimeout <= 0 || s.Released || s.LastSampleAt.IsZero() {
			break
		}
		if ev.Now.Sub(s.LastSampleAt) >= cfg.ReleaseTimeout {
			cmds = release(s, "idle", ev.Now, cfg)
		}

	case RequestStateSnapshot:
		cmds = append(cmds, CmdPublishStateSnapshot{Snapshot: s.Snapshot(at), Reply: ev.Reply})

	case SinkPublishFailed:
		s.Stats.PublishFailures++

	case TimedEvent:
		return reduceAt(s, ev.Event, ev.At, cfg)
	}

	return ReduceResult{State: s, Commands: cmds}
}

func handleSample(s *DaemonState, dx, dy int16, source string, at time.Time) []Command {
	if !s.Active {
		s.Stats.Dropped++
		return nil
	}

	s.Stats.Samples++
	s.LastSampleAt = at
	s.Released = false

	r := s.Classifier.Classify(dx, dy)
	s.LastResult = r

	switch r.Outcome {
	case gesture.OutcomeGated:
		s.Stats.Gated++
		return nil
	case gesture.OutcomeSuppressed:
		s.Stats.Suppressed++
		return nil
	}

	s.Stats.Emitted++
	s.Seq++
	return []Command{CmdPublishScroll{Publication: newScrollPublication(s.InstanceID, source, s.Seq, r.Event)}}
}

func release(s *DaemonState, reason string, at time.Time, cfg LifecycleConfig) []Command {
	s.Classifier.Reset()
	s.Stats.Releases++
	s.Released = true
	if cfg.ActivationKey {
		s.Active = false
	}
	return []Command{CmdPublishLifecycle{Kind: "gesture_released", Reason: reason, At: at}}
}
