package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The daemon goroutine is the single owner of DaemonState and therefore of the
// gesture classifier. Every sample source only sends Events; nothing else
// touches the classifier.
//
//   sources -> events chan -> Reduce -> commands -> runEffect -> sinks
//                               ^                       |
//                               +---- failure events ---+
//
// ============================================================================

// runDaemon consumes events until ctx is canceled or events is closed.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	state *DaemonState,
	cfg LifecycleConfig,
	sinks []Sink,
	tickHz int,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}
	if tickHz <= 0 {
		tickHz = defaultTickHz
	}

	ticker := time.NewTicker(time.Second / time.Duration(tickHz))
	defer ticker.Stop()

	var eventQueue []Event
	var cmdQueue []Command

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			logReduction(logger, state, ev)
			cmdQueue = append(cmdQueue, rr.Commands...)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(sinks, state.InstanceID, cmd, logger, func(obs Event) {
				eventQueue = append(eventQueue, obs)
			})
			flushEvents()
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			eventQueue = append(eventQueue, TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			eventQueue = append(eventQueue, Tick{Now: now})
			flushEvents()
			flushCommands()
		}
	}
}

// logReduction traces sample classification at debug level.
func logReduction(logger *slog.Logger, s *DaemonState, ev Event) {
	if te, ok := ev.(TimedEvent); ok {
		ev = te.Event
	}
	switch ev.(type) {
	case MotionSample, BindingPressed:
	default:
		return
	}
	if !s.Active {
		logger.Debug("sample dropped (gesture inactive)")
		return
	}
	r := s.LastResult
	logger.Debug("sample classified",
		"outcome", r.Outcome.String(),
		"smooth_x", r.SmoothX,
		"smooth_y", r.SmoothY,
		"magnitude", r.Magnitude,
		"weighted_x", r.WeightedX,
		"weighted_y", r.WeightedY,
		"direction", s.Classifier.Direction().String())
}
