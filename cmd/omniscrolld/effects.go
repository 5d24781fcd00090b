package main

import (
	"log/slog"
	"time"
)

// runEffect executes a single reducer-emitted Command against the sinks and
// reports failures via onEvent.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly; it only emits Events to be reduced by the daemon loop.
func runEffect(
	sinks []Sink,
	instanceID string,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	report := func(sink Sink, err error) {
		logger.Warn("sink publish failed", "sink", sink.Name(), "command", cmd.String(), "error", err)
		if onEvent != nil {
			onEvent(SinkPublishFailed{Sink: sink.Name(), Err: err, At: time.Now()})
		}
	}

	switch c := cmd.(type) {
	case CmdPublishScroll:
		for _, sink := range sinks {
			if err := sink.PublishScroll(c.Publication); err != nil {
				report(sink, err)
			}
		}

	case CmdPublishLifecycle:
		at := c.At
		if at.IsZero() {
			at = time.Now()
		}
		l := LifecyclePublication{InstanceID: instanceID, Kind: c.Kind, Reason: c.Reason, At: at}
		for _, sink := range sinks {
			if err := sink.PublishLifecycle(l); err != nil {
				report(sink, err)
			}
		}

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the daemon loop on a requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}
