package main

import (
	"log/slog"
	"time"

	"omniscroll/internal/gesture"
)

// ScrollPublication is a scroll event as delivered to downstream consumers.
type ScrollPublication struct {
	InstanceID string    `json:"instance_id"`
	Source     string    `json:"source,omitempty"`
	Seq        uint64    `json:"seq"`
	V          int       `json:"v"`
	H          int       `json:"h"`
	Direction  string    `json:"direction"`
	At         time.Time `json:"ts"`
}

func newScrollPublication(instanceID, source string, seq uint64, ev gesture.ScrollEvent) ScrollPublication {
	return ScrollPublication{
		InstanceID: instanceID,
		Source:     source,
		Seq:        seq,
		V:          ev.V,
		H:          ev.H,
		Direction:  ev.Direction().String(),
		At:         ev.At,
	}
}

// LifecyclePublication announces a gesture boundary.
type LifecyclePublication struct {
	InstanceID string    `json:"instance_id"`
	Kind       string    `json:"kind"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"ts"`
}

// Sink receives everything the daemon publishes. Implementations must not
// block the daemon loop for long; slow transports should queue internally.
type Sink interface {
	Name() string
	PublishScroll(p ScrollPublication) error
	PublishLifecycle(l LifecyclePublication) error
}

// logSink writes publications to the structured log.
type logSink struct {
	logger *slog.Logger
}

func newLogSink(logger *slog.Logger) *logSink {
	return &logSink{logger: logger}
}

func (s *logSink) Name() string { return "log" }

func (s *logSink) PublishScroll(p ScrollPublication) error {
	s.logger.Info("scroll", "seq", p.Seq, "v", p.V, "h", p.H, "source", p.Source)
	return nil
}

func (s *logSink) PublishLifecycle(l LifecyclePublication) error {
	s.logger.Debug("gesture lifecycle", "kind", l.Kind, "reason", l.Reason)
	return nil
}
