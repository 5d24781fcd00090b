package main

import (
	"time"

	"omniscroll/internal/gesture"
)

// DaemonState is the top-level, daemon-owned state container.
//
// Only the daemon goroutine touches it. The classifier inside is not safe for
// concurrent use, so other goroutines (HTTP, websocket) get StateSnapshot
// values through RequestStateSnapshot instead of a pointer.
type DaemonState struct {
	InstanceID string

	Classifier *gesture.Classifier

	// Active is true while the gesture binding is held (always true when no
	// activation key is configured).
	Active bool

	// LastSampleAt is the receive time of the last classified sample.
	LastSampleAt time.Time

	// Released is set after a release and cleared by the next classified sample.
	// It keeps the idle timeout from firing more than once per gesture.
	Released bool

	// Seq numbers published scroll events.
	Seq uint64

	LastResult gesture.Result
	Stats      DaemonStats
}

// DaemonStats counts what happened to samples since startup.
type DaemonStats struct {
	Samples         uint64 `json:"samples"`
	Dropped         uint64 `json:"dropped"` // received while inactive
	Gated           uint64 `json:"gated"`
	Suppressed      uint64 `json:"suppressed"`
	Emitted         uint64 `json:"emitted"`
	Releases        uint64 `json:"releases"`
	PublishFailures uint64 `json:"publish_failures"`
}

// NewDaemonState builds the classifier and the initial activation state.
func NewDaemonState(cfg gesture.Config, lc LifecycleConfig, instanceID string, opts ...gesture.Option) (*DaemonState, error) {
	c, err := gesture.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &DaemonState{
		InstanceID: instanceID,
		Classifier: c,
		Active:     !lc.ActivationKey,
		Released:   true,
	}, nil
}

// StateSnapshot is an immutable, externally consumable view of DaemonState.
type StateSnapshot struct {
	InstanceID   string         `json:"instance_id"`
	Active       bool           `json:"active"`
	Config       gesture.Config `json:"config"`
	Classifier   gesture.State  `json:"classifier"`
	Stats        DaemonStats    `json:"stats"`
	LastSampleAt time.Time      `json:"last_sample_at,omitzero"`
	At           time.Time      `json:"at"`
}

// Snapshot copies the current state.
func (s *DaemonState) Snapshot(at time.Time) StateSnapshot {
	snap := StateSnapshot{
		InstanceID:   s.InstanceID,
		Active:       s.Active,
		Stats:        s.Stats,
		LastSampleAt: s.LastSampleAt,
		At:           at,
	}
	if s.Classifier != nil {
		snap.Config = s.Classifier.Config()
		snap.Classifier = s.Classifier.State()
	}
	return snap
}
