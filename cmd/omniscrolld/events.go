package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"omniscroll/internal/ipc"
)

// ============================================================================
// Input Events - what sample sources hand to the daemon
// ============================================================================
// Every source (evdev, serial, IPC, MQTT) produces these payload types. The
// daemon stamps them with a receive time (TimedEvent) and reduces them in order.
// ============================================================================

// MotionSample is one tick of raw two-axis motion.
type MotionSample struct {
	DX     int16  `json:"dx"`
	DY     int16  `json:"dy"`
	Source string `json:"source,omitempty"` // e.g. "evdev", "serial", "ipc", "mqtt"
}

func (MotionSample) eventMarker() {}

// BindingPressed carries one sample packed as a 32-bit binding parameter
// (dx in the low half, dy in the high half).
type BindingPressed struct {
	Param uint32 `json:"param"`
}

func (BindingPressed) eventMarker() {}

// GesturePressed marks the activation key going down.
type GesturePressed struct{}

func (GesturePressed) eventMarker() {}

// GestureReleased ends the gesture and resets the classifier.
type GestureReleased struct {
	Reason string `json:"reason,omitempty"` // "key", "idle", "ipc", "serial"
}

func (GestureReleased) eventMarker() {}

// ResetClassifier clears classifier state without touching activation.
type ResetClassifier struct{}

func (ResetClassifier) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling.
type EventEnvelope = ipc.Envelope

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case ipc.TypeSample:
		var s MotionSample
		if err := unmarshalData(env.Data, &s); err != nil {
			return nil, fmt.Errorf("unmarshal MotionSample: %w", err)
		}
		return s, nil

	case ipc.TypeBinding, ipc.TypeBindingPressed:
		var b BindingPressed
		if err := unmarshalData(env.Data, &b); err != nil {
			return nil, fmt.Errorf("unmarshal BindingPressed: %w", err)
		}
		return b, nil

	case ipc.TypePress:
		return GesturePressed{}, nil

	case ipc.TypeRelease, ipc.TypeBindingReleased:
		var r GestureReleased
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &r); err != nil {
				return nil, fmt.Errorf("unmarshal GestureReleased: %w", err)
			}
		}
		return r, nil

	case ipc.TypeReset:
		return ResetClassifier{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// unmarshalData rejects a missing payload for events that need one.
func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, v)
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator.
func MarshalEvent(e Event) ([]byte, error) {
	var typ string
	var payload any

	switch e := e.(type) {
	case MotionSample:
		typ, payload = ipc.TypeSample, e
	case BindingPressed:
		typ, payload = ipc.TypeBinding, e
	case GesturePressed:
		typ = ipc.TypePress
	case GestureReleased:
		typ = ipc.TypeRelease
		if e.Reason != "" {
			payload = e
		}
	case ResetClassifier:
		typ = ipc.TypeReset
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	env, err := ipc.NewEnvelope(typ, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
