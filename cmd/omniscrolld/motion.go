package main

import "math"

// motionAssembler folds evdev relative-axis events into one MotionSample per
// SYN_REPORT frame and maps the activation key to gesture press/release.
//
// It is not safe for concurrent use; one goroutine owns it.
type motionAssembler struct {
	activationKey int

	accX, accY int32
	// skipping is set after SYN_DROPPED; everything up to and including the
	// next SYN_REPORT is discarded.
	skipping bool
	dropped  bool
}

func newMotionAssembler(activationKey int) *motionAssembler {
	return &motionAssembler{activationKey: activationKey}
}

// Feed consumes one raw input event and returns the daemon events it completes.
func (a *motionAssembler) Feed(ev inputEvent) []Event {
	switch ev.Type {
	case EV_REL:
		if a.skipping {
			return nil
		}
		switch ev.Code {
		case REL_X:
			a.accX = addSat(a.accX, ev.Value)
		case REL_Y:
			a.accY = addSat(a.accY, ev.Value)
		}

	case EV_KEY:
		if a.activationKey == 0 || int(ev.Code) != a.activationKey {
			return nil
		}
		switch ev.Value {
		case evValuePress:
			return []Event{GesturePressed{}}
		case evValueRelease:
			return []Event{GestureReleased{Reason: "key"}}
		}

	case EV_SYN:
		switch ev.Code {
		case SYN_DROPPED:
			a.accX, a.accY = 0, 0
			a.skipping = true
			a.dropped = true
		case SYN_REPORT:
			if a.skipping {
				a.skipping = false
				return nil
			}
			if a.accX == 0 && a.accY == 0 {
				return nil
			}
			s := MotionSample{DX: clampInt16(a.accX), DY: clampInt16(a.accY), Source: "evdev"}
			a.accX, a.accY = 0, 0
			return []Event{s}
		}
	}
	return nil
}

func addSat(a, b int32) int32 {
	s := int64(a) + int64(b)
	if s > math.MaxInt32 {
		return math.MaxInt32
	}
	if s < math.MinInt32 {
		return math.MinInt32
	}
	return int32(s)
}

func clampInt16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
