package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02

	SYN_REPORT  = 0x00
	SYN_DROPPED = 0x03

	// Relative axis codes
	REL_X      = 0x00
	REL_Y      = 0x01
	REL_HWHEEL = 0x06
	REL_WHEEL  = 0x08

	// Common activation buttons
	BTN_LEFT   = 0x110
	BTN_RIGHT  = 0x111
	BTN_MIDDLE = 0x112
	BTN_SIDE   = 0x113
	BTN_EXTRA  = 0x114
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Daemon defaults
const (
	defaultTickHz           = 50  // Tick cadence for idle-release detection (Hz)
	defaultReleaseTimeoutMS = 300 // Idle time before an implicit release (ms)
	defaultSerialBaudRate   = 115200
	defaultHTTPPort         = 3002
	defaultIPCSocketPath    = "/tmp/omniscroll.sock"
	defaultMQTTTopic        = "omniscroll/scroll"
	defaultEventsBuffer     = 256
)
