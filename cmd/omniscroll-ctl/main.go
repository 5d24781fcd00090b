package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"omniscroll/internal/gesture"
	"omniscroll/internal/ipc"
)

// ============================================================================
// omniscroll-ctl - Command-line IPC Client
// ============================================================================
// Sends samples and gesture events to omniscrolld over its Unix socket.
//
// Usage:
//   omniscroll-ctl sample 4 -1
//   omniscroll-ctl binding 0xFFFF0003
//   omniscroll-ctl press | release | reset | state
//   omniscroll-ctl replay trace.txt
//
// Options:
//   -socket PATH      Unix domain socket path (default: /tmp/omniscroll.sock)
//   -interval MS      Delay between replayed samples (default: 8)
// ============================================================================

const defaultSocketPath = "/tmp/omniscroll.sock"

func main() {
	socketPath := defaultSocketPath
	interval := 8 * time.Millisecond

	args := os.Args[1:]
	for len(args) > 0 {
		switch args[0] {
		case "-socket", "--socket":
			if len(args) < 2 {
				fail("-socket requires an argument")
			}
			socketPath = args[1]
			args = args[2:]
			continue
		case "-interval", "--interval":
			if len(args) < 2 {
				fail("-interval requires an argument")
			}
			ms, err := strconv.Atoi(args[1])
			if err != nil || ms < 0 {
				fail("invalid -interval: %s", args[1])
			}
			interval = time.Duration(ms) * time.Millisecond
			args = args[2:]
			continue
		}
		break
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return
	}

	var reqs []request
	switch args[0] {
	case "sample":
		if len(args) < 3 {
			fail("sample requires DX and DY")
		}
		dx, err := parseDelta(args[1])
		if err != nil {
			fail("invalid dx: %v", err)
		}
		dy, err := parseDelta(args[2])
		if err != nil {
			fail("invalid dy: %v", err)
		}
		reqs = append(reqs, request{typ: ipc.TypeSample, data: ipc.Sample{DX: dx, DY: dy, Source: "ctl"}})

	case "binding":
		param, err := parseBinding(args[1:])
		if err != nil {
			fail("%v", err)
		}
		reqs = append(reqs, request{typ: ipc.TypeBinding, data: ipc.Binding{Param: param}})

	case "press":
		reqs = append(reqs, request{typ: ipc.TypePress})

	case "release":
		reason := "ctl"
		if len(args) > 1 {
			reason = args[1]
		}
		reqs = append(reqs, request{typ: ipc.TypeRelease, data: ipc.Release{Reason: reason}})

	case "reset":
		reqs = append(reqs, request{typ: ipc.TypeReset})

	case "state":
		reqs = append(reqs, request{typ: ipc.TypeState})

	case "replay":
		if len(args) < 2 {
			fail("replay requires a FILE")
		}
		f, err := os.Open(args[1])
		if err != nil {
			fail("%v", err)
		}
		reqs, err = parseReplay(f)
		_ = f.Close()
		if err != nil {
			fail("%v", err)
		}

	default:
		printUsage()
		fail("unknown command: %s", args[0])
	}

	client, err := ipc.Dial(socketPath, 2*time.Second)
	if err != nil {
		fail("%v", err)
	}
	defer client.Close()

	for i, r := range reqs {
		if i > 0 && r.typ == ipc.TypeSample {
			time.Sleep(interval)
		}
		resp, err := client.Send(r.typ, r.data)
		if err != nil {
			fail("%v", err)
		}
		if r.typ == ipc.TypeState {
			printState(resp.State)
			return
		}
	}

	if len(reqs) > 1 {
		fmt.Printf("ok (%d events)\n", len(reqs))
		return
	}
	fmt.Println("ok")
}

// parseBinding accepts either one packed parameter (decimal or 0x hex) or a
// DX DY pair that is packed here.
func parseBinding(args []string) (uint32, error) {
	switch len(args) {
	case 1:
		v, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid binding param: %w", err)
		}
		return uint32(v), nil
	case 2:
		dx, err := parseDelta(args[0])
		if err != nil {
			return 0, fmt.Errorf("invalid dx: %w", err)
		}
		dy, err := parseDelta(args[1])
		if err != nil {
			return 0, fmt.Errorf("invalid dy: %w", err)
		}
		return gesture.PackParam(dx, dy), nil
	default:
		return 0, fmt.Errorf("binding requires PARAM or DX DY")
	}
}

func parseDelta(s string) (int16, error) {
	v, err := strconv.ParseInt(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return int16(v), nil
}

func printState(raw json.RawMessage) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(pretty))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `omniscroll-ctl - Control the omniscrolld daemon via IPC

Usage:
  omniscroll-ctl [options] <command> [args]

Options:
  -socket PATH      Unix domain socket path (default: %s)
  -interval MS      Delay between replayed samples in ms (default: 8)

Commands:
  sample DX DY              Inject one motion sample
  binding PARAM | DX DY     Inject a packed binding sample (dx low 16 bits, dy high 16 bits)
  press                     Start a gesture (activation key down)
  release [REASON]          End the gesture and reset the classifier
  reset                     Reset the classifier only
  state                     Print the daemon state snapshot
  replay FILE               Send a recorded trace ("dx dy" per line, P/R/X, # comments)
  help, -h, --help          Show this help message

Examples:
  omniscroll-ctl sample 0 6
  omniscroll-ctl binding 0xFFFA0000
  omniscroll-ctl -interval 16 replay swipe-left.txt
`, defaultSocketPath)
}
