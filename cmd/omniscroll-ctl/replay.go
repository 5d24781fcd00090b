package main

import (
	"io"

	"omniscroll/internal/ipc"
	"omniscroll/internal/trace"
)

type request struct {
	typ  string
	data any
}

// parseReplay reads a trace in the daemon's serial line format.
func parseReplay(r io.Reader) ([]request, error) {
	var reqs []request
	sc := trace.NewScanner(r)
	for sc.Scan() {
		l := sc.Line()
		switch l.Kind {
		case trace.KindPress:
			reqs = append(reqs, request{typ: ipc.TypePress})
		case trace.KindRelease:
			reqs = append(reqs, request{typ: ipc.TypeRelease, data: ipc.Release{Reason: "replay"}})
		case trace.KindReset:
			reqs = append(reqs, request{typ: ipc.TypeReset})
		default:
			reqs = append(reqs, request{typ: ipc.TypeSample, data: ipc.Sample{DX: l.DX, DY: l.DY, Source: "replay"}})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}
