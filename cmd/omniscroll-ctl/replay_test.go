package main

import (
	"strings"
	"testing"

	"omniscroll/internal/gesture"
	"omniscroll/internal/ipc"
)

func TestParseReplay(t *testing.T) {
	trace := `# swipe right then up
P
3 0
4,1

-2	-9
R
X
`
	reqs, err := parseReplay(strings.NewReader(trace))
	if err != nil {
		t.Fatalf("parseReplay: %v", err)
	}

	wantTypes := []string{ipc.TypePress, ipc.TypeSample, ipc.TypeSample, ipc.TypeSample, ipc.TypeRelease, ipc.TypeReset}
	if len(reqs) != len(wantTypes) {
		t.Fatalf("got %d requests, want %d", len(reqs), len(wantTypes))
	}
	for i, r := range reqs {
		if r.typ != wantTypes[i] {
			t.Errorf("request %d: type=%q, want %q", i, r.typ, wantTypes[i])
		}
	}

	s, ok := reqs[3].data.(ipc.Sample)
	if !ok {
		t.Fatalf("request 3 data is %T, want ipc.Sample", reqs[3].data)
	}
	if s.DX != -2 || s.DY != -9 || s.Source != "replay" {
		t.Errorf("request 3 = %+v", s)
	}
}

func TestParseReplay_RejectsBadLine(t *testing.T) {
	_, err := parseReplay(strings.NewReader("1 2\n1 2 3\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}

	_, err = parseReplay(strings.NewReader("40000 0\n"))
	if err == nil {
		t.Fatalf("expected out-of-range dx to fail")
	}
}

func TestParseBinding(t *testing.T) {
	got, err := parseBinding([]string{"0xFFFF0003"})
	if err != nil {
		t.Fatalf("parseBinding hex: %v", err)
	}
	if got != 0xFFFF0003 {
		t.Errorf("hex param = %#x", got)
	}

	got, err = parseBinding([]string{"3", "-1"})
	if err != nil {
		t.Fatalf("parseBinding pair: %v", err)
	}
	if got != gesture.PackParam(3, -1) {
		t.Errorf("pair param = %#x, want %#x", got, gesture.PackParam(3, -1))
	}
	dx, dy := gesture.UnpackParam(got)
	if dx != 3 || dy != -1 {
		t.Errorf("round trip = (%d, %d)", dx, dy)
	}

	if _, err := parseBinding(nil); err == nil {
		t.Errorf("expected error for missing args")
	}
}
