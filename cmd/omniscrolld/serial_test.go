package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"omniscroll/internal/trace"
)

func TestParseSerialLine(t *testing.T) {
	tests := []struct {
		line string
		want Event
	}{
		{"12 -3", MotionSample{DX: 12, DY: -3, Source: "serial"}},
		{"12,-3", MotionSample{DX: 12, DY: -3, Source: "serial"}},
		{"  -32768\t32767 ", MotionSample{DX: -32768, DY: 32767, Source: "serial"}},
		{"0, 0", MotionSample{Source: "serial"}},
		{"P", GesturePressed{}},
		{"r", GestureReleased{Reason: "serial"}},
		{"X", ResetClassifier{}},
	}
	for _, tt := range tests {
		got, err := parseSerialLine(tt.line)
		if err != nil {
			t.Errorf("parseSerialLine(%q): %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSerialLine(%q) = %#v, want %#v", tt.line, got, tt.want)
		}
	}
}

func TestParseSerialLine_SkipsAndErrors(t *testing.T) {
	for _, line := range []string{"", "   ", "# comment", "#"} {
		if _, err := parseSerialLine(line); !errors.Is(err, trace.ErrSkip) {
			t.Errorf("parseSerialLine(%q) err=%v, want trace.ErrSkip", line, err)
		}
	}
	for _, line := range []string{"1", "1 2 3", "a b", "40000 0", "0 -40000", "Q"} {
		if _, err := parseSerialLine(line); err == nil || errors.Is(err, trace.ErrSkip) {
			t.Errorf("parseSerialLine(%q) err=%v, want parse error", line, err)
		}
	}
}

func TestReadSerialEvents(t *testing.T) {
	in := "# trace\nP\n3 0\ngarbage\n0,-4\nR\n"
	out := make(chan Event, 8)

	err := readSerialEvents(context.Background(), strings.NewReader(in), out, slog.New(slog.DiscardHandler))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want EOF", err)
	}
	close(out)

	var got []Event
	for ev := range out {
		got = append(got, ev)
	}
	want := []Event{
		GesturePressed{},
		MotionSample{DX: 3, Source: "serial"},
		MotionSample{DY: -4, Source: "serial"},
		GestureReleased{Reason: "serial"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestReadSerialEvents_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan Event) // unbuffered, never drained
	err := readSerialEvents(ctx, strings.NewReader("1 1\n"), out, slog.New(slog.DiscardHandler))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
