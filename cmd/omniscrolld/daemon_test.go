package main

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// startDaemon runs runDaemon on its own goroutine and returns the event
// channel plus a stop function that waits for the loop to exit.
func startDaemon(t *testing.T, lc LifecycleConfig, sinks ...Sink) (chan Event, func()) {
	t.Helper()
	state := newTestState(t, lc)
	events := make(chan Event, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(ctx, events, state, lc, sinks, 200, discardLogger())
	}()
	return events, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("daemon did not stop")
		}
	}
}

func TestRunDaemon_PublishesScrollEvents(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	events, stop := startDaemon(t, LifecycleConfig{}, sink)
	defer stop()

	events <- MotionSample{DX: 12, Source: "test"}
	events <- MotionSample{DX: 1} // gated
	events <- MotionSample{DY: -30, Source: "test"}

	waitUntil(t, time.Second, func() bool {
		scrolls, _ := sink.snapshot()
		return len(scrolls) == 2
	}, "expected two scroll publications")

	scrolls, _ := sink.snapshot()
	if scrolls[0].H != 1 || scrolls[0].Seq != 1 || scrolls[0].InstanceID != "test-instance" {
		t.Errorf("scroll 0 = %+v", scrolls[0])
	}
	if scrolls[1].V != 1 || scrolls[1].Seq != 2 {
		t.Errorf("scroll 1 = %+v", scrolls[1])
	}
}

func TestRunDaemon_IdleReleaseFromTicker(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	events, stop := startDaemon(t, LifecycleConfig{ReleaseTimeout: 30 * time.Millisecond}, sink)
	defer stop()

	events <- MotionSample{DX: 12}

	waitUntil(t, time.Second, func() bool {
		_, ls := sink.snapshot()
		return len(ls) == 1
	}, "expected an idle release")

	_, ls := sink.snapshot()
	if ls[0].Kind != "gesture_released" || ls[0].Reason != "idle" {
		t.Errorf("lifecycle = %+v", ls[0])
	}
}

func TestRunDaemon_SinkFailuresFeedBackIntoState(t *testing.T) {
	bad := &recordingSink{name: "bad", err: context.DeadlineExceeded}
	events, stop := startDaemon(t, LifecycleConfig{}, bad)
	defer stop()

	events <- MotionSample{DX: 12}

	waitUntil(t, time.Second, func() bool {
		snap, err := requestSnapshot(context.Background(), events)
		return err == nil && snap.Stats.PublishFailures == 1
	}, "publish failure not counted")
}

func TestRunDaemon_StopsWhenEventsClosed(t *testing.T) {
	state := newTestState(t, LifecycleConfig{})
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(context.Background(), events, state, LifecycleConfig{}, nil, 0, discardLogger())
	}()
	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("daemon did not stop after events closed")
	}
}

func TestRun_StartupFailureLeavesNothingRunning(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()

	cfg := DefaultConfig()
	cfg.HTTP.Port = port
	cfg.IPC.SocketPath = ""
	cfg.Input.Devices = []string{filepath.Join(t.TempDir(), "missing-event0")}

	err = run(context.Background(), cfg, "test-instance", discardLogger())
	if err == nil || !strings.Contains(err.Error(), "missing-event0") {
		t.Fatalf("run = %v, want device open error", err)
	}

	// A leaked HTTP server would still hold the port.
	time.Sleep(100 * time.Millisecond)
	l, err = net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("port %d still in use after failed startup: %v", port, err)
	}
	_ = l.Close()
}
