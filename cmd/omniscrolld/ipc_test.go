package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"omniscroll/internal/ipc"
)

// startIPC serves a socket in a short temp dir (unix socket paths are length
// limited) and returns its path.
func startIPC(t *testing.T, events chan Event) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "osc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "ipc.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runIPCServer(ctx, path, events, discardLogger()) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("runIPCServer: %v", err)
			}
		case <-time.After(time.Second):
			t.Errorf("IPC server did not stop")
		}
	})

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, "socket not created")
	return path
}

func TestIPC_ForwardsEvents(t *testing.T) {
	events := make(chan Event, 4)
	path := startIPC(t, events)

	c, err := ipc.Dial(path, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Send(ipc.TypeSample, ipc.Sample{DX: 4, DY: -2}); err != nil {
		t.Fatalf("sample: %v", err)
	}
	if _, err := c.Send(ipc.TypeRelease, nil); err != nil {
		t.Fatalf("release: %v", err)
	}

	if got := <-events; got != (MotionSample{DX: 4, DY: -2, Source: "ipc"}) {
		t.Errorf("event 0 = %#v", got)
	}
	if got := <-events; got != (GestureReleased{}) {
		t.Errorf("event 1 = %#v", got)
	}
}

func TestIPC_ErrorResponses(t *testing.T) {
	events := make(chan Event) // unbuffered and never drained: queue is "full"
	path := startIPC(t, events)

	c, err := ipc.Dial(path, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	resp, err := c.Do(ipc.Envelope{Type: "volume_up"})
	if err == nil || resp.Status != "error" || !strings.Contains(resp.Error, "unknown event type") {
		t.Errorf("unknown type: resp=%+v err=%v", resp, err)
	}

	resp, err = c.Send(ipc.TypePress, nil)
	if err == nil || resp.Error != "event queue full" {
		t.Errorf("full queue: resp=%+v err=%v", resp, err)
	}
}

func TestIPC_StateRequest(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	events, stop := startDaemon(t, LifecycleConfig{}, sink)
	defer stop()
	path := startIPC(t, events)

	c, err := ipc.Dial(path, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Send(ipc.TypeBinding, ipc.Binding{Param: 0x0000000A}); err != nil {
		t.Fatalf("binding: %v", err)
	}

	waitUntil(t, time.Second, func() bool {
		scrolls, _ := sink.snapshot()
		return len(scrolls) == 1
	}, "binding did not produce a scroll")

	resp, err := c.Send(ipc.TypeState, nil)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	var snap StateSnapshot
	if err := json.Unmarshal(resp.State, &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if snap.Stats.Emitted != 1 || snap.Classifier.SampleCount != 1 || snap.InstanceID != "test-instance" {
		t.Errorf("snapshot = %+v", snap)
	}
}
