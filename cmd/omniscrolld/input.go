package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// inputEvent is the Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// readInputEvents decodes input events from r until a read fails or ctx is
// canceled. It blocks on read and is meant to run in its own goroutine per
// device; closing the device unblocks it.
func readInputEvents(ctx context.Context, r io.Reader, events chan<- inputEvent, readErr chan<- error) {
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			readErr <- err
			return
		}

		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// openInputDevices opens every configured evdev node read-only.
// On error the already opened files are closed.
func openInputDevices(paths []string) ([]*os.File, error) {
	files := make([]*os.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			for _, opened := range files {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("open input device %s: %w", p, err)
		}
		files = append(files, f)
	}
	return files, nil
}

// runInputSource reads the devices and forwards daemon events to out until ctx
// is canceled or a device fails. It closes the devices and returns only after
// every reader goroutine has exited.
func runInputSource(ctx context.Context, files []*os.File, useEpoll bool, activationKey int, out chan<- Event, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	raw := make(chan inputEvent, 64)
	readErr := make(chan error, len(files)+1)

	var wg sync.WaitGroup
	if useEpoll {
		wg.Add(1)
		go func() {
			defer wg.Done()
			readInputEventsEpoll(ctx, files, raw, readErr)
		}()
	} else {
		for _, f := range files {
			wg.Add(1)
			go func() {
				defer wg.Done()
				readInputEvents(ctx, f, raw, readErr)
			}()
		}
	}

	go func() {
		<-ctx.Done()
		for _, f := range files {
			_ = f.Close()
		}
	}()
	go func() {
		wg.Wait()
		close(raw)
	}()

	var stopErr error
	asm := newMotionAssembler(activationKey)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case err := <-readErr:
			stopErr = fmt.Errorf("input reader stopped: %w", err)
			break loop

		case ev, ok := <-raw:
			if !ok {
				select {
				case err := <-readErr:
					stopErr = fmt.Errorf("input reader stopped: %w", err)
				default:
				}
				break loop
			}
			for _, e := range asm.Feed(ev) {
				select {
				case out <- e:
				case <-ctx.Done():
					break loop
				}
			}
			if asm.dropped {
				logger.Warn("evdev reported SYN_DROPPED; discarding partial frame")
				asm.dropped = false
			}
		}
	}

	cancel()
	for range raw {
	}
	return stopErr
}
