package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"omniscroll/internal/ipc"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// External tools (omniscroll-ctl, scripts, test rigs) inject samples and
// gesture lifecycle events through a Unix domain socket.
//
// Protocol: line-delimited JSON
//   - Client sends: {"type": "sample", "data": {"dx": 3, "dy": -1}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//
// {"type": "state"} answers with the current StateSnapshot in "state".
// ============================================================================

// runIPCServer serves the socket until ctx is canceled.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0o660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Closing the listener unblocks Accept.
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, events, logger)
	}
}

// handleIPCConnection answers every request line on conn until the client
// hangs up.
func handleIPCConnection(ctx context.Context, conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		if err := encoder.Encode(handleIPCRequest(ctx, []byte(line), events)); err != nil {
			logger.Debug("IPC failed to send response", "error", err)
			return
		}
	}
}

func handleIPCRequest(ctx context.Context, line []byte, events chan<- Event) ipc.Response {
	var env ipc.Envelope
	if err := json.Unmarshal(line, &env); err == nil && env.Type == ipc.TypeState {
		snap, err := requestSnapshot(ctx, events)
		if err != nil {
			return ipc.Errorf("state: %v", err)
		}
		b, err := json.Marshal(snap)
		if err != nil {
			return ipc.Errorf("state: %v", err)
		}
		resp := ipc.OK()
		resp.State = b
		return resp
	}

	ev, err := UnmarshalEvent(line)
	if err != nil {
		return ipc.Errorf("parse event: %v", err)
	}
	if s, ok := ev.(MotionSample); ok && s.Source == "" {
		s.Source = "ipc"
		ev = s
	}

	// Never block a client on a busy daemon.
	select {
	case events <- ev:
		return ipc.OK()
	default:
		return ipc.Errorf("event queue full")
	}
}
