package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"

	"omniscroll/internal/trace"
)

// parseSerialLine turns one line of the trace format into a daemon event.
// Blank and comment lines return trace.ErrSkip.
func parseSerialLine(line string) (Event, error) {
	l, err := trace.ParseLine(line)
	if err != nil {
		return nil, err
	}
	switch l.Kind {
	case trace.KindPress:
		return GesturePressed{}, nil
	case trace.KindRelease:
		return GestureReleased{Reason: "serial"}, nil
	case trace.KindReset:
		return ResetClassifier{}, nil
	default:
		return MotionSample{DX: l.DX, DY: l.DY, Source: "serial"}, nil
	}
}

// openSerialPort opens the configured port in 8N1 mode.
func openSerialPort(cfg SerialConfig) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	return port, nil
}

// readSerialEvents scans r line by line and forwards parsed events until r
// fails or ctx is canceled. Malformed lines are logged and skipped.
func readSerialEvents(ctx context.Context, r io.Reader, out chan<- Event, logger *slog.Logger) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		ev, err := parseSerialLine(sc.Text())
		if errors.Is(err, trace.ErrSkip) {
			continue
		}
		if err != nil {
			logger.Warn("invalid serial line", "line", lineNo, "error", err)
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read serial: %w", err)
	}
	return io.EOF
}

// runSerialSource opens the port and reads it until ctx is canceled.
// Closing the port on cancel unblocks the pending read.
func runSerialSource(ctx context.Context, cfg SerialConfig, out chan<- Event, logger *slog.Logger) error {
	port, err := openSerialPort(cfg)
	if err != nil {
		return err
	}
	logger.Info("serial source started", "port", cfg.Port, "baud", cfg.BaudRate)

	go func() {
		<-ctx.Done()
		_ = port.Close()
	}()

	err = readSerialEvents(ctx, port, out, logger)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
