// Package trace parses the line-oriented motion format shared by the serial
// sample source and recorded replay files.
//
// One command per line, ASCII:
//
//	12 -3     motion sample (dx dy)
//	12,-3     motion sample (dx,dy)
//	P         gesture pressed
//	R         gesture released
//	X         reset classifier
//	# ...     comment
//
// Blank lines are ignored. Commands are case-insensitive.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind identifies the command carried by a Line.
type Kind int

const (
	KindSample Kind = iota
	KindPress
	KindRelease
	KindReset
)

func (k Kind) String() string {
	switch k {
	case KindSample:
		return "sample"
	case KindPress:
		return "press"
	case KindRelease:
		return "release"
	case KindReset:
		return "reset"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Line is one parsed command. DX and DY are set only for KindSample.
type Line struct {
	Kind   Kind
	DX, DY int16
}

// ErrSkip is returned by ParseLine for blank and comment lines.
var ErrSkip = errors.New("trace: skip line")

// ParseLine parses a single line.
func ParseLine(s string) (Line, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "#") {
		return Line{}, ErrSkip
	}

	switch strings.ToUpper(s) {
	case "P":
		return Line{Kind: KindPress}, nil
	case "R":
		return Line{Kind: KindRelease}, nil
	case "X":
		return Line{Kind: KindReset}, nil
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return Line{}, fmt.Errorf("expected \"dx dy\", got %d fields", len(fields))
	}
	dx, err := strconv.ParseInt(fields[0], 10, 16)
	if err != nil {
		return Line{}, fmt.Errorf("parse dx %q: %w", fields[0], err)
	}
	dy, err := strconv.ParseInt(fields[1], 10, 16)
	if err != nil {
		return Line{}, fmt.Errorf("parse dy %q: %w", fields[1], err)
	}
	return Line{Kind: KindSample, DX: int16(dx), DY: int16(dy)}, nil
}

// Scanner reads Lines from a stream, skipping blanks and comments.
type Scanner struct {
	sc     *bufio.Scanner
	lineNo int
	line   Line
	err    error
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{sc: bufio.NewScanner(r)}
}

// Scan advances to the next line. It returns false at end of input, on a read
// error, and on a line that fails to parse; Err reports which.
func (s *Scanner) Scan() bool {
	for s.sc.Scan() {
		s.lineNo++
		l, err := ParseLine(s.sc.Text())
		if errors.Is(err, ErrSkip) {
			continue
		}
		if err != nil {
			s.err = &LineError{Line: s.lineNo, Err: err}
			return false
		}
		s.line = l
		return true
	}
	if err := s.sc.Err(); err != nil {
		s.err = err
	}
	return false
}

// Line returns the most recent line produced by Scan.
func (s *Scanner) Line() Line { return s.line }

// LineNo is the 1-based input line number of the last line read.
func (s *Scanner) LineNo() int { return s.lineNo }

// Err returns the first non-EOF error encountered by Scan.
func (s *Scanner) Err() error { return s.err }

// LineError reports a malformed line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }
