// Package ipc is the wire contract of the omniscroll daemon's Unix socket:
// line-delimited JSON envelopes in, one JSON response per line out.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Request types understood by the daemon.
const (
	TypeSample  = "sample"
	TypeBinding = "binding"
	TypePress   = "press"
	TypeRelease = "release"
	TypeReset   = "reset"
	TypeState   = "state"

	// Accepted aliases for binding-style clients.
	TypeBindingPressed  = "binding_pressed"
	TypeBindingReleased = "binding_released"
)

// Envelope wraps a request with a type discriminator.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is sent back for every request line.
type Response struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // set when status == "error"
	State  json.RawMessage `json:"state,omitempty"` // set for TypeState
}

// OK is the success response.
func OK() Response { return Response{Status: "ok"} }

// Errorf builds an error response with a formatted message.
func Errorf(format string, args ...any) Response {
	return Response{Status: "error", Error: fmt.Sprintf(format, args...)}
}

// Sample is the payload of TypeSample.
type Sample struct {
	DX     int16  `json:"dx"`
	DY     int16  `json:"dy"`
	Source string `json:"source,omitempty"`
}

// Binding is the payload of TypeBinding: dx in the low 16 bits, dy in the high 16 bits.
type Binding struct {
	Param uint32 `json:"param"`
}

// Release is the optional payload of TypeRelease.
type Release struct {
	Reason string `json:"reason,omitempty"`
}

// NewEnvelope marshals data (may be nil) into an envelope of type typ.
func NewEnvelope(typ string, data any) (Envelope, error) {
	env := Envelope{Type: typ}
	if data == nil {
		return env, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	env.Data = b
	return env, nil
}

// Client keeps one socket connection open for a sequence of requests.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the daemon socket.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	return &Client{conn: conn, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Do sends one envelope and waits for its response. A response with status
// "error" is returned together with a non-nil error.
func (c *Client) Do(env Envelope) (Response, error) {
	// Encode terminates the value with a newline.
	if err := c.enc.Encode(env); err != nil {
		return Response{}, fmt.Errorf("send %s: %w", env.Type, err)
	}
	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		if resp.Error == "" {
			return resp, errors.New("ipc error")
		}
		return resp, fmt.Errorf("ipc error: %s", resp.Error)
	}
	return resp, nil
}

// Send is Do for a typed payload.
func (c *Client) Send(typ string, data any) (Response, error) {
	env, err := NewEnvelope(typ, data)
	if err != nil {
		return Response{}, err
	}
	return c.Do(env)
}
