package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// ws_listen connects to omniscrolld's /ws stream and prints every envelope.

// envelope mirrors the daemon's WS frame.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type scrollData struct {
	Seq       uint64 `json:"seq"`
	V         int    `json:"v"`
	H         int    `json:"h"`
	Direction string `json:"direction"`
	Source    string `json:"source"`
}

type lifecycleData struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3002/ws", "omniscrolld websocket URL")
		raw   = flag.Bool("raw", false, "Print frames verbatim")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Pings and the close frame are written from different goroutines.
	var writeMu sync.Mutex

	// The daemon pings every 20s; answering is automatic.
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			handleTextMessage(message)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handleTextMessage prints one daemon envelope in a compact form.
func handleTextMessage(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	ts := ""
	if env.Ts != nil {
		ts = env.Ts.Local().Format("15:04:05.000") + " "
	}

	switch env.Type {
	case "scroll":
		var s scrollData
		if err := json.Unmarshal(env.Data, &s); err != nil {
			break
		}
		fmt.Printf("%s[SCROLL] #%d %s v=%+d h=%+d (%s)\n", ts, s.Seq, s.Direction, s.V, s.H, s.Source)
		return

	case "gesture_pressed", "gesture_released", "classifier_reset":
		var l lifecycleData
		if err := json.Unmarshal(env.Data, &l); err != nil {
			break
		}
		if l.Reason != "" {
			fmt.Printf("%s[GESTURE] %s (%s)\n", ts, env.Type, l.Reason)
		} else {
			fmt.Printf("%s[GESTURE] %s\n", ts, env.Type)
		}
		return
	}

	var pretty any
	if err := json.Unmarshal(env.Data, &pretty); err != nil {
		fmt.Printf("%s[%s] %s\n", ts, env.Type, string(env.Data))
		return
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Printf("%s[%s]\n%s\n\n", ts, env.Type, string(out))
}
