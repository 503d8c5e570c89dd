package lcu

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventType represents LCU WebSocket message opcodes
type EventType int

const (
	EventTypeSubscribe   EventType = 5
	EventTypeUnsubscribe EventType = 6
	EventTypeEvent       EventType = 8
)

// Subscribed event names
const (
	EventGameflowPhase      = "OnJsonApiEvent_lol-gameflow_v1_gameflow-phase"
	EventChampSelectSession = "OnJsonApiEvent_lol-champ-select_v1_session"
)

// Event is one push notification from the client
type Event struct {
	Name      string          `json:"-"`
	EventType string          `json:"eventType"`
	URI       string          `json:"uri"`
	Data      json.RawMessage `json:"data"`
}

// EventHandler receives push notifications. It runs on the read loop and
// must not block.
type EventHandler func(Event)

// CredentialSource yields the current client credentials
type CredentialSource interface {
	Credentials() (*Credentials, error)
}

// EventClient keeps a WebSocket subscription to the client open and forwards
// events to a handler. Events are only hints; polling stays authoritative.
type EventClient struct {
	creds   CredentialSource
	handler EventHandler
	retry   time.Duration
	log     *zap.SugaredLogger
	events  []string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func NewEventClient(creds CredentialSource, handler EventHandler, retry time.Duration, log *zap.Logger) *EventClient {
	return &EventClient{
		creds:   creds,
		handler: handler,
		retry:   retry,
		log:     log.Named("lcu-ws").Sugar(),
		events:  []string{EventGameflowPhase, EventChampSelectSession},
	}
}

// Run connects whenever credentials are available and reconnects after the
// connection drops, until ctx is done
func (w *EventClient) Run(ctx context.Context) {
	ticker := time.NewTicker(w.retry)
	defer ticker.Stop()

	for {
		if creds, err := w.creds.Credentials(); err == nil {
			if err := w.connect(ctx, creds); err != nil {
				w.log.Debugf("[LCU-WS] %v", err)
			} else {
				w.listen(ctx)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *EventClient) connect(ctx context.Context, creds *Credentials) error {
	dialer := websocket.Dialer{
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
		HandshakeTimeout: 3 * time.Second,
	}

	header := http.Header{}
	header.Set("Authorization", creds.AuthHeader())

	conn, _, err := dialer.DialContext(ctx, fmt.Sprintf("wss://127.0.0.1:%s", creds.Port), header)
	if err != nil {
		return fmt.Errorf("failed to connect to LCU WebSocket: %w", err)
	}

	for _, event := range w.events {
		if err := conn.WriteJSON([]any{EventTypeSubscribe, event}); err != nil {
			conn.Close()
			return fmt.Errorf("failed to subscribe to %s: %w", event, err)
		}
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	w.log.Infof("[LCU-WS] Subscribed to %d events", len(w.events))
	return nil
}

func (w *EventClient) listen(ctx context.Context) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	defer func() {
		w.mu.Lock()
		w.connected = false
		w.conn = nil
		w.mu.Unlock()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				w.log.Infof("[LCU-WS] Connection closed: %v", err)
			}
			return
		}
		if ev, ok := parseEvent(message); ok && w.handler != nil {
			w.handler(ev)
		}
	}
}

// parseEvent decodes a [opcode, name, payload] frame
func parseEvent(data []byte) (Event, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) < 3 {
		return Event{}, false
	}

	var eventType EventType
	if err := json.Unmarshal(raw[0], &eventType); err != nil || eventType != EventTypeEvent {
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal(raw[1], &ev.Name); err != nil {
		return Event{}, false
	}
	if err := json.Unmarshal(raw[2], &ev); err != nil {
		return Event{}, false
	}
	return ev, true
}

// IsConnected returns whether the WebSocket is connected
func (w *EventClient) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}
