// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/taibuivan/profilegate/internal/platform/apperr"
	"github.com/taibuivan/profilegate/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/profilegate/internal/platform/request"
	"github.com/taibuivan/profilegate/internal/platform/respond"
)

// Event types pushed to connected clients.
const (
	EventReady       = "ready"
	EventInvalidated = "invalidated"
)

const (
	eventBuffer       = 8
	eventWriteTimeout = 5 * time.Second
)

// Event tells a client its gate state changed and should be re-evaluated.
type Event struct {
	Type      string    `json:"type"`
	AccountID string    `json:"account_id"`
	At        time.Time `json:"at"`
}

// Hub fans snapshot drops out to the sockets of the affected account. Its
// Notify method is meant to be registered with [WithObserver].
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
	now  func() time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{}), now: time.Now}
}

// Subscribe registers a buffered channel for accountID.
func (hub *Hub) Subscribe(accountID string) chan Event {
	ch := make(chan Event, eventBuffer)

	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.subs[accountID] == nil {
		hub.subs[accountID] = make(map[chan Event]struct{})
	}
	hub.subs[accountID][ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes ch. Repeated calls are no-ops.
func (hub *Hub) Unsubscribe(accountID string, ch chan Event) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	subs, ok := hub.subs[accountID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}

	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(hub.subs, accountID)
	}
}

// Notify sends an invalidated event to every subscriber of accountID.
// Slow subscribers with a full buffer miss the event.
func (hub *Hub) Notify(accountID string) {
	event := Event{Type: EventInvalidated, AccountID: accountID, At: hub.now().UTC()}

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for ch := range hub.subs[accountID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers reports how many sockets are attached for accountID.
func (hub *Hub) Subscribers(accountID string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subs[accountID])
}

/*
GET /api/v1/gate/events.

Description: Upgrades to a WebSocket and pushes an "invalidated" event each
time the caller's snapshot is dropped (profile edit, ban, logout elsewhere).
The client re-evaluates the current screen when it receives one.

Response:
  - 101: Switching Protocols
  - 401: ErrUnauthorized: Authentication required
  - 503: Events are not enabled on this instance
*/
func (handler *Handler) streamEvents(writer http.ResponseWriter, request *http.Request) {
	if handler.hub == nil {
		respond.Error(writer, request, apperr.ServiceUnavailable("Gate events are not enabled"))
		return
	}

	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Lift the server deadlines before handing the connection over.
	controller := http.NewResponseController(writer)
	_ = controller.SetReadDeadline(time.Time{})
	_ = controller.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(writer, request, &websocket.AcceptOptions{OriginPatterns: handler.originPatterns})
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(request.Context())
	defer cancel()

	sub := handler.hub.Subscribe(userID)
	defer handler.hub.Unsubscribe(userID, sub)

	logger := ctxutil.GetLogger(ctx)
	logger.DebugContext(ctx, "gate_events_connected", slog.String("account_id", userID))

	_ = wsjson.Write(ctx, conn, Event{Type: EventReady, AccountID: userID, At: time.Now().UTC()})

	// Clients never send anything meaningful; reading detects the close.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case event, ok := <-sub:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			cancelWrite()
			if err != nil {
				logger.DebugContext(ctx, "gate_events_write_failed", slog.Any("error", err))
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}
