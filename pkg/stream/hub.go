package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/bus"
	"github.com/peter-kozarec/arbiter/pkg/common"
)

const (
	MessageFill   = "fill"
	MessageOrder  = "order"
	MessageEquity = "equity"

	writeTimeout = 5 * time.Second
)

// Message is one event of one session as sent to websocket clients.
type Message struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Data    any    `json:"data"`
}

type subscription struct {
	session string
	ch      chan Message
}

// Hub fans session events out to websocket clients. Slow clients miss
// messages instead of blocking the sessions.
type Hub struct {
	logger   *zap.Logger
	buffer   int
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

func NewHub(logger *zap.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		logger:   logger,
		buffer:   buffer,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		subs:     make(map[*subscription]struct{}),
	}
}

// Subscribe registers a listener for session, or for every session when
// session is empty.
func (h *Hub) Subscribe(session string) *subscription {
	sub := &subscription{session: session, ch: make(chan Message, h.buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub *subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	h.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.session != "" && sub.session != msg.Session {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscription]struct{})
	h.mu.Unlock()
	for sub := range subs {
		close(sub.ch)
	}
}

func (h *Hub) FillHandler(session string) bus.FillEventHandler {
	return func(_ context.Context, fill common.Fill) {
		h.Broadcast(Message{Type: MessageFill, Session: session, Data: fill})
	}
}

func (h *Hub) OrderHandler(session string) bus.OrderEventHandler {
	return func(_ context.Context, order common.Order) {
		h.Broadcast(Message{Type: MessageOrder, Session: session, Data: order})
	}
}

func (h *Hub) EquityHandler(session string) bus.EquityEventHandler {
	return func(_ context.Context, equity common.Equity) {
		h.Broadcast(Message{Type: MessageEquity, Session: session, Data: equity})
	}
}

// ServeHTTP upgrades the request and streams messages until the client
// goes away. The optional session query parameter filters by session name.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	sub := h.Subscribe(r.URL.Query().Get("session"))
	defer h.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
