package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/pageglot/pageglot/internal/annotate"
	"github.com/pageglot/pageglot/internal/observe"
	"github.com/pageglot/pageglot/pkg/types"
)

const (
	// subscriberBuffer is the per-subscriber outbound queue length. A
	// subscriber that falls this far behind is disconnected rather than
	// allowed to stall the pipeline.
	subscriberBuffer = 64

	// writeTimeout bounds a single WebSocket write.
	writeTimeout = 5 * time.Second
)

// wsEnvelope is the wire format for all event stream messages. Exactly one of
// the payload fields is set, selected by Kind.
type wsEnvelope struct {
	// Kind is "text", "chunks", or "progress".
	Kind      string `json:"kind"`
	SessionID string `json:"sessionId"`

	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`

	Event    *types.Event    `json:"event,omitempty"`
	Progress *types.Progress `json:"progress,omitempty"`
}

// Hub fans session output out to WebSocket subscribers. It implements
// [annotate.Sink]: the session publishes once and every connected client
// receives the message.
//
// Publishes never block on a slow client. Each subscriber has a bounded
// queue; on overflow the subscriber is disconnected with StatusPolicyViolation
// and must reconnect.
type Hub struct {
	logger  *slog.Logger
	metrics *observe.Metrics

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	msgs      chan []byte
	closeSlow func()
}

var _ annotate.Sink = (*Hub)(nil)

// HubOption configures a [Hub].
type HubOption func(*Hub)

// WithHubLogger sets the hub's logger. Defaults to [slog.Default].
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithHubMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithHubMetrics(m *observe.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates an empty [Hub].
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs: make(map[*subscriber]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// PublishText implements [annotate.Sink].
func (h *Hub) PublishText(sessionID, title, text string) {
	h.broadcast(wsEnvelope{Kind: "text", SessionID: sessionID, Title: title, Text: text})
}

// PublishChunks implements [annotate.Sink].
func (h *Hub) PublishChunks(sessionID string, ev types.Event) {
	h.broadcast(wsEnvelope{Kind: "chunks", SessionID: sessionID, Event: &ev})
}

// PublishProgress implements [annotate.Sink].
func (h *Hub) PublishProgress(sessionID string, p types.Progress) {
	h.broadcast(wsEnvelope{Kind: "progress", SessionID: sessionID, Progress: &p})
}

// broadcast marshals the envelope once and enqueues it to every subscriber.
func (h *Hub) broadcast(env wsEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("event stream: marshal envelope", "kind", env.Kind, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.msgs <- data:
		default:
			go s.closeSlow()
		}
	}
}

// SubscriberCount returns the number of connected event stream clients.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Subscribe upgrades the request to a WebSocket and streams hub messages to
// it until the client disconnects or the context ends.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	sub := &subscriber{
		msgs: make(chan []byte, subscriberBuffer),
		closeSlow: func() {
			conn.Close(websocket.StatusPolicyViolation, "subscriber too slow to keep up")
		},
	}
	h.addSubscriber(sub)
	defer h.removeSubscriber(sub)

	// The stream is write-only from the server's perspective; CloseRead
	// surfaces client disconnects through the returned context.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case msg := <-sub.msgs:
			if err := writeTimed(ctx, conn, msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Hub) addSubscriber(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	h.metrics.EventSubscribers.Add(context.Background(), 1)
}

func (h *Hub) removeSubscriber(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	h.metrics.EventSubscribers.Add(context.Background(), -1)
}

func writeTimed(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
