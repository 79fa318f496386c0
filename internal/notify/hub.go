// Package notify keeps the set of live admin dashboard sockets and fans
// events out to them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"grocery-mart/internal/models"
	"grocery-mart/internal/util"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Subscriber is one admin connection as the hub sees it
type Subscriber interface {
	// ID identifies the connection, not the admin account behind it
	ID() string
	IsOpen() bool
	// Enqueue hands payload to the connection's writer without blocking.
	// It returns false when the payload was dropped.
	Enqueue(payload []byte) bool
}

// Hub is the registry of admin connections
type Hub struct {
	mu   sync.RWMutex
	subs map[string]Subscriber

	// broadcastMu orders concurrent broadcasts so every connection sees them in the same sequence
	broadcastMu sync.Mutex

	upgrader      websocket.Upgrader
	sendQueueSize int
	logger        *zap.Logger
}

type Option func(*Hub)

// WithSendQueueSize bounds how many messages may wait for a slow connection
func WithSendQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendQueueSize = n
		}
	}
}

// WithAllowedOrigin restricts upgrades to requests from origin (or without an Origin header)
func WithAllowedOrigin(origin string) Option {
	return func(h *Hub) {
		if origin == "" {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == origin
		}
	}
}

// NewHub creates an empty hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:          make(map[string]Subscriber),
		sendQueueSize: 64,
		logger:        util.GetLogger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a connection; registering the same connection twice is a no-op
func (h *Hub) Register(sub Subscriber) {
	h.mu.Lock()
	h.subs[sub.ID()] = sub
	n := len(h.subs)
	h.mu.Unlock()

	util.AdminConnections.Set(float64(n))
	h.logger.Info("Admin connected", zap.String("conn_id", sub.ID()), zap.Int("connections", n))
}

// Unregister removes a connection if it is still registered
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	cur, ok := h.subs[sub.ID()]
	if ok && cur == sub {
		delete(h.subs, sub.ID())
	}
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		util.AdminConnections.Set(float64(n))
		h.logger.Info("Admin disconnected", zap.String("conn_id", sub.ID()), zap.Int("connections", n))
	}
}

// Count returns the number of registered connections
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast serializes event once and enqueues the same bytes on every open
// connection registered at call time. Connections that are not open, or
// whose queue is full, miss the event; nothing is buffered for later.
func (h *Hub) Broadcast(ctx context.Context, event interface{}) (int, error) {
	_, span := util.StartSpan(ctx, "Hub.Broadcast")
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()

	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	util.BroadcastsTotal.Inc()

	delivered := 0
	for _, s := range subs {
		if !s.IsOpen() {
			util.BroadcastSkippedTotal.WithLabelValues("not_open").Inc()
			continue
		}
		if !s.Enqueue(payload) {
			util.BroadcastSkippedTotal.WithLabelValues("queue_full").Inc()
			h.logger.Warn("Dropped broadcast for slow admin connection", zap.String("conn_id", s.ID()))
			continue
		}
		delivered++
	}

	util.BroadcastDeliveriesTotal.Add(float64(delivered))
	span.SetAttributes(
		attribute.Int("connections", len(subs)),
		attribute.Int("delivered", delivered))
	return delivered, nil
}

// NotifyNewOrder broadcasts a NEW_ORDER event. Having no admins connected is not an error.
func (h *Hub) NotifyNewOrder(ctx context.Context, event *models.NewOrderEvent) error {
	n, err := h.Broadcast(ctx, event)
	if err != nil {
		return err
	}
	h.logger.Debug("NEW_ORDER broadcast",
		zap.Int64("order_id", event.Order.ID),
		zap.Int("delivered", n))
	return nil
}

// ServeWS upgrades an admin dashboard request and registers the connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(h, conn, h.sendQueueSize)
	h.Register(c)

	go c.writePump()
	go c.readPump()
}

// Shutdown closes every registered connection
func (h *Hub) Shutdown() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]Subscriber)
	h.mu.Unlock()

	util.AdminConnections.Set(0)
	for _, s := range subs {
		if c, ok := s.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}
