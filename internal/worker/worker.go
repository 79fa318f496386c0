package worker

import (
	"context"

	"grocery-mart/internal/broker"
	"grocery-mart/internal/models"
	"grocery-mart/internal/util"

	"go.uber.org/zap"
)

// Broadcaster delivers an event to this instance's admin connections
type Broadcaster interface {
	Broadcast(ctx context.Context, event interface{}) (int, error)
}

// NotificationRelayWorker consumes dashboard events from the order topic and
// broadcasts them to the admin sockets held by this instance.
type NotificationRelayWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	hub          Broadcaster
	logger       *zap.Logger
}

// NewNotificationRelayWorker creates a new relay worker
func NewNotificationRelayWorker(consumer *broker.Consumer, hub Broadcaster) *NotificationRelayWorker {
	w := &NotificationRelayWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		hub:          hub,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnNewOrder(w.relayNewOrder)
	return w
}

func (w *NotificationRelayWorker) relayNewOrder(ctx context.Context, event *models.NewOrderEvent) error {
	n, err := w.hub.Broadcast(ctx, event)
	if err != nil {
		return err
	}
	util.RelayedEventsTotal.WithLabelValues(event.Type).Inc()
	w.logger.Debug("Relayed NEW_ORDER",
		zap.Int64("order_id", event.Order.ID),
		zap.Int("delivered", n))
	return nil
}

// Start blocks until ctx is cancelled or the consumer is closed
func (w *NotificationRelayWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification relay worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationRelayWorker) Stop() error {
	w.logger.Info("Stopping notification relay worker")
	return w.consumer.Close()
}
