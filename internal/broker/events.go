package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"grocery-mart/internal/models"
	"grocery-mart/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// errReaderClosed is what kafka-go returns from a reader after Close
var errReaderClosed = io.EOF

// EventPublisher publishes dashboard events to the order topic
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// NotifyNewOrder publishes a NEW_ORDER event keyed by order so a single
// order's events stay on one partition.
func (ep *EventPublisher) NotifyNewOrder(ctx context.Context, event *models.NewOrderEvent) error {
	ctx, span := util.StartSpan(ctx, "EventPublisher.NotifyNewOrder")
	defer span.End()

	key := fmt.Sprintf("order-%d", event.Order.ID)
	return ep.producer.PublishEvent(ctx, key, event)
}

type envelope struct {
	Type string `json:"type"`
}

// EventHandler routes incoming events by their type field
type EventHandler struct {
	onNewOrder func(context.Context, *models.NewOrderEvent) error
	logger     *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnNewOrder registers a handler for NEW_ORDER events
func (eh *EventHandler) OnNewOrder(handler func(context.Context, *models.NewOrderEvent) error) {
	eh.onNewOrder = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	switch env.Type {
	case models.EventTypeNewOrder:
		if eh.onNewOrder == nil {
			return nil
		}
		var event models.NewOrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal NEW_ORDER event: %w", err)
		}
		return eh.onNewOrder(ctx, &event)

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", env.Type))
	}

	return nil
}
