package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// EventWriter sends one keyed message; *Producer implements it
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher forwards bus events to the other instances
type EventPublisher struct {
	writer EventWriter
	origin string
	logger *zap.Logger
}

// NewEventPublisher creates a new event publisher. origin identifies this instance.
func NewEventPublisher(writer EventWriter, origin string) *EventPublisher {
	return &EventPublisher{writer: writer, origin: origin, logger: util.GetLogger()}
}

// Attach subscribes the publisher to every bus event and returns the unsubscribe func.
// Events raised while handling a peer notification and the instance-local
// catalog_ready signal are not forwarded.
func (ep *EventPublisher) Attach(bus *events.Bus) func() {
	return bus.SubscribeAll(func(ctx context.Context, e events.Event) {
		if events.FromPeer(ctx) || e.Name() == models.EventTypeCatalogReady {
			return
		}

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := ep.Publish(pctx, e); err != nil {
			ep.logger.Error("Failed to forward event", zap.String("event_type", e.Name()), zap.Error(err))
		}
	})
}

// Publish wraps the event in an envelope and writes it under its partition key
func (ep *EventPublisher) Publish(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", e.Name(), err)
	}

	envelope := models.Envelope{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: e.Name(),
			Timestamp: time.Now(),
			Origin:    ep.origin,
		},
		Payload: payload,
	}
	return ep.writer.PublishEvent(ctx, partitionKey(e), envelope)
}

func partitionKey(e events.Event) string {
	switch ev := e.(type) {
	case events.OrderCreated:
		return "order-" + ev.OrderID
	case events.OrderStatusChanged:
		return "order-" + ev.OrderID
	case events.OrderDeleted:
		return "order-" + ev.OrderID
	case events.InventoryRecorded:
		return "inventory"
	default:
		return "products"
	}
}

// EventHandler routes incoming envelopes from other instances
type EventHandler struct {
	self              string
	onProductsUpdated func(context.Context, models.Envelope) error
	onOrdersChanged   func(context.Context, models.Envelope) error
	logger            *zap.Logger
}

// NewEventHandler creates a new event handler. Envelopes whose origin is self are skipped.
func NewEventHandler(self string) *EventHandler {
	return &EventHandler{self: self, logger: util.GetLogger()}
}

// OnProductsUpdated registers a handler for catalog changes
func (eh *EventHandler) OnProductsUpdated(handler func(context.Context, models.Envelope) error) {
	eh.onProductsUpdated = handler
}

// OnOrdersChanged registers a handler for order created, status changed and deleted events
func (eh *EventHandler) OnOrdersChanged(handler func(context.Context, models.Envelope) error) {
	eh.onOrdersChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var envelope models.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	if envelope.Origin == eh.self {
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", envelope.EventType),
		zap.String("event_id", envelope.EventID),
		zap.String("origin", envelope.Origin))

	ctx = events.WithPeerOrigin(ctx)

	switch envelope.EventType {
	case models.EventTypeProductsUpdated:
		if eh.onProductsUpdated != nil {
			return eh.onProductsUpdated(ctx, envelope)
		}

	case models.EventTypeOrderCreated, models.EventTypeOrderStatusChanged, models.EventTypeOrderDeleted:
		if eh.onOrdersChanged != nil {
			return eh.onOrdersChanged(ctx, envelope)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("event_type", envelope.EventType))
	}

	return nil
}
