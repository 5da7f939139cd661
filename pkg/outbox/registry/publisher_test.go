package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.OrderCreatedEvent{
		OrderID:     orderID,
		OrderNumber: "ORD-000042",
		Total:       "36.00",
		Items:       []payloads.OrderLine{{ProductID: uuid.New(), Quantity: 3, UnitPrice: "12.00"}},
	})

	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderNumber != "ORD-000042" || len(payload.Items) != 1 || payload.Items[0].Quantity != 3 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing: %+v", resolved.Envelope)
	}
}

func TestEventRegistryResolvesEveryOrderEvent(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, eventType := range []enums.OutboxEventType{enums.EventOrderCanceled, enums.EventOrderExpired} {
		event := models.OutboxEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{"order_number":"ORD-000001"}`)),
		}
		if _, err := reg.Resolve(event); err != nil {
			t.Fatalf("%s: unexpected error %v", eventType, err)
		}
	}
}

func TestEventRegistryRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("cart_abandoned"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.OutboxAggregateType("cart"),
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"broken envelope": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			if err == nil {
				t.Fatalf("expected error")
			}
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %T", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected error without orders topic")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
