package enums

import "fmt"

// OutboxAggregateType maps to outbox_events.aggregate_type.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to outbox_events.event_type.
type OutboxEventType string

const (
	EventOrderCreated  OutboxEventType = "order_created"
	EventOrderCanceled OutboxEventType = "order_canceled"
	EventOrderExpired  OutboxEventType = "order_expired"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCanceled,
	EventOrderExpired,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
