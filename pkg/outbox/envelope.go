package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActorKindCustomer = "customer"
	ActorKindUser     = "user"
	ActorKindSystem   = "system"
)

// ActorRef identifies who produced the event. Guest checkouts carry only the session.
type ActorRef struct {
	Kind      string     `json:"kind"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
