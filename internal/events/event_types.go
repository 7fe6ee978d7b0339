package events

import (
	"time"

	"github.com/spec-kit/realty-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountActivated    EventType = "account_activated"
	EventConnectionRequested EventType = "connection_requested"
	EventConnectionAccepted  EventType = "connection_accepted"
	EventConnectionRejected  EventType = "connection_rejected"
	EventEntitlementGranted  EventType = "entitlement_granted"
)

// Actor identifies the account that caused an event. Empty for system actions.
type Actor struct {
	AccountID string      `json:"account_id,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AccountActivatedPayload payload.
type AccountActivatedPayload struct {
	Email         string      `json:"email"`
	Role          domain.Role `json:"role"`
	FullName      string      `json:"full_name"`
	PaymentGated  bool        `json:"payment_gated"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// ConnectionPayload is shared by connection request events.
type ConnectionPayload struct {
	RequestID    string                  `json:"request_id"`
	BuyerID      string                  `json:"buyer_id"`
	RealtorID    string                  `json:"realtor_id"`
	Status       domain.ConnectionStatus `json:"status"`
	AutoRejected bool                    `json:"auto_rejected,omitempty"`
}

// EntitlementGrantedPayload payload.
type EntitlementGrantedPayload struct {
	Kind           string    `json:"kind"`
	EventID        string    `json:"event_id"`
	ExpiresAt      time.Time `json:"expires_at"`
	ExtensionsUsed int       `json:"extensions_used"`
}
