package assets

import (
	"encoding/json"
	"time"
)

const (
	EventPaymentAuthorized = "PaymentAuthorized"
	EventAssetsRendered    = "OrderAssetsRendered"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// PaymentAuthorizedPayload arrives from the order-fulfillment service only
// after the order's payment-confirmed transition. Rendering is never
// triggered any earlier than this event.
type PaymentAuthorizedPayload struct {
	OrderID     string      `json:"order_id"`
	PaymentRef  string      `json:"payment_ref"`
	AmountCents int         `json:"amount_cents"`
	Items       []OrderItem `json:"items"`
}

type AssetsRenderedPayload struct {
	OrderID string         `json:"order_id"`
	Results []RenderResult `json:"results"`
}
