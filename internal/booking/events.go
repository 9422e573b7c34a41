package booking

import (
	"encoding/json"
	"time"
)

const (
	EventBookingHeld       = "BookingHeld"
	EventBookingConfirmed  = "BookingConfirmed"
	EventBookingCancelled  = "BookingCancelled"
	EventBookingExpired    = "BookingExpired"
	EventPaymentAuthorized = "PaymentAuthorized"
	EventPaymentFailed     = "PaymentFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "washbay-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // reservation_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload per event ----

type BookingPayload struct {
	ReservationID string     `json:"reservation_id"`
	ResourceID    string     `json:"resource_id"`
	ServiceID     string     `json:"service_id"`
	CustomerRef   string     `json:"customer_ref"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	PriceCents    int        `json:"price_cents"`
	Status        Status     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func PayloadFor(r *Reservation) BookingPayload {
	return BookingPayload{
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		ServiceID:     r.ServiceID,
		CustomerRef:   r.CustomerRef,
		Start:         r.Start,
		End:           r.End,
		PriceCents:    r.PriceCents,
		Status:        r.Status,
		ExpiresAt:     r.ExpiresAt,
	}
}

// PaymentAuthorizedPayload is what the payment collaborator emits on capture.
type PaymentAuthorizedPayload struct {
	ReservationID string `json:"reservation_id"`
	PaymentRef    string `json:"payment_ref"`
	AmountCents   int    `json:"amount_cents"`
}

type PaymentFailedPayload struct {
	ReservationID string `json:"reservation_id"`
	Reason        string `json:"reason"` // e.g. CARD_DECLINED
}
