package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/ariefcatur/go-washbay-booking.git/internal/booking"
	"github.com/ariefcatur/go-washbay-booking.git/internal/events"
	kafkax "github.com/ariefcatur/go-washbay-booking.git/internal/kafka"
	"github.com/ariefcatur/go-washbay-booking.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Service bridges the payment collaborator's events onto the allocator:
// payment.authorized confirms a hold, payment.failed cancels it. If the
// collaborator never calls back, the hold expires on its own; nothing here
// is required for correctness, only for promptness.
type Service struct {
	Alloc *booking.Allocator
	Redis *redis.Client
	Bus   *events.Bus
	Name  string
}

// HandleAuthorized is the consumer handler for payment.authorized.
func (s *Service) HandleAuthorized(ctx context.Context, m kafkago.Message) error {
	env, p, ok, err := s.decode(ctx, m, booking.EventPaymentAuthorized)
	if err != nil || !ok {
		return err
	}
	var pay booking.PaymentAuthorizedPayload
	if err := json.Unmarshal(p, &pay); err != nil {
		log.Printf("payments: bad authorized payload: %v", err)
		return nil // poison message, commit and move on
	}

	r, err := s.Alloc.Confirm(ctx, pay.ReservationID)
	if err != nil {
		return s.settle("confirm", pay.ReservationID, err)
	}
	s.Bus.Emit(booking.EventBookingConfirmed, r, env.TraceID)
	return nil
}

// HandleFailed is the consumer handler for payment.failed.
func (s *Service) HandleFailed(ctx context.Context, m kafkago.Message) error {
	env, p, ok, err := s.decode(ctx, m, booking.EventPaymentFailed)
	if err != nil || !ok {
		return err
	}
	var pay booking.PaymentFailedPayload
	if err := json.Unmarshal(p, &pay); err != nil {
		log.Printf("payments: bad failed payload: %v", err)
		return nil
	}

	r, err := s.Alloc.Cancel(ctx, pay.ReservationID)
	if err != nil {
		return s.settle("cancel", pay.ReservationID, err)
	}
	s.Bus.Emit(booking.EventBookingCancelled, r, env.TraceID)
	return nil
}

// decode unwraps the envelope and claims the event id so redeliveries are
// no-ops. ok=false means skip (wrong type or duplicate).
func (s *Service) decode(ctx context.Context, m kafkago.Message, wantType string) (booking.Envelope, json.RawMessage, bool, error) {
	var env booking.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		log.Printf("payments: bad envelope: %v", err)
		return env, nil, false, nil
	}
	if env.EventType != wantType {
		return env, nil, false, nil // ignore
	}
	dkey := fmt.Sprintf(redisx.KeyDedup, s.Name, env.EventID)
	won, err := redisx.Claim(ctx, s.Redis, dkey, "1", redisx.TTLDedup)
	if err != nil {
		// dedup is an accelerator; Confirm/Cancel are idempotent on replay
		log.Printf("payments: dedup check: %v", err)
	} else if !won {
		return env, nil, false, nil
	}
	return env, env.Payload, true, nil
}

// settle decides redelivery: transient faults retry, everything else is a
// terminal outcome for this event.
func (s *Service) settle(op, id string, err error) error {
	if errors.Is(err, booking.ErrUnavailable) {
		return err // nack, let the consumer redeliver
	}
	// AlreadyExpired / InvalidState / NotFound: the booking moved on without
	// us; the autonomous expiry path already handled the slot.
	log.Printf("payments: %s %s: %v", op, id, err)
	return nil
}
