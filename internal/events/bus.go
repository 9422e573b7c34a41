package events

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/booking"
	kafkax "github.com/ariefcatur/go-washbay-booking.git/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Bus owns one producer per booking lifecycle topic so each binary wires a
// single dependency instead of four writers.
type Bus struct {
	Service   string
	producers map[string]*kafkax.Producer
}

func NewBus(brokers []string, service string, eventTypes ...string) *Bus {
	b := &Bus{Service: service, producers: make(map[string]*kafkax.Producer, len(eventTypes))}
	for _, et := range eventTypes {
		topic := booking.TopicFor(et)
		if topic == "" {
			log.Printf("events: no topic for %q, skipping", et)
			continue
		}
		b.producers[et] = kafkax.NewProducer(brokers, topic, 1024)
	}
	return b
}

func (b *Bus) Start(ctx context.Context) {
	for _, p := range b.producers {
		p.Start(ctx)
	}
}

// Emit publishes one lifecycle event for a reservation, envelope v1,
// partitioned by reservation id.
func (b *Bus) Emit(eventType string, r *booking.Reservation, traceID string) {
	p, ok := b.producers[eventType]
	if !ok {
		log.Printf("events: emit %s without a producer, dropped", eventType)
		return
	}
	ev := booking.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      b.Service,
		TraceID:       traceID,
		CorrelationID: r.ID,
		Payload:       kafkax.MustMarshal(booking.PayloadFor(r)),
	}
	p.Publish(booking.PartitionKey(r.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
	)
}

func (b *Bus) Close() {
	for _, p := range b.producers {
		p.Close()
	}
}

func (b *Bus) WaitClosed() {
	for _, p := range b.producers {
		p.WaitClosed()
	}
}
