package redisx

import "time"

const (
	// Idempotent booking create: idem:booking:create:{idempotency_key} -> reservation_id
	KeyIdemBooking = "idem:booking:create:%s"

	// Availability surface cache: slots:{resource_id}:{date}:{service_id} -> JSON slot list
	KeySlots = "slots:%s:%s:%s"

	// Dedup event processing: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLSlotsCache  = 10 * time.Second
	TTLDedup       = 48 * time.Hour
)
