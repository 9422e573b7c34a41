package booking

const (
	TopicBookingHeld       = "booking.held"
	TopicBookingConfirmed  = "booking.confirmed"
	TopicBookingCancelled  = "booking.cancelled"
	TopicBookingExpired    = "booking.expired"
	TopicPaymentAuthorized = "payment.authorized"
	TopicPaymentFailed     = "payment.failed"
)

// TopicFor maps an event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventBookingHeld:
		return TopicBookingHeld
	case EventBookingConfirmed:
		return TopicBookingConfirmed
	case EventBookingCancelled:
		return TopicBookingCancelled
	case EventBookingExpired:
		return TopicBookingExpired
	case EventPaymentAuthorized:
		return TopicPaymentAuthorized
	case EventPaymentFailed:
		return TopicPaymentFailed
	}
	return ""
}

// Partition key = reservation_id so the lifecycle of one booking keeps order.
func PartitionKey(reservationID string) []byte { return []byte(reservationID) }
