package booking

import "errors"

// Error taxonomy. Callers match with errors.Is; everything else that bubbles
// out of a store is wrapped in ErrUnavailable so it is never mistaken for a
// definitive free/taken answer.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrSlotTaken      = errors.New("slot taken")
	ErrAlreadyExpired = errors.New("hold already expired")
	ErrInvalidState   = errors.New("invalid state for transition")
	ErrNotFound       = errors.New("reservation not found")
	ErrUnavailable    = errors.New("storage unavailable")
)
