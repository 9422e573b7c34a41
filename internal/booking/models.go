package booking

import "time"

// Vehicle is what the booking wizard collects about the car.
// Stored as-is, shown in the admin listing; no validation beyond size caps.
type Vehicle struct {
	Type         string `json:"type,omitempty"`
	Model        string `json:"model,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
}

// Reservation is the durable record of a wash-bay booking.
// End is frozen at creation (start + service duration at that time);
// later catalog edits never move existing reservations.
type Reservation struct {
	ID          string
	ResourceID  string
	ServiceID   string
	Start       time.Time
	End         time.Time
	CustomerRef string
	Vehicle     Vehicle
	PriceCents  int
	Status      Status
	CreatedAt   time.Time
	ConfirmedAt *time.Time
	ExpiresAt   *time.Time // set only while HELD
}

// Active reports whether the reservation still occupies its interval.
func (r *Reservation) Active() bool {
	return r.Status == StatusHeld || r.Status == StatusConfirmed
}

// HoldExpired reports whether a HELD reservation is past its deadline.
func (r *Reservation) HoldExpired(now time.Time) bool {
	return r.Status == StatusHeld && r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

func (r *Reservation) clone() *Reservation {
	cp := *r
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		cp.ConfirmedAt = &t
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
