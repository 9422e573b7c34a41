package expiry

import (
	"context"
	"log"
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/booking"
)

const DefaultInterval = 5 * time.Second

// Sweeper drives the time side of the hold lifecycle: every Interval it asks
// the allocator to expire due holds. The interval bounds how long an
// abandoned payment flow can keep a slot occupied.
type Sweeper struct {
	Alloc    *booking.Allocator
	Interval time.Duration

	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *Sweeper) Run(ctx context.Context) error {
	iv := s.Interval
	if iv <= 0 {
		iv = DefaultInterval
	}
	t := time.NewTicker(iv)
	defer t.Stop()

	// kick immediately
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	n, err := s.Alloc.ExpireDue(ctx, now)
	if err != nil {
		log.Printf("sweeper: expire due holds: %v", err)
		return
	}
	if n > 0 {
		log.Printf("sweeper: expired %d holds", n)
	}
}
