package expiry

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/availability"
	"github.com/ariefcatur/go-washbay-booking.git/internal/booking"
	"github.com/ariefcatur/go-washbay-booking.git/internal/catalog"
)

func TestSweeperExpiresDueHolds(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC) // Monday
	now := day.Add(8 * time.Hour)

	a := booking.NewAllocator(catalog.Default(), booking.NewMemoryLedger(), availability.New())
	a.HoldTTL = 5 * time.Minute
	a.MinLead = time.Minute
	a.Now = func() time.Time { return now }

	r, err := a.Request(ctx, "bay-1", "basic", day.Add(9*time.Hour), "cust-a", booking.Vehicle{})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	// sweep sees a clock past the hold deadline
	sw := &Sweeper{
		Alloc:    a,
		Interval: 5 * time.Millisecond,
		Now:      func() time.Time { return now.Add(10 * time.Minute) },
	}
	runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := sw.Run(runCtx); err != context.DeadlineExceeded {
		t.Fatalf("run: %v", err)
	}

	got, err := a.Ledger.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != booking.StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", got.Status)
	}
	if !a.Index.IsFree("bay-1", r.Start, r.End) {
		t.Fatal("swept hold must free its interval")
	}
}
