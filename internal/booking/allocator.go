package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/availability"
	"github.com/ariefcatur/go-washbay-booking.git/internal/catalog"
	"github.com/ariefcatur/go-washbay-booking.git/internal/slots"
	"github.com/google/uuid"
)

const (
	DefaultHoldTTL = 5 * time.Minute
	DefaultMinLead = 5 * time.Minute
)

// Allocator serializes all interval-changing operations per bay behind a
// mutex, so at most one of any set of racing requests for overlapping
// intervals ever commits. The lock covers only the ledger write and the
// index update; waiting for payment happens outside it, that is what
// holds are for.
type Allocator struct {
	Catalog *catalog.Catalog
	Ledger  Ledger
	Index   *availability.Index

	HoldTTL time.Duration
	MinLead time.Duration

	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time

	// OnExpired, when set, is called for every hold the allocator expires
	// (sweep or lazily during Request/Confirm). Used to publish booking.expired.
	OnExpired func(*Reservation)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAllocator(cat *catalog.Catalog, ledger Ledger, index *availability.Index) *Allocator {
	return &Allocator{
		Catalog: cat,
		Ledger:  ledger,
		Index:   index,
		HoldTTL: DefaultHoldTTL,
		MinLead: DefaultMinLead,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (a *Allocator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Allocator) resourceLock(resource string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[resource]
	if !ok {
		l = &sync.Mutex{}
		a.locks[resource] = l
	}
	return l
}

// Rebuild loads HELD and CONFIRMED records into the index after a restart.
func (a *Allocator) Rebuild(ctx context.Context) error {
	active, err := a.Ledger.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	for _, r := range active {
		a.Index.Insert(r.ResourceID, r.ID, r.Start, r.End)
	}
	log.Printf("allocator: rebuilt index with %d active reservations", len(active))
	return nil
}

// Request validates the (resource, service, start) triple, then atomically
// checks-and-holds the interval. On success the reservation is HELD with
// expires_at = now + HoldTTL and already committed to the ledger.
func (a *Allocator) Request(ctx context.Context, resourceID, serviceID string, start time.Time, customerRef string, veh Vehicle) (*Reservation, error) {
	svc, ok := a.Catalog.ServiceByID(serviceID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown service %q", ErrInvalidRequest, serviceID)
	}
	res, ok := a.Catalog.ResourceByID(resourceID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource %q", ErrInvalidRequest, resourceID)
	}
	if customerRef == "" {
		return nil, fmt.Errorf("%w: missing customer ref", ErrInvalidRequest)
	}

	now := a.now()
	if start.Before(now.Add(a.MinLead)) {
		return nil, fmt.Errorf("%w: start %s is past or too imminent", ErrInvalidRequest, start.Format(time.RFC3339))
	}
	if !slots.OnGrid(res, svc, start) {
		return nil, fmt.Errorf("%w: start %s is off-grid for %s/%s", ErrInvalidRequest, start.Format(time.RFC3339), resourceID, serviceID)
	}
	end := start.Add(svc.Duration())

	lock := a.resourceLock(resourceID)
	lock.Lock()
	defer lock.Unlock()

	if err := a.expireOverlapsLocked(ctx, resourceID, start, end, now); err != nil {
		return nil, err
	}
	if ids := a.Index.Overlapping(resourceID, start, end); len(ids) > 0 {
		return nil, fmt.Errorf("%w: conflicts with %s", ErrSlotTaken, ids[0])
	}

	expires := now.Add(a.HoldTTL)
	r := &Reservation{
		ID:          uuid.NewString(),
		ResourceID:  resourceID,
		ServiceID:   serviceID,
		Start:       start,
		End:         end,
		CustomerRef: customerRef,
		Vehicle:     veh,
		PriceCents:  svc.PriceCents,
		Status:      StatusHeld,
		CreatedAt:   now,
		ExpiresAt:   &expires,
	}
	if err := a.Ledger.Append(ctx, r); err != nil {
		return nil, err
	}
	a.Index.Insert(resourceID, r.ID, start, end)
	return r, nil
}

// Confirm moves a live hold to CONFIRMED; the payment collaborator's
// success signal drives this. A hold past its deadline is expired on the
// spot and the caller gets ErrAlreadyExpired.
func (a *Allocator) Confirm(ctx context.Context, id string) (*Reservation, error) {
	r, err := a.Ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := a.resourceLock(r.ResourceID)
	lock.Lock()
	defer lock.Unlock()

	// re-read under the lock; status may have moved
	r, err = a.Ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := a.now()
	if r.HoldExpired(now) {
		if err := a.expireLocked(ctx, r); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExpired, id)
	}
	if r.Status != StatusHeld {
		return nil, fmt.Errorf("%w: confirm on %s reservation", ErrInvalidState, r.Status)
	}
	return a.Ledger.UpdateStatus(ctx, id, StatusConfirmed, now)
}

// Cancel is valid on HELD or CONFIRMED and frees the interval.
func (a *Allocator) Cancel(ctx context.Context, id string) (*Reservation, error) {
	r, err := a.Ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := a.resourceLock(r.ResourceID)
	lock.Lock()
	defer lock.Unlock()

	r, err = a.Ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusHeld && r.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: cancel on %s reservation", ErrInvalidState, r.Status)
	}
	upd, err := a.Ledger.UpdateStatus(ctx, id, StatusCancelled, a.now())
	if err != nil {
		return nil, err
	}
	a.Index.Remove(r.ResourceID, id)
	return upd, nil
}

// ExpireDue sweeps holds whose deadline has passed. Idempotent: a hold
// already expired by a concurrent path is skipped, not an error.
func (a *Allocator) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := a.Ledger.DueHolds(ctx, now, 100)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range due {
		lock := a.resourceLock(r.ResourceID)
		lock.Lock()
		cur, err := a.Ledger.Get(ctx, r.ID)
		if err == nil && cur.HoldExpired(now) {
			if err := a.expireLocked(ctx, cur); err == nil {
				n++
			} else {
				log.Printf("allocator: expire %s: %v", cur.ID, err)
			}
		}
		lock.Unlock()
	}
	return n, nil
}

// expireOverlapsLocked reconciles the index against the ledger for every
// interval clashing with [start,end): due holds are expired, and records a
// sibling process already closed (the sweeper, or its payment consumers)
// are evicted here too. The ledger is the source of truth; a local index
// entry for a non-active record must never block a slot.
func (a *Allocator) expireOverlapsLocked(ctx context.Context, resource string, start, end, now time.Time) error {
	for _, id := range a.Index.Overlapping(resource, start, end) {
		r, err := a.Ledger.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			a.Index.Remove(resource, id)
			continue
		}
		if err != nil {
			return err
		}
		if !r.Active() {
			a.Index.Remove(resource, id)
			continue
		}
		if r.HoldExpired(now) {
			if err := a.expireLocked(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// expireLocked commits HELD -> EXPIRED and frees the interval.
// Caller holds the resource lock and has verified HoldExpired.
func (a *Allocator) expireLocked(ctx context.Context, r *Reservation) error {
	upd, err := a.Ledger.UpdateStatus(ctx, r.ID, StatusExpired, a.now())
	if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
		// a sibling process moved the record first; drop the interval unless
		// the record is somehow still live
		if cur, gerr := a.Ledger.Get(ctx, r.ID); gerr == nil && cur.Active() {
			return nil
		}
		a.Index.Remove(r.ResourceID, r.ID)
		return nil
	}
	if err != nil {
		return err
	}
	a.Index.Remove(r.ResourceID, r.ID)
	if a.OnExpired != nil {
		a.OnExpired(upd)
	}
	return nil
}
