package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/slots"
)

const (
	SlotAvailable = "available"
	SlotHeld      = "held"
	SlotBooked    = "booked"
)

// SlotView is one grid entry of the availability surface the UI renders.
type SlotView struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"` // available | held | booked
}

// SlotStatuses renders the day grid for one bay and service, tagging each
// candidate slot with its occupancy. Due holds found on the way are expired
// so the surface never shows a phantom-blocked slot for long.
func (a *Allocator) SlotStatuses(ctx context.Context, resourceID, serviceID string, day time.Time) ([]SlotView, error) {
	svc, ok := a.Catalog.ServiceByID(serviceID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown service %q", ErrInvalidRequest, serviceID)
	}
	res, ok := a.Catalog.ResourceByID(resourceID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource %q", ErrInvalidRequest, resourceID)
	}
	grid := slots.Generate(res, day, svc)
	if len(grid) == 0 {
		return []SlotView{}, nil // closed day
	}

	lock := a.resourceLock(resourceID)
	lock.Lock()
	defer lock.Unlock()

	now := a.now()
	if err := a.expireOverlapsLocked(ctx, resourceID, grid[0].Start, grid[len(grid)-1].End, now); err != nil {
		return nil, err
	}

	statusByID := make(map[string]Status)
	out := make([]SlotView, 0, len(grid))
	for _, s := range grid {
		view := SlotView{Start: s.Start, End: s.End, Status: SlotAvailable}
		for _, id := range a.Index.Overlapping(resourceID, s.Start, s.End) {
			st, ok := statusByID[id]
			if !ok {
				r, err := a.Ledger.Get(ctx, id)
				if errors.Is(err, ErrNotFound) {
					a.Index.Remove(resourceID, id)
					continue
				}
				if err != nil {
					return nil, err
				}
				if !r.Active() {
					// closed by a sibling process; never render it occupied
					a.Index.Remove(resourceID, id)
					continue
				}
				st = r.Status
				statusByID[id] = st
			}
			if st == StatusConfirmed {
				view.Status = SlotBooked
				break
			}
			view.Status = SlotHeld
		}
		out = append(out, view)
	}
	return out, nil
}
