package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Ledger is the single writer-owned store of reservations; the availability
// index is only ever a projection of it. Append is creation-only, UpdateStatus
// enforces the transition table, so terminal records can never move again.
type Ledger interface {
	Append(ctx context.Context, r *Reservation) error
	UpdateStatus(ctx context.Context, id string, to Status, at time.Time) (*Reservation, error)
	Get(ctx context.Context, id string) (*Reservation, error)
	ListByResourceAndRange(ctx context.Context, resource string, from, to time.Time) ([]*Reservation, error)
	ListByCustomer(ctx context.Context, customerRef string) ([]*Reservation, error)
	// ListActive returns HELD and CONFIRMED records, to rebuild the index on restart.
	ListActive(ctx context.Context) ([]*Reservation, error)
	// DueHolds returns HELD records with expires_at <= now, oldest first.
	DueHolds(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}

// MemoryLedger keeps everything in a map. Used by tests and single-node dev;
// production runs the Postgres ledger.
type MemoryLedger struct {
	mu   sync.RWMutex
	byID map[string]*Reservation
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{byID: make(map[string]*Reservation)}
}

func (l *MemoryLedger) Append(ctx context.Context, r *Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[r.ID]; ok {
		return fmt.Errorf("%w: duplicate id %s", ErrInvalidRequest, r.ID)
	}
	l.byID[r.ID] = r.clone()
	return nil
}

func (l *MemoryLedger) UpdateStatus(ctx context.Context, id string, to Status, at time.Time) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !CanTransition(r.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, r.Status, to)
	}
	r.Status = to
	r.ExpiresAt = nil
	if to == StatusConfirmed {
		t := at
		r.ConfirmedAt = &t
	}
	return r.clone(), nil
}

func (l *MemoryLedger) Get(ctx context.Context, id string) (*Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.clone(), nil
}

func (l *MemoryLedger) ListByResourceAndRange(ctx context.Context, resource string, from, to time.Time) ([]*Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Reservation
	for _, r := range l.byID {
		if r.ResourceID != resource {
			continue
		}
		if r.Start.Before(to) && from.Before(r.End) {
			out = append(out, r.clone())
		}
	}
	sortByStart(out)
	return out, nil
}

func (l *MemoryLedger) ListByCustomer(ctx context.Context, customerRef string) ([]*Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Reservation
	for _, r := range l.byID {
		if r.CustomerRef == customerRef {
			out = append(out, r.clone())
		}
	}
	sortByStart(out)
	return out, nil
}

func (l *MemoryLedger) ListActive(ctx context.Context) ([]*Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Reservation
	for _, r := range l.byID {
		if r.Active() {
			out = append(out, r.clone())
		}
	}
	sortByStart(out)
	return out, nil
}

func (l *MemoryLedger) DueHolds(ctx context.Context, now time.Time, limit int) ([]*Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Reservation
	for _, r := range l.byID {
		if r.HoldExpired(now) {
			out = append(out, r.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByStart(rs []*Reservation) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start.Before(rs[j].Start) })
}
