package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/booking"
	"github.com/ariefcatur/go-washbay-booking.git/internal/catalog"
	"github.com/ariefcatur/go-washbay-booking.git/internal/events"
	"github.com/ariefcatur/go-washbay-booking.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type BookingHandler struct {
	Alloc   *booking.Allocator
	Ledger  booking.Ledger
	Catalog *catalog.Catalog
	Bus     *events.Bus
	Redis   *redis.Client
	Service string
}

type CreateBookingReq struct {
	ResourceID string          `json:"resource_id"`
	ServiceID  string          `json:"service_id"`
	Start      time.Time       `json:"start"`
	Vehicle    booking.Vehicle `json:"vehicle"`
}

type ReservationResp struct {
	ID          string          `json:"id"`
	ResourceID  string          `json:"resource_id"`
	ServiceID   string          `json:"service_id"`
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	Status      booking.Status  `json:"status"`
	PriceCents  int             `json:"price_cents"`
	Vehicle     booking.Vehicle `json:"vehicle,omitempty"`
	CustomerRef string          `json:"customer_ref,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
	Idempotent  bool            `json:"idempotent,omitempty"`
}

func toResp(r *booking.Reservation) ReservationResp {
	return ReservationResp{
		ID:          r.ID,
		ResourceID:  r.ResourceID,
		ServiceID:   r.ServiceID,
		Start:       r.Start,
		End:         r.End,
		Status:      r.Status,
		PriceCents:  r.PriceCents,
		Vehicle:     r.Vehicle,
		CustomerRef: r.CustomerRef,
		ExpiresAt:   r.ExpiresAt,
		ConfirmedAt: r.ConfirmedAt,
	}
}

func (h *BookingHandler) Register(r *chi.Mux, auth *Auth) {
	r.Get("/services", h.listServices)
	r.Get("/availability", h.getAvailability)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware)
		pr.Post("/bookings", h.createBooking)
		pr.Get("/bookings", h.listMine)
		pr.Get("/bookings/{id}", h.getBooking)
		pr.Post("/bookings/{id}/cancel", h.cancelBooking)

		pr.Group(func(ar chi.Router) {
			ar.Use(RequireAdmin)
			ar.Post("/bookings/{id}/confirm", h.confirmBooking)
			ar.Get("/admin/bookings", h.adminList)
		})
	})
}

// statusFor maps the booking error taxonomy onto HTTP. ErrUnavailable is the
// only retryable kind and gets 503.
func statusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrSlotTaken):
		return http.StatusConflict
	case errors.Is(err, booking.ErrAlreadyExpired):
		return http.StatusGone
	case errors.Is(err, booking.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, booking.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *BookingHandler) listServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"services":  h.Catalog.Services(),
		"resources": h.Catalog.Resources(),
	})
}

func (h *BookingHandler) getAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource, service, date := q.Get("resource"), q.Get("service"), q.Get("date")
	if resource == "" || service == "" || date == "" {
		writeError(w, http.StatusBadRequest, "resource, service and date are required")
		return
	}
	res, ok := h.Catalog.ResourceByID(resource)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown resource")
		return
	}
	// the date names a calendar day at the bay, not at the client
	day, err := time.ParseInLocation("2006-01-02", date, res.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// try cache first; availability moves fast so the TTL is short
	key := fmt.Sprintf(redisx.KeySlots, resource, date, service)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	views, err := h.Alloc.SlotStatuses(ctx, resource, service, day)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	body := map[string]any{"resource_id": resource, "service_id": service, "date": date, "slots": views}
	b, _ := json.Marshal(body)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLSlotsCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *BookingHandler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ResourceID == "" || req.ServiceID == "" || req.Start.IsZero() {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	customer := CustomerRef(ctx)

	// fast-path idempotency via Redis; the ledger stays the source of truth
	idemKey := ""
	if ik := r.Header.Get("Idempotency-Key"); ik != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemBooking, ik)
		if id, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && id != "" {
			if prev, err := h.Ledger.Get(ctx, id); err == nil && prev.CustomerRef == customer {
				resp := toResp(prev)
				resp.Idempotent = true
				writeJSON(w, http.StatusOK, resp)
				return
			}
		}
	}

	res, err := h.Alloc.Request(ctx, req.ResourceID, req.ServiceID, req.Start, customer, req.Vehicle)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if idemKey != "" {
		_ = h.Redis.Set(ctx, idemKey, res.ID, redisx.TTLIdempotency).Err()
	}
	h.Bus.Emit(booking.EventBookingHeld, res, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusCreated, toResp(res))
}

func (h *BookingHandler) getBooking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Ledger.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if res.CustomerRef != CustomerRef(ctx) && !IsAdmin(ctx) {
		writeError(w, http.StatusNotFound, booking.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResp(res))
}

func (h *BookingHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rs, err := h.Ledger.ListByCustomer(ctx, CustomerRef(ctx))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	out := make([]ReservationResp, 0, len(rs))
	for _, res := range rs {
		out = append(out, toResp(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

func (h *BookingHandler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	id := chi.URLParam(r, "id")

	cur, err := h.Ledger.Get(ctx, id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if cur.CustomerRef != CustomerRef(ctx) && !IsAdmin(ctx) {
		writeError(w, http.StatusNotFound, booking.ErrNotFound.Error())
		return
	}

	res, err := h.Alloc.Cancel(ctx, id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.Bus.Emit(booking.EventBookingCancelled, res, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusOK, toResp(res))
}

// confirmBooking is the webhook-style fallback for payment confirmation;
// the normal path is the payment.authorized consumer.
func (h *BookingHandler) confirmBooking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Alloc.Confirm(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.Bus.Emit(booking.EventBookingConfirmed, res, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusOK, toResp(res))
}

func (h *BookingHandler) adminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource := q.Get("resource")
	if resource == "" {
		writeError(w, http.StatusBadRequest, "resource is required")
		return
	}
	from, err := parseTimeParam(q.Get("from"), time.Now().AddDate(0, 0, -7))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be RFC3339")
		return
	}
	to, err := parseTimeParam(q.Get("to"), time.Now().AddDate(0, 0, 7))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be RFC3339")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rs, err := h.Ledger.ListByResourceAndRange(ctx, resource, from, to)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	out := make([]ReservationResp, 0, len(rs))
	for _, res := range rs {
		out = append(out, toResp(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"resource_id": resource, "bookings": out})
}

func parseTimeParam(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, s)
}
