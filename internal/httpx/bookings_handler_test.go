package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-washbay-booking.git/internal/availability"
	"github.com/ariefcatur/go-washbay-booking.git/internal/booking"
	"github.com/ariefcatur/go-washbay-booking.git/internal/catalog"
	"github.com/ariefcatur/go-washbay-booking.git/internal/events"
	"github.com/ariefcatur/go-washbay-booking.git/internal/redisx"
	"github.com/golang-jwt/jwt/v5"
)

// 2026-03-02 is a Monday; bays open 09:00-18:00 UTC.
var bookingDay = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func newBookingServer(t *testing.T) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redisx.New(srv.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	cat := catalog.Default()
	led := booking.NewMemoryLedger()
	alloc := booking.NewAllocator(cat, led, availability.New())
	now := bookingDay.Add(8 * time.Hour) // 08:00 on booking day
	alloc.Now = func() time.Time { return now }

	// never started: messages just buffer, no broker needed
	bus := events.NewBus([]string{"localhost:9092"}, "washbay-test",
		booking.EventBookingHeld,
		booking.EventBookingConfirmed,
		booking.EventBookingCancelled,
	)

	r := NewRouter()
	auth := &Auth{Secret: testSecret}
	bh := &BookingHandler{Alloc: alloc, Ledger: led, Catalog: cat, Bus: bus, Redis: rdb, Service: "washbay-test"}
	bh.Register(r, auth)
	return r, srv
}

func doReq(t *testing.T, h http.Handler, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResp(t *testing.T, rec *httptest.ResponseRecorder) ReservationResp {
	t.Helper()
	var out ReservationResp
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v (body %s)", err, rec.Body.String())
	}
	return out
}

func createReq(start time.Time) map[string]any {
	return map[string]any{
		"resource_id": "bay-1",
		"service_id":  "premium",
		"start":       start.Format(time.RFC3339),
		"vehicle":     map[string]string{"type": "suv", "model": "Kodiaq", "license_plate": "B-WA 1234"},
	}
}

func TestCreateBookingFlow(t *testing.T) {
	h, _ := newBookingServer(t)
	cust := signToken(t, jwt.MapClaims{"sub": "cust-1"})
	other := signToken(t, jwt.MapClaims{"sub": "cust-2"})
	admin := signToken(t, jwt.MapClaims{"sub": "ops-1", "role": "admin"})
	body := createReq(bookingDay.Add(10 * time.Hour))

	rec := doReq(t, h, "POST", "/bookings", cust, body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	got := decodeResp(t, rec)
	if got.Status != booking.StatusHeld || got.PriceCents != 2600 {
		t.Fatalf("created %+v", got)
	}
	if !got.End.Equal(bookingDay.Add(10*time.Hour + 30*time.Minute)) {
		t.Fatalf("end = %s", got.End)
	}
	if got.Vehicle.LicensePlate != "B-WA 1234" {
		t.Fatalf("vehicle = %+v", got.Vehicle)
	}

	// same slot by someone else -> conflict
	if rec := doReq(t, h, "POST", "/bookings", other, body, nil); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate slot: %d", rec.Code)
	}
	// off-grid start -> bad request
	if rec := doReq(t, h, "POST", "/bookings", cust, createReq(bookingDay.Add(10*time.Hour+10*time.Minute)), nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("off-grid: %d", rec.Code)
	}

	// owner and admin can read it, a stranger gets 404
	path := "/bookings/" + got.ID
	if rec := doReq(t, h, "GET", path, cust, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("owner get: %d", rec.Code)
	}
	if rec := doReq(t, h, "GET", path, other, nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("stranger get: %d", rec.Code)
	}
	if rec := doReq(t, h, "GET", path, admin, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin get: %d", rec.Code)
	}

	// cancel: stranger 404, owner 200, second cancel conflicts
	if rec := doReq(t, h, "POST", path+"/cancel", other, nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("stranger cancel: %d", rec.Code)
	}
	rec = doReq(t, h, "POST", path+"/cancel", cust, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeResp(t, rec); got.Status != booking.StatusCancelled {
		t.Fatalf("cancelled status = %s", got.Status)
	}
	if rec := doReq(t, h, "POST", path+"/cancel", cust, nil, nil); rec.Code != http.StatusConflict {
		t.Fatalf("double cancel: %d", rec.Code)
	}
}

func TestIdempotencyKeyReplay(t *testing.T) {
	h, _ := newBookingServer(t)
	cust := signToken(t, jwt.MapClaims{"sub": "cust-1"})
	other := signToken(t, jwt.MapClaims{"sub": "cust-2"})
	body := createReq(bookingDay.Add(11 * time.Hour))
	hdr := map[string]string{"Idempotency-Key": "wizard-77"}

	rec := doReq(t, h, "POST", "/bookings", cust, body, hdr)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create: %d %s", rec.Code, rec.Body.String())
	}
	first := decodeResp(t, rec)

	// same key, same customer: replayed, not re-allocated
	rec = doReq(t, h, "POST", "/bookings", cust, body, hdr)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay: %d %s", rec.Code, rec.Body.String())
	}
	second := decodeResp(t, rec)
	if second.ID != first.ID || !second.Idempotent {
		t.Fatalf("replay got id=%s idempotent=%v, want %s", second.ID, second.Idempotent, first.ID)
	}

	// same key from another customer must not leak the reservation
	if rec := doReq(t, h, "POST", "/bookings", other, body, hdr); rec.Code != http.StatusConflict {
		t.Fatalf("foreign key reuse: %d", rec.Code)
	}
}

func TestConfirmEndpoint(t *testing.T) {
	h, _ := newBookingServer(t)
	cust := signToken(t, jwt.MapClaims{"sub": "cust-1"})
	admin := signToken(t, jwt.MapClaims{"sub": "ops-1", "role": "admin"})

	rec := doReq(t, h, "POST", "/bookings", cust, createReq(bookingDay.Add(12*time.Hour)), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	id := decodeResp(t, rec).ID

	if rec := doReq(t, h, "POST", "/bookings/"+id+"/confirm", cust, nil, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("customer confirm: %d", rec.Code)
	}
	rec = doReq(t, h, "POST", "/bookings/"+id+"/confirm", admin, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin confirm: %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeResp(t, rec); got.Status != booking.StatusConfirmed {
		t.Fatalf("confirmed status = %s", got.Status)
	}
	if rec := doReq(t, h, "POST", "/bookings/"+id+"/confirm", admin, nil, nil); rec.Code != http.StatusConflict {
		t.Fatalf("double confirm: %d", rec.Code)
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	h, srv := newBookingServer(t)

	if rec := doReq(t, h, "GET", "/availability", "", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing params: %d", rec.Code)
	}
	if rec := doReq(t, h, "GET", "/availability?resource=bay-9&service=basic&date=2026-03-02", "", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown resource: %d", rec.Code)
	}
	if rec := doReq(t, h, "GET", "/availability?resource=bay-1&service=basic&date=02.03.2026", "", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: %d", rec.Code)
	}

	rec := doReq(t, h, "GET", "/availability?resource=bay-1&service=basic&date=2026-03-02", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("availability: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Slots []booking.SlotView `json:"slots"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Slots) != 27 {
		t.Fatalf("want 27 basic slots, got %d", len(out.Slots))
	}

	// rendered grid lands in the cache
	if !srv.Exists(fmt.Sprintf(redisx.KeySlots, "bay-1", "2026-03-02", "basic")) {
		t.Fatal("availability response not cached")
	}
	if rec := doReq(t, h, "GET", "/availability?resource=bay-1&service=basic&date=2026-03-02", "", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("cached availability: %d", rec.Code)
	}
}

func TestListMineAndAdmin(t *testing.T) {
	h, _ := newBookingServer(t)
	cust1 := signToken(t, jwt.MapClaims{"sub": "cust-1"})
	cust2 := signToken(t, jwt.MapClaims{"sub": "cust-2"})
	admin := signToken(t, jwt.MapClaims{"sub": "ops-1", "role": "admin"})

	rec := doReq(t, h, "POST", "/bookings", cust1, createReq(bookingDay.Add(10*time.Hour)), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create 1: %d", rec.Code)
	}
	mine := decodeResp(t, rec).ID
	if rec := doReq(t, h, "POST", "/bookings", cust2, createReq(bookingDay.Add(11*time.Hour)), nil); rec.Code != http.StatusCreated {
		t.Fatalf("create 2: %d", rec.Code)
	}

	rec = doReq(t, h, "GET", "/bookings", cust1, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list mine: %d", rec.Code)
	}
	var listed struct {
		Bookings []ReservationResp `json:"bookings"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Bookings) != 1 || listed.Bookings[0].ID != mine {
		t.Fatalf("mine = %+v", listed.Bookings)
	}

	adminPath := "/admin/bookings?resource=bay-1&from=2026-03-02T00:00:00Z&to=2026-03-03T00:00:00Z"
	if rec := doReq(t, h, "GET", adminPath, cust1, nil, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("customer on admin listing: %d", rec.Code)
	}
	rec = doReq(t, h, "GET", adminPath, admin, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin listing: %d %s", rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Bookings) != 2 {
		t.Fatalf("admin sees %d bookings", len(listed.Bookings))
	}
	if rec := doReq(t, h, "GET", "/admin/bookings", admin, nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing resource param: %d", rec.Code)
	}
}

func TestStatusForMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{booking.ErrInvalidRequest, http.StatusBadRequest},
		{booking.ErrNotFound, http.StatusNotFound},
		{booking.ErrSlotTaken, http.StatusConflict},
		{booking.ErrAlreadyExpired, http.StatusGone},
		{booking.ErrInvalidState, http.StatusConflict},
		{booking.ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(fmt.Errorf("op: %w", tc.err)); got != tc.want {
			t.Errorf("%v -> %d, want %d", tc.err, got, tc.want)
		}
	}
}
