package slots

import (
	"testing"
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/catalog"
)

func testResource() catalog.Resource {
	return catalog.Resource{
		ID:             "bay-1",
		GranularityMin: 20,
		Hours: map[time.Weekday]catalog.Hours{
			time.Monday: {OpenMin: 9 * 60, CloseMin: 18 * 60},
		},
	}
}

// 2026-03-02 is a Monday.
var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func TestGenerateBasic(t *testing.T) {
	res := testResource()
	svc := catalog.Service{ID: "basic", DurationMin: 20}

	out := Generate(res, monday, svc)
	if len(out) != 27 {
		t.Fatalf("want 27 slots, got %d", len(out))
	}
	first := out[0]
	if got := first.Start.Format("15:04"); got != "09:00" {
		t.Fatalf("first start = %s", got)
	}
	if got := first.End.Sub(first.Start); got != 20*time.Minute {
		t.Fatalf("slot length = %v", got)
	}
	last := out[len(out)-1]
	if got := last.Start.Format("15:04"); got != "17:40" {
		t.Fatalf("last start = %s", got)
	}
}

func TestGenerateDurationNotMultipleOfGranularity(t *testing.T) {
	res := testResource()
	svc := catalog.Service{ID: "premium", DurationMin: 30}

	out := Generate(res, monday, svc)
	// 17:40+30 would cross 18:00, so the grid ends at 17:20
	if len(out) != 26 {
		t.Fatalf("want 26 slots, got %d", len(out))
	}
	if got := out[len(out)-1].Start.Format("15:04"); got != "17:20" {
		t.Fatalf("last start = %s", got)
	}
	for _, s := range out {
		if s.End.After(monday.Add(18 * time.Hour)) {
			t.Fatalf("slot %s ends past close", s.Start.Format("15:04"))
		}
	}
}

func TestGenerateClosedDay(t *testing.T) {
	res := testResource()
	sunday := monday.AddDate(0, 0, -1)
	if out := Generate(res, sunday, catalog.Service{ID: "basic", DurationMin: 20}); len(out) != 0 {
		t.Fatalf("closed day must yield empty grid, got %d", len(out))
	}
}

func TestOnGrid(t *testing.T) {
	res := testResource()
	basic := catalog.Service{ID: "basic", DurationMin: 20}
	premium := catalog.Service{ID: "premium", DurationMin: 30}

	cases := []struct {
		name  string
		svc   catalog.Service
		start time.Time
		want  bool
	}{
		{"open slot", basic, monday.Add(9 * time.Hour), true},
		{"mid grid", basic, monday.Add(9*time.Hour + 40*time.Minute), true},
		{"off grid minutes", basic, monday.Add(9*time.Hour + 10*time.Minute), false},
		{"sub-minute precision", basic, monday.Add(9*time.Hour + 30*time.Second), false},
		{"before open", basic, monday.Add(8 * time.Hour), false},
		{"closed day", basic, monday.AddDate(0, 0, -1).Add(9 * time.Hour), false},
		{"last basic slot", basic, monday.Add(17*time.Hour + 40*time.Minute), true},
		{"premium would cross close", premium, monday.Add(17*time.Hour + 40*time.Minute), false},
		{"last premium slot", premium, monday.Add(17*time.Hour + 20*time.Minute), true},
	}
	for _, tc := range cases {
		if got := OnGrid(res, tc.svc, tc.start); got != tc.want {
			t.Errorf("%s: OnGrid=%v want %v", tc.name, got, tc.want)
		}
	}
}

func TestOnGridNormalizesClientOffset(t *testing.T) {
	res := testResource() // no explicit zone: bay runs on UTC
	basic := catalog.Service{ID: "basic", DurationMin: 20}
	plus5 := time.FixedZone("UTC+5", 5*60*60)

	// 09:00+05:00 is 04:00 at the bay; the client's encoding must not count
	if OnGrid(res, basic, time.Date(2026, time.March, 2, 9, 0, 0, 0, plus5)) {
		t.Fatal("04:00 bay time accepted because the client offset reads 09:00")
	}
	// the same instant as 09:00 bay time stays valid in any encoding
	if !OnGrid(res, basic, time.Date(2026, time.March, 2, 14, 0, 0, 0, plus5)) {
		t.Fatal("valid 09:00 instant rejected after re-zoning")
	}
}

func TestGenerateNormalizesDay(t *testing.T) {
	res := testResource()
	basic := catalog.Service{ID: "basic", DurationMin: 20}
	plus5 := time.FixedZone("UTC+5", 5*60*60)

	// an instant inside monday at the bay, encoded with a foreign offset,
	// still yields monday's grid
	out := Generate(res, monday.Add(10*time.Hour).In(plus5), basic)
	if len(out) != 27 {
		t.Fatalf("want 27 slots, got %d", len(out))
	}
	if !out[0].Start.Equal(monday.Add(9 * time.Hour)) {
		t.Fatalf("first start = %s", out[0].Start)
	}
}

func TestOnGridMatchesGenerate(t *testing.T) {
	res := testResource()
	svc := catalog.Service{ID: "deluxe", DurationMin: 45}
	for _, s := range Generate(res, monday, svc) {
		if !OnGrid(res, svc, s.Start) {
			t.Fatalf("generated start %s not accepted by OnGrid", s.Start)
		}
	}
}
