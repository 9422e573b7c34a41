package slots

import (
	"time"

	"github.com/ariefcatur/go-washbay-booking.git/internal/catalog"
)

// Slot is a candidate interval, derived on demand and never stored.
type Slot struct {
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// Generate lists the candidate starts for one bay, day and service:
// from open, step by granularity while start+duration stays <= close.
// A closed weekday yields an empty grid, which is a valid answer, not an
// error. The day is normalized to the bay's zone first; callers may pass
// it in any location.
func Generate(res catalog.Resource, day time.Time, svc catalog.Service) []Slot {
	day = day.In(res.Location())
	hours, open := res.Hours[day.Weekday()]
	if !open {
		return nil
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dur := svc.Duration()

	var out []Slot
	for m := hours.OpenMin; m+svc.DurationMin <= hours.CloseMin; m += res.GranularityMin {
		start := midnight.Add(time.Duration(m) * time.Minute)
		out = append(out, Slot{ResourceID: res.ID, Start: start, End: start.Add(dur)})
	}
	return out
}

// OnGrid reports whether start is one of Generate's candidate starts,
// without materializing the grid. The wall clock is read in the bay's
// zone; the offset a client encoded the instant with carries no meaning.
func OnGrid(res catalog.Resource, svc catalog.Service, start time.Time) bool {
	start = start.In(res.Location())
	if start.Second() != 0 || start.Nanosecond() != 0 {
		return false
	}
	hours, open := res.Hours[start.Weekday()]
	if !open {
		return false
	}
	m := start.Hour()*60 + start.Minute()
	if m < hours.OpenMin || (m-hours.OpenMin)%res.GranularityMin != 0 {
		return false
	}
	return m+svc.DurationMin <= hours.CloseMin
}
