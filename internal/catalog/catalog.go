package catalog

import (
	"fmt"
	"sort"
	"time"
)

// Service is a wash package: immutable after Load.
type Service struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration_min"`
	PriceCents  int    `json:"price_cents"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMin) * time.Minute
}

// Hours are open/close as minutes since midnight, half-open [Open, Close).
type Hours struct {
	OpenMin  int
	CloseMin int
}

// Resource is a wash bay. A weekday missing from Hours is a closed day.
// Hours are wall clock in Loc; instants arrive from clients in arbitrary
// offsets and are normalized to Loc before any grid or hours check.
type Resource struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	GranularityMin int                    `json:"granularity_min"`
	Loc            *time.Location         `json:"-"`
	Hours          map[time.Weekday]Hours `json:"-"`
}

// Location never returns nil; a bay without an explicit zone runs on UTC.
func (r Resource) Location() *time.Location {
	if r.Loc == nil {
		return time.UTC
	}
	return r.Loc
}

type Catalog struct {
	services  map[string]Service
	resources map[string]Resource
}

func New(services []Service, resources []Resource) (*Catalog, error) {
	c := &Catalog{
		services:  make(map[string]Service, len(services)),
		resources: make(map[string]Resource, len(resources)),
	}
	for _, s := range services {
		if s.ID == "" || s.DurationMin <= 0 || s.PriceCents < 0 {
			return nil, fmt.Errorf("catalog: bad service %q", s.ID)
		}
		c.services[s.ID] = s
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("catalog: at least one resource required")
	}
	for _, r := range resources {
		if r.ID == "" || r.GranularityMin <= 0 {
			return nil, fmt.Errorf("catalog: bad resource %q", r.ID)
		}
		for wd, h := range r.Hours {
			if h.OpenMin < 0 || h.CloseMin > 24*60 || h.OpenMin >= h.CloseMin {
				return nil, fmt.Errorf("catalog: bad hours for %q on %s", r.ID, wd)
			}
		}
		c.resources[r.ID] = r
	}
	return c, nil
}

func (c *Catalog) ServiceByID(id string) (Service, bool) {
	s, ok := c.services[id]
	return s, ok
}

func (c *Catalog) ResourceByID(id string) (Resource, bool) {
	r, ok := c.resources[id]
	return r, ok
}

func (c *Catalog) Services() []Service {
	out := make([]Service, 0, len(c.services))
	for _, s := range c.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out
}

func (c *Catalog) Resources() []Resource {
	out := make([]Resource, 0, len(c.resources))
	for _, r := range c.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Default mirrors the production site: three wash packages, two bays,
// Mon-Sat 09:00-18:00, 20 minute grid, closed Sunday.
func Default() *Catalog {
	weekHours := map[time.Weekday]Hours{
		time.Monday:    {9 * 60, 18 * 60},
		time.Tuesday:   {9 * 60, 18 * 60},
		time.Wednesday: {9 * 60, 18 * 60},
		time.Thursday:  {9 * 60, 18 * 60},
		time.Friday:    {9 * 60, 18 * 60},
		time.Saturday:  {9 * 60, 18 * 60},
	}
	c, err := New(
		[]Service{
			{ID: "basic", Name: "Basic Wash", DurationMin: 20, PriceCents: 1500},
			{ID: "premium", Name: "Premium Wash", DurationMin: 30, PriceCents: 2600},
			{ID: "deluxe", Name: "Deluxe Detail", DurationMin: 45, PriceCents: 4000},
		},
		[]Resource{
			{ID: "bay-1", Name: "Wash Bay 1", GranularityMin: 20, Loc: time.UTC, Hours: weekHours},
			{ID: "bay-2", Name: "Wash Bay 2", GranularityMin: 20, Loc: time.UTC, Hours: weekHours},
		},
	)
	if err != nil {
		panic(err) // static data, cannot fail
	}
	return c
}
