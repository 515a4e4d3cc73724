package events

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DateFilter selects a date-range mode for the list query.
type DateFilter string

const (
	DateAll      DateFilter = "all"
	DateToday    DateFilter = "today"
	DateWeek     DateFilter = "week"
	DateMonth    DateFilter = "month"
	DateUpcoming DateFilter = "upcoming"
)

// SortOption selects the presentation-level ordering of fetched items.
type SortOption string

const (
	SortPopular  SortOption = "popular"
	SortSoonest  SortOption = "soonest"
	SortNewest   SortOption = "newest"
	SortDistance SortOption = "distance"
)

const (
	// DefaultRadiusKm applies whenever an origin is known but the user has
	// not chosen a radius.
	DefaultRadiusKm = 50.0

	// DefaultPageSize is the fixed page size for list fetches.
	DefaultPageSize = 10
)

// instantFormat is UTC ISO-8601 with millisecond precision, matching what
// the remote API accepts for date_from/date_to.
const instantFormat = "2006-01-02T15:04:05.000Z07:00"

// FilterState is a snapshot of the user's filter selections. The zero value
// is not meaningful; use DefaultFilters.
type FilterState struct {
	Search        string
	CategoryID    int64
	DateFilter    DateFilter
	OpenSlotsOnly bool
	SortBy        SortOption
	RadiusKm      float64
}

// DefaultFilters returns the filter selections of a fresh visit.
func DefaultFilters() FilterState {
	return FilterState{
		DateFilter: DateAll,
		SortBy:     SortPopular,
	}
}

// EffectiveRadiusKm resolves the radius to send alongside an origin: the
// user's choice when set, DefaultRadiusKm otherwise.
func (f FilterState) EffectiveRadiusKm() float64 {
	if f.RadiusKm <= 0 {
		return DefaultRadiusKm
	}
	return f.RadiusKm
}

// ValidDateFilter reports whether value is one of the known date modes.
func ValidDateFilter(value DateFilter) bool {
	switch value {
	case DateAll, DateToday, DateWeek, DateMonth, DateUpcoming:
		return true
	}
	return false
}

// ValidSortOption reports whether value is one of the known sort modes.
func ValidSortOption(value SortOption) bool {
	switch value {
	case SortPopular, SortSoonest, SortNewest, SortDistance:
		return true
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// dateRange expands a date-filter mode into concrete bounds relative to now.
// Either bound may be nil: "all" has none, "upcoming" has no upper bound.
func dateRange(filter DateFilter, now time.Time) (from, to *time.Time) {
	switch filter {
	case DateToday:
		f, t := startOfDay(now), endOfDay(now)
		return &f, &t
	case DateUpcoming:
		f := startOfDay(now)
		return &f, nil
	case DateWeek:
		f, t := startOfDay(now), endOfDay(now.AddDate(0, 0, 7))
		return &f, &t
	case DateMonth:
		f, t := startOfDay(now), endOfDay(now.AddDate(0, 0, 30))
		return &f, &t
	default:
		return nil, nil
	}
}

// BuildParams translates a filter snapshot plus an optional origin into the
// flat request parameters of the remote list endpoint. Deterministic for a
// fixed now. Geographic parameters appear only when both coordinates are
// present; empty or default selections are omitted entirely.
func BuildParams(f FilterState, lat, lng *float64, now time.Time) url.Values {
	params := url.Values{}

	if search := strings.TrimSpace(f.Search); search != "" {
		params.Set("search", search)
	}
	if f.CategoryID > 0 {
		params.Set("category", strconv.FormatInt(f.CategoryID, 10))
	}

	from, to := dateRange(f.DateFilter, now)
	if from != nil {
		params.Set("date_from", from.UTC().Format(instantFormat))
	}
	if to != nil {
		params.Set("date_to", to.UTC().Format(instantFormat))
	}

	if f.OpenSlotsOnly {
		params.Set("open_slots", "true")
	}

	if lat != nil && lng != nil {
		params.Set("lat", strconv.FormatFloat(*lat, 'f', -1, 64))
		params.Set("lng", strconv.FormatFloat(*lng, 'f', -1, 64))
		params.Set("radius_km", strconv.FormatFloat(f.EffectiveRadiusKm(), 'f', -1, 64))
	}

	return params
}

func cloneParams(params url.Values) url.Values {
	out := url.Values{}
	for key, values := range params {
		out[key] = append([]string(nil), values...)
	}
	return out
}
