package events

import (
	"math"
	"sort"

	"courtside/gateway/internal/geo"
	"courtside/gateway/internal/models"
)

// SortEvents returns a copy of items ordered for presentation. The stored
// order is never mutated; ties keep their fetched order. Distance ordering
// needs an origin: coordinate-less events sort last, and without an origin
// the fetched order is kept as-is.
func SortEvents(items []models.Event, sortBy SortOption, lat, lng *float64) []models.Event {
	sorted := append([]models.Event(nil), items...)

	switch sortBy {
	case SortPopular:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].ParticipantsCount > sorted[j].ParticipantsCount
		})
	case SortSoonest:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Date.Before(sorted[j].Date)
		})
	case SortNewest:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		})
	case SortDistance:
		if lat == nil || lng == nil {
			return sorted
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			return eventDistanceKm(sorted[i], *lat, *lng) < eventDistanceKm(sorted[j], *lat, *lng)
		})
	}

	return sorted
}

// eventDistanceKm substitutes +Inf for events without coordinates so they
// sort after every located event.
func eventDistanceKm(event models.Event, lat, lng float64) float64 {
	if !event.HasCoordinates() {
		return math.Inf(1)
	}
	return geo.DistanceKm(lat, lng, *event.Latitude, *event.Longitude)
}
