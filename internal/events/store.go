package events

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"courtside/gateway/internal/location"
	"courtside/gateway/internal/models"
)

// Fetcher is the remote list endpoint as the store sees it. Implementations
// return an error for any non-success outcome; the store converts it into
// its user-visible error field.
type Fetcher interface {
	FetchEvents(ctx context.Context, params url.Values, token string) (models.EventPage, error)
}

// Snapshot is a consistent copy of the store's state at one instant. Readers
// never observe a partially applied mutation.
type Snapshot struct {
	Items       []models.Event
	TotalCount  int
	Offset      int
	Limit       int
	HasMore     bool
	IsFetching  bool
	IsLoading   bool
	Error       string
	LastUpdated time.Time

	Filters FilterState

	Latitude              *float64
	Longitude             *float64
	IsLocating            bool
	LocationError         string
	ShowDistanceControls  bool
	UserRequestedLocation bool
}

// Store is the single source of truth for the paginated, filtered event
// list of one session. All mutation goes through its methods; reads go
// through Snapshot. Safe for concurrent use; network calls happen outside
// the lock and responses are tagged with a generation captured at dispatch
// time, so a result that raced a later filter change is discarded instead
// of corrupting the newer list.
type Store struct {
	fetcher Fetcher
	now     func() time.Time
	limit   int

	mu             sync.Mutex
	generation     uint64
	items          []models.Event
	totalCount     int
	offset         int
	hasMore        bool
	isFetching     bool
	isFetchingMore bool
	fetchErr       string
	lastUpdated    time.Time

	filters FilterState

	latitude              *float64
	longitude             *float64
	isLocating            bool
	locationErr           string
	showDistanceControls  bool
	userRequestedLocation bool

	appliedParams url.Values

	subMu   sync.Mutex
	subs    map[uint64]chan struct{}
	nextSub uint64
}

// NewStore creates a store around the given fetcher with the default page size.
func NewStore(fetcher Fetcher) *Store {
	s := &Store{
		fetcher: fetcher,
		now:     time.Now,
		limit:   DefaultPageSize,
		filters: DefaultFilters(),
		subs:    make(map[uint64]chan struct{}),
	}
	s.appliedParams = BuildParams(s.filters, nil, nil, s.now())
	return s
}

// Subscribe registers a change listener. The returned channel receives a
// signal after each committed mutation; slow listeners coalesce signals
// rather than block the store. Call cancel to unregister.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Items:                 append([]models.Event(nil), s.items...),
		TotalCount:            s.totalCount,
		Offset:                s.offset,
		Limit:                 s.limit,
		HasMore:               s.hasMore,
		IsFetching:            s.isFetching,
		IsLoading:             s.isFetchingMore,
		Error:                 s.fetchErr,
		LastUpdated:           s.lastUpdated,
		Filters:               s.filters,
		Latitude:              copyFloat(s.latitude),
		Longitude:             copyFloat(s.longitude),
		IsLocating:            s.isLocating,
		LocationError:         s.locationErr,
		ShowDistanceControls:  s.showDistanceControls,
		UserRequestedLocation: s.userRequestedLocation,
	}
}

// SortedItems returns the items ordered by the current sort selection,
// without touching the stored order.
func (s *Store) SortedItems() []models.Event {
	snap := s.Snapshot()
	return SortEvents(snap.Items, snap.Filters.SortBy, snap.Latitude, snap.Longitude)
}

// SetFilters replaces the filter selections without fetching. Unknown date
// or sort modes fall back to their defaults.
func (s *Store) SetFilters(filters FilterState) {
	if !ValidDateFilter(filters.DateFilter) {
		filters.DateFilter = DateAll
	}
	if !ValidSortOption(filters.SortBy) {
		filters.SortBy = SortPopular
	}
	s.mu.Lock()
	s.filters = filters
	s.mu.Unlock()
	s.notify()
}

// Hydrate replaces the collection with a server-rendered initial page.
// Callers guard against double hydration; the store itself applies
// whatever it is given.
func (s *Store) Hydrate(items []models.Event, totalCount int) {
	s.mu.Lock()
	if totalCount < len(items) {
		totalCount = len(items)
	}
	s.generation++
	s.items = append([]models.Event(nil), items...)
	s.totalCount = totalCount
	s.offset = len(items)
	s.hasMore = len(items) < totalCount
	s.lastUpdated = s.now()
	s.mu.Unlock()
	s.notify()
}

// ApplyFilters snapshots the current filter fields, clears the list and
// fetches page zero. Each call is authoritative: it advances the generation,
// so any earlier fetch still in flight is discarded when it lands.
// The fetch error, if any, is both recorded in the snapshot's Error field
// and returned.
func (s *Store) ApplyFilters(ctx context.Context, token string) error {
	s.mu.Lock()
	s.generation++
	generation := s.generation
	params := BuildParams(s.filters, s.latitude, s.longitude, s.now())
	s.appliedParams = cloneParams(params)

	paged := cloneParams(params)
	paged.Set("limit", strconv.Itoa(s.limit))
	paged.Set("offset", "0")

	s.isFetching = true
	s.isFetchingMore = false
	s.fetchErr = ""
	s.items = nil
	s.offset = 0
	s.hasMore = false
	s.totalCount = 0
	s.mu.Unlock()
	s.notify()

	page, err := s.fetcher.FetchEvents(ctx, paged, token)

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.isFetching = false
	if err != nil {
		s.fetchErr = err.Error()
		s.mu.Unlock()
		s.notify()
		return err
	}
	count := page.Count
	if count < len(page.Results) {
		count = len(page.Results)
	}
	s.items = page.Results
	s.totalCount = count
	s.offset = len(page.Results)
	s.hasMore = len(page.Results) < count
	s.lastUpdated = s.now()
	s.mu.Unlock()
	s.notify()
	return nil
}

// ClearFilters resets every filter and location field to defaults, then
// re-fetches.
func (s *Store) ClearFilters(ctx context.Context, token string) error {
	s.mu.Lock()
	s.filters = DefaultFilters()
	s.latitude = nil
	s.longitude = nil
	s.locationErr = ""
	s.showDistanceControls = false
	s.userRequestedLocation = false
	s.mu.Unlock()
	s.notify()
	return s.ApplyFilters(ctx, token)
}

// LoadMore fetches the next page with the last-applied filter parameters
// and appends it. A call is a no-op while another fetch is outstanding or
// when the server reported no further pages.
func (s *Store) LoadMore(ctx context.Context, token string) error {
	s.mu.Lock()
	if s.isFetching || s.isFetchingMore || !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	generation := s.generation
	paged := cloneParams(s.appliedParams)
	paged.Set("limit", strconv.Itoa(s.limit))
	paged.Set("offset", strconv.Itoa(s.offset))
	s.isFetchingMore = true
	s.fetchErr = ""
	s.mu.Unlock()
	s.notify()

	page, err := s.fetcher.FetchEvents(ctx, paged, token)

	s.mu.Lock()
	if generation != s.generation {
		// A newer ApplyFilters took over; its reset already cleared the
		// fetching-more flag. Drop this page.
		s.mu.Unlock()
		return nil
	}
	s.isFetchingMore = false
	if err != nil {
		s.fetchErr = err.Error()
		s.mu.Unlock()
		s.notify()
		return err
	}
	count := page.Count
	if count <= 0 {
		count = s.totalCount
	}
	s.items = append(s.items, page.Results...)
	s.offset += len(page.Results)
	s.totalCount = count
	s.hasMore = s.offset < count
	s.lastUpdated = s.now()
	s.mu.Unlock()
	s.notify()
	return nil
}

// RequestLocation acquires the caller's position from source. Automatic
// acquisition (page-load refinement) fails silently and triggers a filtered
// re-fetch on success; an explicit user request surfaces failures through
// the LocationError field. A request while another is in flight is dropped.
func (s *Store) RequestLocation(ctx context.Context, source location.Locator, auto bool, token string) error {
	s.mu.Lock()
	if s.isLocating {
		s.mu.Unlock()
		return nil
	}
	s.isLocating = true
	s.locationErr = ""
	if auto {
		s.showDistanceControls = true
	} else {
		s.userRequestedLocation = true
	}
	s.mu.Unlock()
	s.notify()

	coords, err := source.Locate(ctx)

	s.mu.Lock()
	s.isLocating = false
	if err != nil {
		if !auto {
			s.locationErr = "unable to determine your location"
		}
		s.mu.Unlock()
		s.notify()
		if auto {
			return nil
		}
		return err
	}
	lat, lng := coords.Latitude, coords.Longitude
	s.latitude = &lat
	s.longitude = &lng
	if s.filters.RadiusKm <= 0 {
		s.filters.RadiusKm = DefaultRadiusKm
	}
	s.showDistanceControls = true
	s.mu.Unlock()
	s.notify()

	if auto {
		return s.ApplyFilters(ctx, token)
	}
	return nil
}

// UpdateParticipation reflects an already-confirmed join or leave into the
// matching item: participant count up or down (never below zero) and the
// joined flag. Ordering, offset and total count stay untouched.
func (s *Store) UpdateParticipation(eventID int64, isJoined bool) {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID != eventID {
			continue
		}
		if isJoined {
			s.items[i].ParticipantsCount++
		} else if s.items[i].ParticipantsCount > 0 {
			s.items[i].ParticipantsCount--
		}
		s.items[i].IsAuthenticatedUserJoined = isJoined
	}
	s.mu.Unlock()
	s.notify()
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
