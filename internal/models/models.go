package models

import "time"

// Field names follow the remote API's wire contract (snake_case JSON).

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	City        string    `json:"city,omitempty"`
	// Latitude and Longitude are independently nullable on the wire;
	// in practice events carry both or neither.
	Latitude                  *float64  `json:"latitude"`
	Longitude                 *float64  `json:"longitude"`
	Slots                     int       `json:"slots"`
	ParticipantsCount         int       `json:"participants_count"`
	IsAuthenticatedUserJoined bool      `json:"is_authenticated_user_joined"`
	CreatedBy                 User      `json:"created_by"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// HasCoordinates reports whether the event carries a usable geographic point.
func (e Event) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

type EventCategory struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type Participation struct {
	ID       int64     `json:"id"`
	User     User      `json:"user"`
	Event    int64     `json:"event"`
	JoinedAt time.Time `json:"joined_at"`
}

// EventPage is one page of the remote list endpoint: results plus the
// server-reported total across all pages.
type EventPage struct {
	Results []Event `json:"results"`
	Count   int     `json:"count"`
}
