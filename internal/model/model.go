package model

import "time"

// Event is the canonical calendar event shape used across the front end.
// Backend payloads and ICS feeds are adapted into it at their boundary; the
// calendar core only ever reads Start and Summary.
type Event struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id,omitempty"` // "backend" or an ICS source ID

	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	AllDay bool `json:"all_day"`

	// Start is zero when the upstream timestamp could not be parsed.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// HasStart reports whether the event carries a usable start timestamp.
func (e Event) HasStart() bool {
	return !e.Start.IsZero()
}

// User is the profile the backend returns after an account is linked.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName prefers the full name, then the username.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
