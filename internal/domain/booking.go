package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingMatched   BookingStatus = "matched"
	BookingAccepted  BookingStatus = "accepted"
	BookingExpired   BookingStatus = "expired"
	BookingCancelled BookingStatus = "cancelled"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingMatched, BookingAccepted, BookingExpired, BookingCancelled:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

// Terminal reports whether no further matching activity is possible for a
// booking in this status.
func (s BookingStatus) Terminal() bool {
	return s == BookingAccepted || s == BookingExpired || s == BookingCancelled
}

type GenderPreference string

const (
	GenderAny    GenderPreference = "no_preference"
	GenderFemale GenderPreference = "female"
	GenderMale   GenderPreference = "male"
)

type Booking struct {
	ID     int64         `json:"id"`
	Status BookingStatus `json:"status"`

	TravelerName  string `json:"traveler_name"`
	TravelerEmail string `json:"traveler_email"`
	TravelerPhone string `json:"traveler_phone"`

	Locality    string    `json:"locality"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	PartySize   int       `json:"party_size"`
	PartyType   string    `json:"party_type"`
	ServiceType string    `json:"service_type"`

	// Hard preferences; empty means "no preference".
	PreferredNationality string           `json:"preferred_nationality,omitempty"`
	PreferredLanguages   []string         `json:"preferred_languages,omitempty"`
	PreferredGender      GenderPreference `json:"preferred_gender,omitempty"`

	// Soft preference: used for scoring only, never filtering.
	Interests []string `json:"interests,omitempty"`

	// GuideID is set exactly when Status is accepted.
	GuideID   *int64    `json:"guide_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Days returns every calendar day in the closed [StartDate, EndDate]
// interval. A booking for a single day has EndDate equal to StartDate.
func (b *Booking) Days() []time.Time {
	start := b.StartDate.Truncate(24 * time.Hour)
	end := b.EndDate.Truncate(24 * time.Hour)
	if end.Before(start) {
		end = start
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
