package domain

import "time"

type GuideStatus string

const (
	GuideApproved  GuideStatus = "approved"
	GuideSubmitted GuideStatus = "submitted"
	GuideSuspended GuideStatus = "suspended"
)

// AvailabilitySlot is one recurring weekly window a guide is open for tours.
// Slots are maintained by the profile subsystem and assumed non-contradictory.
type AvailabilitySlot struct {
	Weekday   time.Weekday `json:"weekday"`
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
}

type Guide struct {
	ID     int64       `json:"id"`
	Status GuideStatus `json:"status"`

	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Locality  string `json:"locality"`
	Institute string `json:"institute"`

	Nationality string   `json:"nationality"`
	Languages   []string `json:"languages"`
	Gender      string   `json:"gender"`

	ToursCompleted int      `json:"tours_completed"`
	AvgRating      *float64 `json:"avg_rating,omitempty"`
	NoShowCount    int      `json:"no_show_count"`
	Tier           *string  `json:"tier,omitempty"`

	Interests    []string           `json:"interests,omitempty"`
	Availability []AvailabilitySlot `json:"availability,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AvailableOn reports whether the guide has any weekly slot on the given
// weekday. Matching works at day granularity; intra-day times are settled
// between the parties after contact exchange.
func (g *Guide) AvailableOn(day time.Weekday) bool {
	for _, slot := range g.Availability {
		if slot.Weekday == day {
			return true
		}
	}
	return false
}

// SpeaksAny reports whether the guide speaks at least one of the wanted
// languages. Comparison is exact; language names are normalized upstream.
func (g *Guide) SpeaksAny(wanted []string) bool {
	for _, w := range wanted {
		for _, l := range g.Languages {
			if l == w {
				return true
			}
		}
	}
	return false
}
