package matching

import (
	"math"
	"sort"

	"github.com/mridulmalani2/wandernest/internal/domain"
)

// Score weights. All sub-scores are additive and independent; a perfect
// candidate reaches 100.
const (
	availabilityPoints = 40.0
	ratingMultiplier   = 4.0
	reliabilityPoints  = 20.0
	noShowPenalty      = 5.0
	interestPoints     = 20.0

	// neutralRating is assumed for guides with no reviews yet, worth 12 of
	// the 20 rating points. New guides are neither favored nor buried.
	neutralRating = 3.0

	// DefaultInviteLimit caps a matching round when no explicit limit is
	// configured.
	DefaultInviteLimit = 4
)

// ScoredGuide pairs a guide with its computed score for one booking.
type ScoredGuide struct {
	Guide domain.Guide
	Score float64
}

// Score computes the match score of one guide for one booking, rounded to one
// decimal place. It assumes hard filters have already been applied; it never
// rejects, only rates.
func Score(g domain.Guide, b domain.Booking) float64 {
	var s float64

	if coversAllDays(g, b) {
		s += availabilityPoints
	}

	rating := neutralRating
	if g.AvgRating != nil {
		rating = *g.AvgRating
	}
	s += rating * ratingMultiplier

	penalty := noShowPenalty * float64(g.NoShowCount)
	s += math.Max(0, reliabilityPoints-penalty)

	if len(b.Interests) > 0 {
		overlap := intersectionSize(g.Interests, b.Interests)
		s += float64(overlap) / float64(len(b.Interests)) * interestPoints
	}

	return math.Round(s*10) / 10
}

// SelectGuides applies the booking's hard preferences as filters, scores the
// survivors, and returns the top candidates ordered by score descending.
// Ties are broken by guide ID ascending so ranking is reproducible.
// An empty result is a valid outcome, not an error.
func SelectGuides(pool []domain.Guide, b domain.Booking, limit int) []ScoredGuide {
	if limit <= 0 {
		limit = DefaultInviteLimit
	}

	ranked := make([]ScoredGuide, 0, len(pool))
	for _, g := range pool {
		if !passesHardFilters(g, b) {
			continue
		}
		ranked = append(ranked, ScoredGuide{Guide: g, Score: Score(g, b)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Guide.ID < ranked[j].Guide.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// passesHardFilters enforces the booking's stated hard preferences. A guide
// failing any of them is excluded before scoring.
func passesHardFilters(g domain.Guide, b domain.Booking) bool {
	if b.PreferredNationality != "" && g.Nationality != b.PreferredNationality {
		return false
	}
	if len(b.PreferredLanguages) > 0 && !g.SpeaksAny(b.PreferredLanguages) {
		return false
	}
	if b.PreferredGender != "" && b.PreferredGender != domain.GenderAny &&
		g.Gender != string(b.PreferredGender) {
		return false
	}
	return true
}

// coversAllDays reports whether the guide's weekly availability covers every
// calendar day of the booking's closed date interval. A guide with no
// availability entries covers nothing.
func coversAllDays(g domain.Guide, b domain.Booking) bool {
	if len(g.Availability) == 0 {
		return false
	}
	for _, day := range b.Days() {
		if !g.AvailableOn(day.Weekday()) {
			return false
		}
	}
	return true
}

func intersectionSize(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	n := 0
	for _, s := range b {
		if _, ok := set[s]; ok {
			n++
		}
	}
	return n
}
