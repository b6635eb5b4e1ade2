package matching

import (
	"context"
	"errors"

	"github.com/mridulmalani2/wandernest/internal/domain"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrBookingNotOpen  = errors.New("booking is not open for matching")
)

// GuidePool supplies the active, approved guides for a locality. Results may
// be served from a cache; staleness is tolerated because every acceptance is
// re-validated against the store.
type GuidePool interface {
	EligibleGuides(ctx context.Context, locality string) ([]domain.Guide, error)
}

// BookingStore is the engine's read/transition surface for bookings.
type BookingStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	// MarkMatched conditionally moves a booking from pending to matched.
	// Returns false when the booking was not pending.
	MarkMatched(ctx context.Context, id int64) (bool, error)
}

type GuideStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Guide, error)
}

type InvitationStore interface {
	Create(ctx context.Context, bookingID, guideID int64) (*domain.Invitation, error)
	GetByID(ctx context.Context, id int64) (*domain.Invitation, error)
	// MarkRejected conditionally moves an invitation from pending to
	// rejected. Returns false when the invitation was not pending.
	MarkRejected(ctx context.Context, id int64) (bool, error)
}

// AllocationStore performs the single atomic unit of the accept path: the
// conditional booking transition, the invitation terminal states, and the
// winner's tours counter, all in one transaction.
type AllocationStore interface {
	// AcceptExclusive returns won=false, with no state changed, when the
	// booking's conditional update matched zero rows (another guide already
	// holds it, or the booking expired or was cancelled).
	AcceptExclusive(ctx context.Context, bookingID, guideID, invitationID int64) (won bool, err error)
}

// Notifier delivers matching emails. All sends are best-effort; a failure is
// logged and never unwinds engine state.
type Notifier interface {
	SendInvitation(ctx context.Context, guide domain.Guide, booking domain.Booking, acceptURL, declineURL string) error
	SendContactExchange(ctx context.Context, booking domain.Booking, guide domain.Guide) error
	SendWinnerConfirmation(ctx context.Context, guide domain.Guide, booking domain.Booking) error
}
