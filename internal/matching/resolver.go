package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mridulmalani2/wandernest/internal/domain"
	"github.com/mridulmalani2/wandernest/internal/platform/token"
	"github.com/mridulmalani2/wandernest/pkg/events"
	"github.com/mridulmalani2/wandernest/pkg/logger"
)

// Outcome classifies every possible result of resolving a response token.
// The already_* outcomes are correct results of a fair race, not failures.
type Outcome string

const (
	OutcomeInvalidToken       Outcome = "invalid_token"
	OutcomeInvitationNotFound Outcome = "invitation_not_found"
	OutcomeTokenMismatch      Outcome = "token_mismatch"
	OutcomeAlreadyProcessed   Outcome = "already_processed"
	OutcomeAlreadyMatched     Outcome = "already_matched"
	OutcomeDeclined           Outcome = "declined"
	OutcomeAccepted           Outcome = "accepted"
)

// Resolution is the caller-visible result of one accept/decline attempt.
// Booking and Guide are populated only on OutcomeAccepted, for the contact
// exchange.
type Resolution struct {
	Outcome Outcome         `json:"outcome"`
	Message string          `json:"message"`
	Booking *domain.Booking `json:"booking,omitempty"`
	Guide   *domain.Guide   `json:"guide,omitempty"`
}

// Resolver applies a guide's accept or decline to an invitation. All
// coordination between concurrent resolvers happens through the store's
// conditional updates; the resolver itself holds no state.
type Resolver struct {
	bookings    BookingStore
	guides      GuideStore
	invitations InvitationStore
	alloc       AllocationStore
	codec       *token.Codec
	notifier    Notifier
	bus         events.Publisher
}

func NewResolver(
	bookings BookingStore,
	guides GuideStore,
	invitations InvitationStore,
	alloc AllocationStore,
	codec *token.Codec,
	notifier Notifier,
	bus events.Publisher,
) *Resolver {
	return &Resolver{
		bookings:    bookings,
		guides:      guides,
		invitations: invitations,
		alloc:       alloc,
		codec:       codec,
		notifier:    notifier,
		bus:         bus,
	}
}

// Resolve validates the token against current state and applies exactly one
// of accept or decline. A non-nil error means a storage-level failure; the
// whole call is safe to retry because replays land on already_processed or
// already_matched.
func (r *Resolver) Resolve(ctx context.Context, tokenString string) (*Resolution, error) {
	payload, err := r.codec.Decode(tokenString)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return &Resolution{
				Outcome: OutcomeInvalidToken,
				Message: "This invitation link has expired.",
			}, nil
		}
		return &Resolution{
			Outcome: OutcomeInvalidToken,
			Message: "This invitation link is not valid.",
		}, nil
	}

	inv, err := r.invitations.GetByID(ctx, payload.InvitationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invitation %d: %w", payload.InvitationID, err)
	}
	if inv == nil {
		return &Resolution{
			Outcome: OutcomeInvitationNotFound,
			Message: "This invitation could not be found.",
		}, nil
	}

	if inv.BookingID != payload.BookingID || inv.GuideID != payload.GuideID {
		logger.WarnContext(ctx, "Response token does not match stored invitation",
			"invitation_id", inv.ID,
			"token_booking_id", payload.BookingID, "stored_booking_id", inv.BookingID,
			"token_guide_id", payload.GuideID, "stored_guide_id", inv.GuideID)
		return &Resolution{
			Outcome: OutcomeTokenMismatch,
			Message: "This invitation link is not valid.",
		}, nil
	}

	if inv.Status != domain.InvitationPending {
		return &Resolution{
			Outcome: OutcomeAlreadyProcessed,
			Message: "You have already responded to this invitation.",
		}, nil
	}

	booking, err := r.bookings.GetByID(ctx, inv.BookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %d: %w", inv.BookingID, err)
	}
	if booking == nil {
		return nil, fmt.Errorf("invitation %d references missing booking %d", inv.ID, inv.BookingID)
	}

	switch payload.Action {
	case domain.ActionDecline:
		return r.decline(ctx, booking, inv)
	default:
		return r.accept(ctx, booking, inv)
	}
}

// decline marks this invitation rejected and nothing else. The booking stays
// matched so the remaining pending invitations are still actionable.
func (r *Resolver) decline(ctx context.Context, booking *domain.Booking, inv *domain.Invitation) (*Resolution, error) {
	if booking.Status == domain.BookingAccepted {
		return &Resolution{
			Outcome: OutcomeAlreadyMatched,
			Message: "This booking has already been confirmed with another guide.",
		}, nil
	}

	moved, err := r.invitations.MarkRejected(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reject invitation %d: %w", inv.ID, err)
	}
	if !moved {
		return &Resolution{
			Outcome: OutcomeAlreadyProcessed,
			Message: "You have already responded to this invitation.",
		}, nil
	}

	if err := r.bus.Publish(ctx, events.InvitationDeclined, events.InvitationDeclinedEvent{
		BookingID:    booking.ID,
		GuideID:      inv.GuideID,
		InvitationID: inv.ID,
		DeclinedAt:   time.Now(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish decline event", "error", err, "invitation_id", inv.ID)
	}

	return &Resolution{
		Outcome: OutcomeDeclined,
		Message: "You have declined this invitation.",
	}, nil
}

// accept attempts the exclusive allocation. The store's conditional update on
// the booking row is the sole arbiter between concurrent acceptors: whichever
// transaction commits the transition first wins, every other attempt sees
// zero rows affected and lands on already_matched.
func (r *Resolver) accept(ctx context.Context, booking *domain.Booking, inv *domain.Invitation) (*Resolution, error) {
	if booking.Status.Terminal() {
		return &Resolution{
			Outcome: OutcomeAlreadyMatched,
			Message: unavailableMessage(booking.Status),
		}, nil
	}

	won, err := r.alloc.AcceptExclusive(ctx, booking.ID, inv.GuideID, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate booking %d: %w", booking.ID, err)
	}
	if !won {
		return &Resolution{
			Outcome: OutcomeAlreadyMatched,
			Message: "This booking has already been confirmed with another guide.",
		}, nil
	}

	guide, err := r.guides.GetByID(ctx, inv.GuideID)
	if err != nil || guide == nil {
		// The allocation is committed; contact details just can't be shown.
		logger.ErrorContext(ctx, "Failed to load winning guide after allocation",
			"error", err, "guide_id", inv.GuideID, "booking_id", booking.ID)
	}

	accepted, err := r.bookings.GetByID(ctx, booking.ID)
	if err != nil || accepted == nil {
		logger.ErrorContext(ctx, "Failed to reload booking after allocation",
			"error", err, "booking_id", booking.ID)
		accepted = booking
	}

	r.afterAccept(ctx, accepted, guide, inv)

	return &Resolution{
		Outcome: OutcomeAccepted,
		Message: "You are confirmed for this booking. Contact details are on their way.",
		Booking: accepted,
		Guide:   guide,
	}, nil
}

// afterAccept triggers the post-commit side effects: contact-exchange emails
// to both parties and the accepted event. None of them are awaited and none
// can undo the committed allocation.
func (r *Resolver) afterAccept(ctx context.Context, booking *domain.Booking, guide *domain.Guide, inv *domain.Invitation) {
	if err := r.bus.Publish(ctx, events.BookingAccepted, events.BookingAcceptedEvent{
		BookingID:    booking.ID,
		GuideID:      inv.GuideID,
		InvitationID: inv.ID,
		AcceptedAt:   time.Now(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish accept event", "error", err, "booking_id", booking.ID)
	}

	if guide == nil {
		return
	}

	b, g := *booking, *guide
	go func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		if err := r.notifier.SendContactExchange(sctx, b, g); err != nil {
			logger.ErrorContext(sctx, "Failed to send contact exchange email",
				"error", err, "booking_id", b.ID, "guide_id", g.ID)
		}
		if err := r.notifier.SendWinnerConfirmation(sctx, g, b); err != nil {
			logger.ErrorContext(sctx, "Failed to send winner confirmation email",
				"error", err, "booking_id", b.ID, "guide_id", g.ID)
		}
	}()
}

func unavailableMessage(s domain.BookingStatus) string {
	switch s {
	case domain.BookingAccepted:
		return "This booking has already been confirmed with another guide."
	default:
		return "This booking is no longer available."
	}
}
