package matching

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mridulmalani2/wandernest/internal/domain"
	"github.com/mridulmalani2/wandernest/internal/platform/token"
	"github.com/mridulmalani2/wandernest/pkg/events"
	"github.com/mridulmalani2/wandernest/pkg/logger"
)

// DispatchResult reports one matching round. Errors holds per-guide failures
// that were isolated from the batch; their presence does not make the round a
// failure as long as the booking reached its expected state.
type DispatchResult struct {
	BookingID          int64    `json:"booking_id"`
	CandidatesFound    int      `json:"candidates_found"`
	InvitationsCreated int      `json:"invitations_created"`
	NotificationsSent  int      `json:"notifications_sent"`
	Errors             []string `json:"errors,omitempty"`
}

// Dispatcher runs one matching round: pull the eligible pool, rank it, create
// invitations, move the booking to matched, and fan out invitation emails.
type Dispatcher struct {
	pool        GuidePool
	bookings    BookingStore
	invitations InvitationStore
	notifier    Notifier
	codec       *token.Codec
	bus         events.Publisher
	limit       int
	baseURL     string
}

func NewDispatcher(
	pool GuidePool,
	bookings BookingStore,
	invitations InvitationStore,
	notifier Notifier,
	codec *token.Codec,
	bus events.Publisher,
	limit int,
	baseURL string,
) *Dispatcher {
	if limit <= 0 {
		limit = DefaultInviteLimit
	}
	return &Dispatcher{
		pool:        pool,
		bookings:    bookings,
		invitations: invitations,
		notifier:    notifier,
		codec:       codec,
		bus:         bus,
		limit:       limit,
		baseURL:     baseURL,
	}
}

// Dispatch runs one round for the booking. A positive limitOverride replaces
// the configured invitation cap for this round only. Zero eligible guides is
// a valid outcome: the booking stays pending and remains matchable later.
func (d *Dispatcher) Dispatch(ctx context.Context, bookingID int64, limitOverride int) (*DispatchResult, error) {
	limit := d.limit
	if limitOverride > 0 {
		limit = limitOverride
	}
	booking, err := d.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %d: %w", bookingID, err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.Status != domain.BookingPending {
		return nil, ErrBookingNotOpen
	}

	result := &DispatchResult{BookingID: bookingID}

	pool, err := d.pool.EligibleGuides(ctx, booking.Locality)
	if err != nil {
		return nil, fmt.Errorf("failed to load guide pool for %q: %w", booking.Locality, err)
	}

	ranked := SelectGuides(pool, *booking, limit)
	result.CandidatesFound = len(ranked)
	if len(ranked) == 0 {
		logger.InfoContext(ctx, "No eligible guides for booking",
			"booking_id", bookingID, "locality", booking.Locality, "pool_size", len(pool))
		return result, nil
	}

	created := make([]domain.Invitation, 0, len(ranked))
	for _, sg := range ranked {
		inv, err := d.invitations.Create(ctx, bookingID, sg.Guide.ID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to create invitation",
				"error", err, "booking_id", bookingID, "guide_id", sg.Guide.ID)
			result.Errors = append(result.Errors, fmt.Sprintf("guide %d: %v", sg.Guide.ID, err))
			continue
		}
		created = append(created, *inv)
	}
	result.InvitationsCreated = len(created)
	if len(created) == 0 {
		return result, fmt.Errorf("no invitations created for booking %d", bookingID)
	}

	// One transition for the whole round, after the invitations exist.
	moved, err := d.bookings.MarkMatched(ctx, bookingID)
	if err != nil {
		return result, fmt.Errorf("failed to mark booking %d matched: %w", bookingID, err)
	}
	if !moved {
		return result, fmt.Errorf("booking %d left pending state during dispatch", bookingID)
	}

	result.NotificationsSent = d.notifyGuides(ctx, *booking, ranked, created, result)

	if err := d.bus.Publish(ctx, events.InvitationsDispatched, events.InvitationsDispatchedEvent{
		BookingID:       bookingID,
		Locality:        booking.Locality,
		CandidatesFound: result.CandidatesFound,
		Invitations:     result.InvitationsCreated,
		DispatchedAt:    time.Now(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish dispatch event", "error", err, "booking_id", bookingID)
	}

	return result, nil
}

// notifyGuides sends every invitation email in parallel. Delivery is
// best-effort: a guide whose email fails simply never responds, and the
// invitation stays live for the round.
func (d *Dispatcher) notifyGuides(ctx context.Context, booking domain.Booking, ranked []ScoredGuide, created []domain.Invitation, result *DispatchResult) int {
	byGuide := make(map[int64]domain.Guide, len(ranked))
	for _, sg := range ranked {
		byGuide[sg.Guide.ID] = sg.Guide
	}

	var (
		mu   sync.Mutex
		sent int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, inv := range created {
		inv := inv
		guide, ok := byGuide[inv.GuideID]
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := d.notifyOne(gctx, guide, booking, inv); err != nil {
				logger.ErrorContext(gctx, "Failed to send invitation email",
					"error", err, "booking_id", booking.ID, "guide_id", guide.ID)
				if perr := d.bus.Publish(gctx, events.NotifyFailed, events.NotifyFailedEvent{
					BookingID: booking.ID,
					GuideID:   guide.ID,
					Kind:      "invitation",
					Reason:    err.Error(),
				}); perr != nil {
					logger.ErrorContext(gctx, "Failed to publish notify failure", "error", perr, "guide_id", guide.ID)
				}
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("notify guide %d: %v", guide.ID, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			sent++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return sent
}

func (d *Dispatcher) notifyOne(ctx context.Context, guide domain.Guide, booking domain.Booking, inv domain.Invitation) error {
	acceptTok, err := d.codec.Encode(booking.ID, guide.ID, inv.ID, domain.ActionAccept)
	if err != nil {
		return fmt.Errorf("failed to mint accept token: %w", err)
	}
	declineTok, err := d.codec.Encode(booking.ID, guide.ID, inv.ID, domain.ActionDecline)
	if err != nil {
		return fmt.Errorf("failed to mint decline token: %w", err)
	}
	return d.notifier.SendInvitation(ctx, guide, booking,
		d.respondURL(acceptTok), d.respondURL(declineTok))
}

func (d *Dispatcher) respondURL(tok string) string {
	return d.baseURL + "/respond?token=" + url.QueryEscape(tok)
}
