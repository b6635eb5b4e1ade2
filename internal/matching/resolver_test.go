package matching_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mridulmalani2/wandernest/internal/domain"
	"github.com/mridulmalani2/wandernest/internal/matching"
	"github.com/mridulmalani2/wandernest/internal/platform/token"
	"github.com/mridulmalani2/wandernest/pkg/events"
)

type resolverFixture struct {
	store    *memStore
	notifier *mockNotifier
	bus      *mockBus
	codec    *token.Codec
	resolver *matching.Resolver
}

func newResolverFixture() *resolverFixture {
	store := newMemStore()
	notifier := &mockNotifier{}
	bus := &mockBus{}
	codec := token.NewCodec("test-secret", time.Hour)
	return &resolverFixture{
		store:    store,
		notifier: notifier,
		bus:      bus,
		codec:    codec,
		resolver: matching.NewResolver(
			store, guideView{store}, invitationView{store}, store,
			codec, notifier, bus,
		),
	}
}

// seedMatchedRound creates a matched booking with one pending invitation per
// guide and returns the invitations in guide order.
func (f *resolverFixture) seedMatchedRound(t *testing.T, guideCount int) []domain.Invitation {
	t.Helper()
	f.store.addBooking(domain.Booking{
		ID: 1, Status: domain.BookingMatched,
		TravelerName: "Ana", TravelerEmail: "ana@example.com", TravelerPhone: "+33 1 23",
		Locality: "paris", StartDate: monday, EndDate: monday,
	})
	invs := make([]domain.Invitation, 0, guideCount)
	for i := 1; i <= guideCount; i++ {
		f.store.addGuide(domain.Guide{
			ID: int64(i), Status: domain.GuideApproved,
			Name: "Guide", Email: "g@example.com", Locality: "paris",
		})
		inv, err := f.store.Create(context.Background(), 1, int64(i))
		if err != nil {
			t.Fatalf("seed invitation: %v", err)
		}
		invs = append(invs, *inv)
	}
	return invs
}

func (f *resolverFixture) mustToken(t *testing.T, inv domain.Invitation, action domain.ResponseAction) string {
	t.Helper()
	tok, err := f.codec.Encode(inv.BookingID, inv.GuideID, inv.ID, action)
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	return tok
}

func TestResolveAcceptExactlyOneWinner(t *testing.T) {
	f := newResolverFixture()
	invs := f.seedMatchedRound(t, 4)

	tokens := make([]string, len(invs))
	for i, inv := range invs {
		tokens[i] = f.mustToken(t, inv, domain.ActionAccept)
	}

	outcomes := make([]matching.Outcome, len(tokens))
	var wg sync.WaitGroup
	for i, tok := range tokens {
		wg.Add(1)
		go func(i int, tok string) {
			defer wg.Done()
			res, err := f.resolver.Resolve(context.Background(), tok)
			if err != nil {
				t.Errorf("resolve %d: %v", i, err)
				return
			}
			outcomes[i] = res.Outcome
		}(i, tok)
	}
	wg.Wait()

	var accepted, lost int
	winner := -1
	for i, o := range outcomes {
		switch o {
		case matching.OutcomeAccepted:
			accepted++
			winner = i
		case matching.OutcomeAlreadyMatched:
			lost++
		default:
			t.Errorf("outcome[%d] = %q, want accepted or already_matched", i, o)
		}
	}
	if accepted != 1 || lost != len(invs)-1 {
		t.Fatalf("accepted=%d lost=%d, want exactly 1 winner and %d losers", accepted, lost, len(invs)-1)
	}

	b := f.store.booking(1)
	if b.Status != domain.BookingAccepted {
		t.Errorf("booking status = %q, want accepted", b.Status)
	}
	winnerGuideID := invs[winner].GuideID
	if b.GuideID == nil || *b.GuideID != winnerGuideID {
		t.Errorf("booking guide = %v, want %d", b.GuideID, winnerGuideID)
	}

	for _, inv := range invs {
		got := f.store.invitation(inv.ID)
		if inv.GuideID == winnerGuideID {
			if got.Status != domain.InvitationAccepted {
				t.Errorf("winner invitation status = %q, want accepted", got.Status)
			}
			if got.AcceptedAt == nil {
				t.Error("winner invitation has no accepted timestamp")
			}
		} else if got.Status != domain.InvitationRejected {
			t.Errorf("loser invitation %d status = %q, want rejected", inv.ID, got.Status)
		}
	}

	var totalTours int
	for _, inv := range invs {
		totalTours += f.store.guide(inv.GuideID).ToursCompleted
	}
	if totalTours != 1 {
		t.Errorf("total tours incremented = %d, want exactly 1", totalTours)
	}
}

func TestResolveAcceptReplayIsIdempotent(t *testing.T) {
	f := newResolverFixture()
	invs := f.seedMatchedRound(t, 2)
	tok := f.mustToken(t, invs[0], domain.ActionAccept)

	res, err := f.resolver.Resolve(context.Background(), tok)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if res.Outcome != matching.OutcomeAccepted {
		t.Fatalf("first outcome = %q, want accepted", res.Outcome)
	}
	if res.Booking == nil || res.Guide == nil {
		t.Fatal("accepted resolution is missing contact details")
	}

	// Let the fire-and-forget mails land before taking the baseline.
	time.Sleep(100 * time.Millisecond)
	_, contactBefore, winnerBefore := f.notifier.counts()
	toursBefore := f.store.guide(invs[0].GuideID).ToursCompleted
	acceptedEvents := f.bus.published(events.BookingAccepted)

	res, err = f.resolver.Resolve(context.Background(), tok)
	if err != nil {
		t.Fatalf("replay resolve: %v", err)
	}
	if res.Outcome != matching.OutcomeAlreadyProcessed {
		t.Errorf("replay outcome = %q, want already_processed", res.Outcome)
	}

	time.Sleep(100 * time.Millisecond)
	_, contactAfter, winnerAfter := f.notifier.counts()
	if contactAfter != contactBefore || winnerAfter != winnerBefore {
		t.Errorf("replay re-sent mails: contact %d->%d winner %d->%d",
			contactBefore, contactAfter, winnerBefore, winnerAfter)
	}
	if tours := f.store.guide(invs[0].GuideID).ToursCompleted; tours != toursBefore {
		t.Errorf("replay re-incremented tours: %d -> %d", toursBefore, tours)
	}
	if got := f.bus.published(events.BookingAccepted); got != acceptedEvents {
		t.Errorf("replay re-published accept event: %d -> %d", acceptedEvents, got)
	}
}

func TestResolveDeclineLeavesSiblingsActionable(t *testing.T) {
	f := newResolverFixture()
	invs := f.seedMatchedRound(t, 3)
	tok := f.mustToken(t, invs[1], domain.ActionDecline)

	res, err := f.resolver.Resolve(context.Background(), tok)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome != matching.OutcomeDeclined {
		t.Fatalf("outcome = %q, want declined", res.Outcome)
	}

	if b := f.store.booking(1); b.Status != domain.BookingMatched {
		t.Errorf("booking status = %q, want matched after a decline", b.Status)
	}
	if got := f.store.invitation(invs[1].ID); got.Status != domain.InvitationRejected {
		t.Errorf("declined invitation status = %q, want rejected", got.Status)
	}
	for _, i := range []int{0, 2} {
		if got := f.store.invitation(invs[i].ID); got.Status != domain.InvitationPending {
			t.Errorf("sibling invitation %d status = %q, want pending", invs[i].ID, got.Status)
		}
	}
	if f.bus.published(events.InvitationDeclined) != 1 {
		t.Error("decline event not published")
	}
}

func TestResolveDeclineReplay(t *testing.T) {
	f := newResolverFixture()
	invs := f.seedMatchedRound(t, 1)
	tok := f.mustToken(t, invs[0], domain.ActionDecline)

	if res, _ := f.resolver.Resolve(context.Background(), tok); res.Outcome != matching.OutcomeDeclined {
		t.Fatalf("first outcome = %q, want declined", res.Outcome)
	}
	res, err := f.resolver.Resolve(context.Background(), tok)
	if err != nil {
		t.Fatalf("replay resolve: %v", err)
	}
	if res.Outcome != matching.OutcomeAlreadyProcessed {
		t.Errorf("replay outcome = %q, want already_processed", res.Outcome)
	}
}

func TestResolveAcceptAfterLossIsAlreadyProcessed(t *testing.T) {
	f := newResolverFixture()
	invs := f.seedMatchedRound(t, 2)

	if res, _ := f.resolver.Resolve(context.Background(), f.mustToken(t, invs[0], domain.ActionAccept)); res.Outcome != matching.OutcomeAccepted {
		t.Fatalf("winner outcome = %q, want accepted", res.Outcome)
	}

	// The loser's invitation was rejected by the winning transaction, so its
	// late accept lands on already_processed rather than already_matched.
	res, err := f.resolver.Resolve(context.Background(), f.mustToken(t, invs[1], domain.ActionAccept))
	if err != nil {
		t.Fatalf("loser resolve: %v", err)
	}
	if res.Outcome != matching.OutcomeAlreadyProcessed {
		t.Errorf("loser outcome = %q, want already_processed", res.Outcome)
	}
}

func TestResolveAcceptOnCancelledBooking(t *testing.T) {
	f := newResolverFixture()
	invs := f.seedMatchedRound(t, 1)

	f.store.mu.Lock()
	f.store.bookings[1].Status = domain.BookingCancelled
	f.store.mu.Unlock()

	res, err := f.resolver.Resolve(context.Background(), f.mustToken(t, invs[0], domain.ActionAccept))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome != matching.OutcomeAlreadyMatched {
		t.Errorf("outcome = %q, want already_matched for a cancelled booking", res.Outcome)
	}
	if got := f.store.guide(invs[0].GuideID).ToursCompleted; got != 0 {
		t.Errorf("tours incremented to %d on a cancelled booking", got)
	}
}

func TestResolveTokenMismatch(t *testing.T) {
	f := newResolverFixture()
	invs := f.seedMatchedRound(t, 2)

	// Token claims guide 2 on guide 1's invitation.
	tok, err := f.codec.Encode(invs[0].BookingID, invs[1].GuideID, invs[0].ID, domain.ActionAccept)
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}

	res, err := f.resolver.Resolve(context.Background(), tok)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome != matching.OutcomeTokenMismatch {
		t.Errorf("outcome = %q, want token_mismatch", res.Outcome)
	}
	if got := f.store.invitation(invs[0].ID); got.Status != domain.InvitationPending {
		t.Errorf("invitation status = %q, want pending (no action on tamper)", got.Status)
	}
}

func TestResolveInvalidToken(t *testing.T) {
	f := newResolverFixture()

	res, err := f.resolver.Resolve(context.Background(), "not-a-token")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome != matching.OutcomeInvalidToken {
		t.Errorf("outcome = %q, want invalid_token", res.Outcome)
	}

	// Signed with a different secret.
	other := token.NewCodec("other-secret", time.Hour)
	forged, err := other.Encode(1, 1, 1, domain.ActionAccept)
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	res, err = f.resolver.Resolve(context.Background(), forged)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome != matching.OutcomeInvalidToken {
		t.Errorf("outcome = %q, want invalid_token for foreign signature", res.Outcome)
	}
}

func TestResolveInvitationNotFound(t *testing.T) {
	f := newResolverFixture()
	f.store.addBooking(domain.Booking{ID: 1, Status: domain.BookingMatched})

	tok, err := f.codec.Encode(1, 1, 99, domain.ActionAccept)
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}
	res, err := f.resolver.Resolve(context.Background(), tok)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome != matching.OutcomeInvitationNotFound {
		t.Errorf("outcome = %q, want invitation_not_found", res.Outcome)
	}
}
