package matching_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mridulmalani2/wandernest/internal/domain"
)

// memStore is an in-memory stand-in for the Postgres repos. Its
// AcceptExclusive mirrors the production transaction: a guarded status
// transition decides the winner under one lock, everything else only happens
// on the winning path.
type memStore struct {
	mu          sync.Mutex
	bookings    map[int64]*domain.Booking
	guides      map[int64]*domain.Guide
	invitations map[int64]*domain.Invitation
	nextInvID   int64

	createInvErr  error
	failCreateFor map[int64]bool // guide IDs whose invitation insert fails
	acceptCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		bookings:    make(map[int64]*domain.Booking),
		guides:      make(map[int64]*domain.Guide),
		invitations: make(map[int64]*domain.Invitation),
		nextInvID:   1,
	}
}

func (s *memStore) addBooking(b domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = &b
}

func (s *memStore) addGuide(g domain.Guide) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guides[g.ID] = &g
}

func (s *memStore) booking(id int64) domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bookings[id]
}

func (s *memStore) guide(id int64) domain.Guide {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.guides[id]
}

func (s *memStore) invitation(id int64) domain.Invitation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.invitations[id]
}

func (s *memStore) invitationsFor(bookingID int64) []domain.Invitation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Invitation
	for _, inv := range s.invitations {
		if inv.BookingID == bookingID {
			out = append(out, *inv)
		}
	}
	return out
}

// BookingStore

func (s *memStore) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) MarkMatched(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != domain.BookingPending {
		return false, nil
	}
	b.Status = domain.BookingMatched
	return true, nil
}

// InvitationStore

func (s *memStore) Create(ctx context.Context, bookingID, guideID int64) (*domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createInvErr != nil {
		return nil, s.createInvErr
	}
	if s.failCreateFor[guideID] {
		return nil, errors.New("insert failed")
	}
	inv := &domain.Invitation{
		ID:        s.nextInvID,
		BookingID: bookingID,
		GuideID:   guideID,
		Status:    domain.InvitationPending,
		CreatedAt: time.Now(),
	}
	s.nextInvID++
	s.invitations[inv.ID] = inv
	cp := *inv
	return &cp, nil
}

func (s *memStore) GetInvitationByID(ctx context.Context, id int64) (*domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (s *memStore) MarkRejected(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok || inv.Status != domain.InvitationPending {
		return false, nil
	}
	inv.Status = domain.InvitationRejected
	return true, nil
}

// GuideStore

func (s *memStore) GetGuideByID(ctx context.Context, id int64) (*domain.Guide, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guides[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

// AllocationStore

func (s *memStore) AcceptExclusive(ctx context.Context, bookingID, guideID, invitationID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acceptCalls++

	b, ok := s.bookings[bookingID]
	if !ok || b.Status != domain.BookingMatched {
		return false, nil
	}
	b.Status = domain.BookingAccepted
	b.GuideID = &guideID

	now := time.Now()
	if inv, ok := s.invitations[invitationID]; ok && inv.Status == domain.InvitationPending {
		inv.Status = domain.InvitationAccepted
		inv.AcceptedAt = &now
	}
	for _, inv := range s.invitations {
		if inv.BookingID == bookingID && inv.ID != invitationID && inv.Status == domain.InvitationPending {
			inv.Status = domain.InvitationRejected
		}
	}
	if g, ok := s.guides[guideID]; ok {
		g.ToursCompleted++
	}
	return true, nil
}

// invitationView narrows memStore to the invitation interface expected by the
// engine (its GetByID name collides with the booking one).
type invitationView struct{ *memStore }

func (v invitationView) GetByID(ctx context.Context, id int64) (*domain.Invitation, error) {
	return v.GetInvitationByID(ctx, id)
}

type guideView struct{ *memStore }

func (v guideView) GetByID(ctx context.Context, id int64) (*domain.Guide, error) {
	return v.GetGuideByID(ctx, id)
}

// mockNotifier records sends and can be told to fail for certain guides.
type mockNotifier struct {
	mu            sync.Mutex
	invitations   int
	contactMails  int
	winnerMails   int
	failForGuides map[int64]bool
}

func (m *mockNotifier) SendInvitation(ctx context.Context, guide domain.Guide, booking domain.Booking, acceptURL, declineURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failForGuides[guide.ID] {
		return errors.New("send failed")
	}
	m.invitations++
	return nil
}

func (m *mockNotifier) SendContactExchange(ctx context.Context, booking domain.Booking, guide domain.Guide) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contactMails++
	return nil
}

func (m *mockNotifier) SendWinnerConfirmation(ctx context.Context, guide domain.Guide, booking domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.winnerMails++
	return nil
}

func (m *mockNotifier) counts() (int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invitations, m.contactMails, m.winnerMails
}

// mockBus records published subjects.
type mockBus struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockBus) Publish(ctx context.Context, subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockBus) Close() error { return nil }

func (m *mockBus) published(subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

// staticPool serves a fixed guide pool.
type staticPool struct {
	guides []domain.Guide
	err    error
}

func (p *staticPool) EligibleGuides(ctx context.Context, locality string) ([]domain.Guide, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.guides, nil
}
