package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mridulmalani2/wandernest/internal/domain"
)

// Notifier composes the matching emails over a mail Service. It satisfies the
// matching engine's notifier contract; every send is best-effort from the
// engine's point of view.
type Notifier struct {
	svc Service
}

func NewNotifier(svc Service) *Notifier {
	return &Notifier{svc: svc}
}

func (n *Notifier) SendInvitation(ctx context.Context, guide domain.Guide, booking domain.Booking, acceptURL, declineURL string) error {
	subject := fmt.Sprintf("New tour request in %s", booking.Locality)

	text := fmt.Sprintf(
		"Hi %s,\n\n"+
			"A traveler is looking for a guide in %s from %s to %s "+
			"(%d people, %s).\n\n"+
			"Accept: %s\n"+
			"Decline: %s\n\n"+
			"This link expires, so please respond soon.",
		guide.Name, booking.Locality,
		booking.StartDate.Format("Mon 2 Jan 2006"), booking.EndDate.Format("Mon 2 Jan 2006"),
		booking.PartySize, booking.PartyType,
		acceptURL, declineURL)

	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>A traveler is looking for a guide in <b>%s</b> from %s to %s (%d people, %s).</p>
<p>Interests: %s</p>
<p><a href="%s">Accept this request</a> &middot; <a href="%s">Decline</a></p>
<p>This link expires, so please respond soon.</p>`,
		guide.Name, booking.Locality,
		booking.StartDate.Format("Mon 2 Jan 2006"), booking.EndDate.Format("Mon 2 Jan 2006"),
		booking.PartySize, booking.PartyType,
		interestsOrNone(booking.Interests),
		acceptURL, declineURL)

	_, err := n.svc.Send(guide.Email, guide.Name, subject, text, html)
	return err
}

// SendContactExchange tells the traveler who their guide is.
func (n *Notifier) SendContactExchange(ctx context.Context, booking domain.Booking, guide domain.Guide) error {
	subject := fmt.Sprintf("Your guide for %s is confirmed", booking.Locality)

	text := fmt.Sprintf(
		"Hi %s,\n\n"+
			"%s has accepted your request in %s.\n\n"+
			"Guide contact:\n  Email: %s\n  Phone: %s\n\n"+
			"Please reach out to plan the details of your tour.",
		booking.TravelerName, guide.Name, booking.Locality, guide.Email, guide.Phone)

	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p><b>%s</b> has accepted your request in %s.</p>
<p>Guide contact:<br>Email: %s<br>Phone: %s</p>
<p>Please reach out to plan the details of your tour.</p>`,
		booking.TravelerName, guide.Name, booking.Locality, guide.Email, guide.Phone)

	_, err := n.svc.Send(booking.TravelerEmail, booking.TravelerName, subject, text, html)
	return err
}

// SendWinnerConfirmation gives the guide the traveler's contact details.
func (n *Notifier) SendWinnerConfirmation(ctx context.Context, guide domain.Guide, booking domain.Booking) error {
	subject := fmt.Sprintf("You're confirmed for the %s tour", booking.Locality)

	text := fmt.Sprintf(
		"Hi %s,\n\n"+
			"You're confirmed for the tour in %s from %s to %s.\n\n"+
			"Traveler contact:\n  Name: %s\n  Email: %s\n  Phone: %s",
		guide.Name, booking.Locality,
		booking.StartDate.Format("Mon 2 Jan 2006"), booking.EndDate.Format("Mon 2 Jan 2006"),
		booking.TravelerName, booking.TravelerEmail, booking.TravelerPhone)

	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>You're confirmed for the tour in <b>%s</b> from %s to %s.</p>
<p>Traveler contact:<br>Name: %s<br>Email: %s<br>Phone: %s</p>`,
		guide.Name, booking.Locality,
		booking.StartDate.Format("Mon 2 Jan 2006"), booking.EndDate.Format("Mon 2 Jan 2006"),
		booking.TravelerName, booking.TravelerEmail, booking.TravelerPhone)

	_, err := n.svc.Send(guide.Email, guide.Name, subject, text, html)
	return err
}

func interestsOrNone(interests []string) string {
	if len(interests) == 0 {
		return "none given"
	}
	return strings.Join(interests, ", ")
}
