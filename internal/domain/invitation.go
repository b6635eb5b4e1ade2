package domain

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

func ParseInvitationStatus(s string) (InvitationStatus, bool) {
	switch InvitationStatus(s) {
	case InvitationPending, InvitationAccepted, InvitationRejected:
		return InvitationStatus(s), true
	default:
		return "", false
	}
}

// Invitation binds one guide to one booking for one matching round.
// At most one invitation per booking ever reaches accepted; the rest are
// rejected, either explicitly by the guide or implicitly when a sibling wins.
type Invitation struct {
	ID         int64            `json:"id"`
	BookingID  int64            `json:"booking_id"`
	GuideID    int64            `json:"guide_id"`
	Status     InvitationStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty"`
}

// ResponseAction is what an invited guide may do with an invitation.
type ResponseAction string

const (
	ActionAccept  ResponseAction = "accept"
	ActionDecline ResponseAction = "decline"
)

func ParseResponseAction(s string) (ResponseAction, bool) {
	switch ResponseAction(s) {
	case ActionAccept, ActionDecline:
		return ResponseAction(s), true
	default:
		return "", false
	}
}
