package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mridulmalani2/wandernest/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	InvitationsDispatched = "match.invitations.dispatched"
	BookingAccepted       = "match.booking.accepted"
	InvitationDeclined    = "match.invitation.declined"
	NotifyFailed          = "match.notify.failed"
)

// Event payloads
type InvitationsDispatchedEvent struct {
	BookingID       int64     `json:"booking_id"`
	Locality        string    `json:"locality"`
	CandidatesFound int       `json:"candidates_found"`
	Invitations     int       `json:"invitations"`
	DispatchedAt    time.Time `json:"dispatched_at"`
}

type BookingAcceptedEvent struct {
	BookingID    int64     `json:"booking_id"`
	GuideID      int64     `json:"guide_id"`
	InvitationID int64     `json:"invitation_id"`
	AcceptedAt   time.Time `json:"accepted_at"`
}

type InvitationDeclinedEvent struct {
	BookingID    int64     `json:"booking_id"`
	GuideID      int64     `json:"guide_id"`
	InvitationID int64     `json:"invitation_id"`
	DeclinedAt   time.Time `json:"declined_at"`
}

type NotifyFailedEvent struct {
	BookingID int64  `json:"booking_id"`
	GuideID   int64  `json:"guide_id"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
}
