package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Publisher is the part of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

type accountRegisteredMessage struct {
	EventID      string    `json:"eventId"`
	Type         string    `json:"type"`
	UserID       int64     `json:"userId"`
	Email        string    `json:"email"`
	UserName     string    `json:"userName"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// NATSNotifier publishes account events as JSON on a single subject.
type NATSNotifier struct {
	pub     Publisher
	subject string
}

func NewNATSNotifier(pub Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{pub: pub, subject: subject}
}

// ConnectNATS dials url with reconnects enabled.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("identity-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

func (n *NATSNotifier) AccountRegistered(ctx context.Context, in AccountRegisteredInput) error {
	body, err := json.Marshal(accountRegisteredMessage{
		EventID:      uuid.NewString(),
		Type:         "account.registered",
		UserID:       in.UserID,
		Email:        in.Email,
		UserName:     in.UserName,
		RegisteredAt: in.RegisteredAt.UTC(),
	})
	if err != nil {
		return err
	}

	if err := n.pub.Publish(n.subject, body); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return fmt.Errorf("nats connection closed: %w", err)
		}
		return err
	}

	// the publish is buffered; flushing surfaces a dead connection now
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}
	return n.pub.FlushWithContext(ctx)
}
