package email

import (
	"context"
	"errors"
)

var ErrNoRecipient = errors.New("email must have at least one recipient")

// Message is a fully rendered email ready for a transport.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Receipt is what a transport reports back for an accepted message.
type Receipt struct {
	MessageID string
}

// Transport delivers a rendered message. Implementations must be safe for
// concurrent use.
type Transport interface {
	SendMail(ctx context.Context, msg Message) (Receipt, error)
}

// TransportFunc adapts a plain function to Transport.
type TransportFunc func(ctx context.Context, msg Message) (Receipt, error)

func (f TransportFunc) SendMail(ctx context.Context, msg Message) (Receipt, error) {
	return f(ctx, msg)
}
