package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport sends messages through an SMTP relay.
type SMTPTransport struct {
	From string

	dialer dialer
}

func NewSMTPTransport(host string, port int, user, password, from string) *SMTPTransport {
	return &SMTPTransport{
		From:   from,
		dialer: gomail.NewDialer(host, port, user, password),
	}
}

// SendMail builds the MIME message and hands it to the relay. The relay
// dial itself is not cancellable, so a cancelled context returns early and
// leaves the dial to finish in the background.
func (s *SMTPTransport) SendMail(ctx context.Context, msg Message) (Receipt, error) {
	if len(msg.To) == 0 {
		return Receipt{}, ErrNoRecipient
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.domain())

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)

	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	case err := <-done:
		if err != nil {
			return Receipt{}, fmt.Errorf("smtp send error: %w", err)
		}
	}

	return Receipt{MessageID: messageID}, nil
}

func (s *SMTPTransport) domain() string {
	from := strings.TrimSuffix(strings.TrimSpace(s.From), ">")
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return from[i+1:]
	}
	return "localhost"
}
