package email

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DirectSender sends synchronously, bypassing the mail queue, with a fixed
// delay between a small number of retries. It has no priority, status or
// delivery log semantics and is kept for operator test sends.
type DirectSender struct {
	transport Transport
	retries   int
	delay     time.Duration
	log       *zap.Logger
}

func NewDirectSender(transport Transport, retries int, delay time.Duration, log *zap.Logger) *DirectSender {
	if log == nil {
		log = zap.NewNop()
	}
	if retries < 0 {
		retries = 0
	}
	return &DirectSender{
		transport: transport,
		retries:   retries,
		delay:     delay,
		log:       log,
	}
}

// Send returns the receipt of the first successful attempt or the last error.
func (d *DirectSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	var receipt Receipt
	attempt := 0

	operation := func() error {
		attempt++
		r, err := d.transport.SendMail(ctx, msg)
		if err != nil {
			if err == ErrNoRecipient {
				return backoff.Permanent(err)
			}
			d.log.Warn("direct send attempt failed",
				zap.Int("attempt", attempt),
				zap.Strings("to", msg.To),
				zap.Error(err),
			)
			return err
		}
		receipt = r
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(d.delay), uint64(d.retries))

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}
