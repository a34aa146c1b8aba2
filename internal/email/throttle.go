package email

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttled waits on a rate limiter before every send.
type Throttled struct {
	next    Transport
	limiter *rate.Limiter
}

// NewThrottled allows perSecond sends per second with an equal burst.
// A non-positive rate disables throttling.
func NewThrottled(next Transport, perSecond int) Transport {
	if perSecond <= 0 {
		return next
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (t *Throttled) SendMail(ctx context.Context, msg Message) (Receipt, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Receipt{}, err
	}
	return t.next.SendMail(ctx, msg)
}
