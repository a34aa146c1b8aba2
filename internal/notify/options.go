package notify

type sendOptions struct {
	priority    int
	hasPriority bool
	retries     int
	hasRetries  bool
}

// Option overrides the defaults of a single notification.
type Option func(*sendOptions)

// WithPriority replaces the template's default priority.
func WithPriority(p int) Option {
	return func(o *sendOptions) {
		o.priority = p
		o.hasPriority = true
	}
}

// WithRetries replaces the queue's default retry budget.
func WithRetries(n int) Option {
	return func(o *sendOptions) {
		o.retries = n
		o.hasRetries = true
	}
}
