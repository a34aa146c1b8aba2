package notify

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"ShopPulse/internal/models"
	"ShopPulse/internal/queue"
	"ShopPulse/internal/templates"
)

// Queue is the part of the mail queue the service drives.
type Queue interface {
	Add(req queue.Request, opts ...queue.AddOption) (string, error)
	Subscribe(l queue.Listener)
	Stats() queue.Stats
	Pause()
	Resume()
	Clear() int
}

// Recorder receives every job lifecycle event.
type Recorder interface {
	Record(job models.EmailJob, event models.EventType, err error)
}

// Service turns shop events into queued mail. Every Send method validates
// and renders synchronously and returns the job id without waiting for
// delivery.
type Service struct {
	resolver *templates.Resolver
	queue    Queue
	site     templates.Site
	log      *zap.Logger
}

// New builds the service and subscribes recorder to the queue. Construct
// one Service per queue so each event is recorded once.
func New(resolver *templates.Resolver, q Queue, recorder Recorder, site templates.Site, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}

	if recorder != nil {
		q.Subscribe(func(ev queue.Event) {
			if ev.Type.Status() == "" {
				return
			}
			recorder.Record(ev.Job, ev.Type, ev.Err)
		})
	}

	return &Service{
		resolver: resolver,
		queue:    q,
		site:     site,
		log:      log,
	}
}

func (s *Service) SendOrderConfirmation(order *models.Order, user *models.User, opts ...Option) (string, error) {
	return s.send(templates.OrderConfirmation, user, order, map[string]any{
		"order": order,
		"user":  user,
	}, opts)
}

func (s *Service) SendPaymentFailed(order *models.Order, user *models.User, errorMessage string, opts ...Option) (string, error) {
	data := map[string]any{
		"order": order,
		"user":  user,
	}
	if errorMessage != "" {
		data["errorMessage"] = errorMessage
	}
	return s.send(templates.PaymentFailed, user, order, data, opts)
}

func (s *Service) SendPasswordReset(user *models.User, token string, opts ...Option) (string, error) {
	return s.send(templates.PasswordReset, user, nil, map[string]any{
		"user":     user,
		"resetUrl": s.link("/reset-password", token),
	}, opts)
}

func (s *Service) SendVerificationEmail(user *models.User, token string, opts ...Option) (string, error) {
	return s.send(templates.AccountVerification, user, nil, map[string]any{
		"user":            user,
		"verificationUrl": s.link("/verify-email", token),
	}, opts)
}

func (s *Service) SendShippingUpdate(order *models.Order, user *models.User, tracking *models.TrackingInfo, opts ...Option) (string, error) {
	return s.send(templates.ShippingUpdate, user, order, map[string]any{
		"order":    order,
		"user":     user,
		"tracking": tracking,
	}, opts)
}

func (s *Service) SendWelcome(user *models.User, opts ...Option) (string, error) {
	return s.send(templates.Welcome, user, nil, map[string]any{
		"user": user,
	}, opts)
}

func (s *Service) GetQueueStats() queue.Stats { return s.queue.Stats() }

func (s *Service) PauseQueue() { s.queue.Pause() }

func (s *Service) ResumeQueue() { s.queue.Resume() }

func (s *Service) ClearQueue() int { return s.queue.Clear() }

func (s *Service) send(name string, user *models.User, order *models.Order, data map[string]any, opts []Option) (string, error) {
	cfg, err := s.resolver.Config(name)
	if err != nil {
		return "", err
	}

	rendered, err := s.resolver.Render(name, data)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(user.Email) == "" {
		return "", queue.ErrNoRecipient
	}

	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	priority := cfg.Priority
	if o.hasPriority {
		priority = o.priority
	}
	addOpts := []queue.AddOption{queue.Priority(priority)}
	if o.hasRetries {
		addOpts = append(addOpts, queue.Retries(o.retries))
	}

	metadata := map[string]string{"kind": name}
	if user.ID != "" {
		metadata["userId"] = user.ID
	}
	if order != nil && order.ID != "" {
		metadata["orderId"] = order.ID
	}

	id, err := s.queue.Add(queue.Request{
		To:       []string{user.Email},
		Subject:  rendered.Subject,
		Template: name,
		Data:     data,
		HTML:     rendered.HTML,
		Text:     rendered.Text,
		Metadata: metadata,
	}, addOpts...)
	if err != nil {
		return "", err
	}

	s.log.Info("notification queued",
		zap.String("job_id", id),
		zap.String("template", name),
		zap.Int("priority", priority),
	)
	return id, nil
}

func (s *Service) link(path, token string) string {
	return strings.TrimRight(s.site.URL, "/") + path + "?token=" + url.QueryEscape(token)
}
