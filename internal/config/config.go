package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	TransportSMTP   = "smtp"
	TransportResend = "resend"

	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	// ----------------------------
	// Mail transport
	// ----------------------------
	MailTransport string `envconfig:"MAIL_TRANSPORT" default:"smtp"`
	SMTPHost      string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort      int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser      string `envconfig:"SMTP_USER" default:""`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom      string `envconfig:"SMTP_FROM" default:"noreply@shoppulse.local"`
	ResendAPIKey  string `envconfig:"RESEND_API_KEY" default:""`
	RateLimit     int    `envconfig:"RATE_LIMIT" default:"10"`

	// ----------------------------
	// Queue
	// ----------------------------
	QueueConcurrency    int           `envconfig:"QUEUE_CONCURRENCY" default:"3"`
	QueueDefaultRetries int           `envconfig:"QUEUE_DEFAULT_RETRIES" default:"3"`
	RetryBaseDelay      time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
	RetryStrategy       string        `envconfig:"RETRY_STRATEGY" default:"linear"`
	RetryMaxDelay       time.Duration `envconfig:"RETRY_MAX_DELAY" default:"1m"`
	SendTimeout         time.Duration `envconfig:"SEND_TIMEOUT" default:"30s"`

	// ----------------------------
	// Direct (test) sends
	// ----------------------------
	DirectSendRetries int           `envconfig:"DIRECT_SEND_RETRIES" default:"2"`
	DirectSendDelay   time.Duration `envconfig:"DIRECT_SEND_DELAY" default:"2s"`

	// ----------------------------
	// Storefront
	// ----------------------------
	SiteName           string `envconfig:"SITE_NAME" default:"ShopPulse"`
	SiteURL            string `envconfig:"SITE_URL" default:"http://localhost:3000"`
	SiteSupportEmail   string `envconfig:"SITE_SUPPORT_EMAIL" default:"support@shoppulse.local"`
	SiteCurrencySymbol string `envconfig:"SITE_CURRENCY_SYMBOL" default:"$"`

	// ----------------------------
	// Delivery log
	// ----------------------------
	DeliveryLogDriver  string        `envconfig:"DELIVERY_LOG_DRIVER" default:"memory"`
	DatabaseURL        string        `envconfig:"DATABASE_URL" default:""`
	MongoURI           string        `envconfig:"MONGO_URI" default:""`
	MongoDatabase      string        `envconfig:"MONGO_DATABASE" default:"shoppulse"`
	DeliveryLogBuffer  int           `envconfig:"DELIVERY_LOG_BUFFER" default:"1024"`
	DeliveryLogTimeout time.Duration `envconfig:"DELIVERY_LOG_TIMEOUT" default:"5s"`

	// ----------------------------
	// HTTP
	// ----------------------------
	APIPort     string `envconfig:"API_PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Logging + error reporting
	// ----------------------------
	LogDevelopment    bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
	SentryDSN         string `envconfig:"SENTRY_DSN" default:""`
	SentryEnvironment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	switch c.MailTransport {
	case TransportSMTP:
		if c.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp transport"))
		}
	case TransportResend:
		if c.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required for the resend transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_TRANSPORT must be %q or %q, got %q", TransportSMTP, TransportResend, c.MailTransport))
	}

	switch c.DeliveryLogDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres delivery log"))
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo delivery log"))
		}
	default:
		errs = append(errs, fmt.Errorf("DELIVERY_LOG_DRIVER must be memory, postgres or mongo, got %q", c.DeliveryLogDriver))
	}

	switch c.RetryStrategy {
	case "linear", "exponential":
	default:
		errs = append(errs, fmt.Errorf("RETRY_STRATEGY must be linear or exponential, got %q", c.RetryStrategy))
	}

	if c.QueueConcurrency < 1 {
		errs = append(errs, errors.New("QUEUE_CONCURRENCY must be at least 1"))
	}
	if c.QueueDefaultRetries < 0 {
		errs = append(errs, errors.New("QUEUE_DEFAULT_RETRIES must not be negative"))
	}
	if c.RetryBaseDelay <= 0 {
		errs = append(errs, errors.New("RETRY_BASE_DELAY must be positive"))
	}

	return errors.Join(errs...)
}
