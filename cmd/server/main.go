package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ShopPulse/internal/alerting"
	"ShopPulse/internal/api"
	"ShopPulse/internal/config"
	"ShopPulse/internal/db"
	"ShopPulse/internal/deliverylog"
	"ShopPulse/internal/email"
	"ShopPulse/internal/metrics"
	"ShopPulse/internal/notify"
	"ShopPulse/internal/queue"
	"ShopPulse/internal/templates"
)

func main() {

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ------------------------------------------------
	// Delivery Log
	// ------------------------------------------------
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("delivery log store unavailable",
			zap.String("driver", cfg.DeliveryLogDriver),
			zap.Error(err),
		)
	}
	defer closeStore()

	deliveries := deliverylog.New(store, logger.Named("deliverylog"), cfg.DeliveryLogTimeout)
	recorder := deliverylog.NewRecorder(deliveries, cfg.DeliveryLogBuffer, logger.Named("deliverylog"))

	// ------------------------------------------------
	// Mail Transport
	// ------------------------------------------------
	var transport email.Transport
	switch cfg.MailTransport {
	case config.TransportResend:
		transport = email.NewResendTransport(cfg.ResendAPIKey, cfg.SMTPFrom)
	default:
		transport = email.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	transport = email.NewThrottled(transport, cfg.RateLimit)

	// ------------------------------------------------
	// Templates
	// ------------------------------------------------
	site := templates.Site{
		Name:           cfg.SiteName,
		URL:            cfg.SiteURL,
		SupportEmail:   cfg.SiteSupportEmail,
		CurrencySymbol: cfg.SiteCurrencySymbol,
	}

	registry, err := templates.DefaultRegistry()
	if err != nil {
		logger.Fatal("invalid template registry", zap.Error(err))
	}

	resolver, err := templates.NewResolver(registry, templates.NewDefaultRenderer(site), site)
	if err != nil {
		logger.Fatal("invalid template registry", zap.Error(err))
	}

	// ------------------------------------------------
	// Mail Queue
	// ------------------------------------------------
	mailQueue := queue.New(transport,
		queue.WithConcurrency(cfg.QueueConcurrency),
		queue.WithDefaultRetries(cfg.QueueDefaultRetries),
		queue.WithBackoff(queue.NewBackoff(cfg.RetryStrategy, cfg.RetryBaseDelay, cfg.RetryMaxDelay)),
		queue.WithSendTimeout(cfg.SendTimeout),
		queue.WithLogger(logger.Named("queue")),
	)

	notifier := notify.New(resolver, mailQueue, recorder, site, logger.Named("notify"))

	// ------------------------------------------------
	// Failure reporting
	// ------------------------------------------------
	if cfg.SentryDSN != "" {
		hub, err := alerting.NewHub(cfg.SentryDSN, cfg.SentryEnvironment)
		if err != nil {
			logger.Fatal("sentry init failed", zap.Error(err))
		}
		reporter := alerting.NewFailureReporter(hub)
		mailQueue.Subscribe(reporter.Observe)
		defer reporter.Flush(2 * time.Second)
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mailMetrics := metrics.New(promRegistry, mailQueue.Stats)
	mailQueue.Subscribe(mailMetrics.Observe)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}


	// ------------------------------------------------
	// Admin HTTP API
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Notifier:   notifier,
		Deliveries: deliveries,
		Direct:     email.NewDirectSender(transport, cfg.DirectSendRetries, cfg.DirectSendDelay, logger.Named("direct")),
		Log:        logger.Named("api"),
	}

	apiServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           apiHandler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// ------------------------------------------------
	// Serve until a signal or a server failure
	// ------------------------------------------------
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		return serve(metricsServer)
	})
	g.Go(func() error {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		return serve(apiServer)
	})

	<-gctx.Done()

	logger.Info("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting new jobs
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	// Let in-flight sends finish
	if err := mailQueue.Close(shutdownCtx); err != nil {
		logger.Error("mail queue did not drain", zap.Error(err))
	}

	// Flush delivery log writes
	recorder.Close()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore connects the configured delivery log backend and runs its
// migrations.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (deliverylog.Store, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.DeliveryLogDriver {
	case config.DriverPostgres:
		pg, err := db.New(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(connectCtx, logger.Named("migrate")); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil

	case config.DriverMongo:
		mg, err := db.NewMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if err := mg.Migrate(connectCtx); err != nil {
			_ = mg.Close(context.Background())
			return nil, nil, fmt.Errorf("migrate mongo: %w", err)
		}
		return mg, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mg.Close(closeCtx)
		}, nil
	}

	return deliverylog.NewMemoryStore(), func() {}, nil
}
