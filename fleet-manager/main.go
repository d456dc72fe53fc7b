package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/awsconfig"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/journal"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore/redisstore"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/metrics"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/notifier"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/provider"
	"github.com/kavos113/quickfleet/fleet-manager/interface/handler"
	"github.com/kavos113/quickfleet/fleet-manager/usecase"
	"github.com/kavos113/quickfleet/lib/logger"
)

const serviceName = "fleet-manager"

func main() {
	cfg := NewConfigFromEnv()
	appLogger := logger.New(serviceName)
	ctx := context.Background()

	awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
	if err != nil {
		log.Fatalf("failed to load aws config: %v", err)
	}

	store, err := kvstore.Open(ctx, cfg.Store, cfg.AWS)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.Store.Backend, err)
	}
	defer store.Close()
	log.Printf("Watch list stored in %s backend", cfg.Store.Backend)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	publishers, closePublishers := newPublishers(cfg)
	defer closePublishers()

	ec2Provider := provider.NewEC2Provider(provider.NewEC2Client(awsCfg, cfg.AWS.BaseEndpoint()))
	ssmChannel := provider.NewSSMChannel(provider.NewSSMClient(awsCfg, cfg.AWS.BaseEndpoint()))

	profile, err := usecase.NewScriptProfile(cfg.ScriptShell, cfg.ScriptLauncher, cfg.ScriptEntry)
	if err != nil {
		log.Fatalf("invalid script profile: %v", err)
	}

	directory := usecase.NewInstanceDirectory(ec2Provider, appLogger)
	watchList := usecase.NewWatchListStore(store, appLogger)
	instanceController := usecase.NewInstanceController(ec2Provider, appLogger)
	scriptController := usecase.NewRemoteScriptController(directory, ssmChannel, profile, appLogger)
	loop := usecase.NewReconciliationLoop(
		directory,
		watchList,
		scriptController,
		usecase.LoopConfig{Interval: cfg.ReconcileInterval, Timeout: cfg.ReconcileTimeout},
		m,
		appLogger,
		publishers...,
	)

	opts := []usecase.Option{
		usecase.WithLogger(appLogger),
		usecase.WithMetrics(m),
		usecase.WithOptimisticScriptState(cfg.OptimisticScript),
		usecase.WithRefreshAfterAction(cfg.RefreshAfterAction),
	}
	if cfg.JournalBucket != "" {
		j, err := newJournal(ctx, cfg, awsCfg)
		if err != nil {
			log.Fatalf("failed to create journal: %v", err)
		}
		opts = append(opts, usecase.WithJournal(j))
		log.Printf("Recording actions to s3://%s", cfg.JournalBucket)
	}
	fleet := usecase.NewFleet(directory, watchList, instanceController, scriptController, loop, opts...)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.NewErrorHandler(appLogger)
	e.Use(middleware.Recover())
	e.Use(logger.NewRequestLogger(serviceName, appLogger).Middleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(cfg.AllowedOrigins, ","),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))

	handler.RegisterRoutes(e, handler.NewFleetHandler(fleet))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go loop.Run(loopCtx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(e, &http2.Server{}),
	}

	log.Printf("Fleet manager listening on port %s (reconcile every %s)", cfg.Port, cfg.ReconcileInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down gracefully...")
		stopLoop()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("failed to serve: %v", err)
	}
}

func newPublishers(cfg *Config) ([]domain.ViewPublisher, func()) {
	var publishers []domain.ViewPublisher
	var closers []func()

	if cfg.PublishRedis {
		client, err := redisstore.NewClient(cfg.Store.RedisAddress, cfg.Store.RedisPassword)
		if err != nil {
			log.Fatalf("failed to connect view publisher: %v", err)
		}
		publishers = append(publishers, notifier.NewRedisPublisher(client, ""))
		closers = append(closers, func() { client.Close() })
		log.Printf("Publishing fleet views to redis channel %s", notifier.DefaultViewChannel)
	}

	if cfg.NATSURL != "" {
		p, err := notifier.NewNATSPublisher(cfg.NATSURL, "")
		if err != nil {
			log.Fatalf("failed to connect view publisher: %v", err)
		}
		publishers = append(publishers, p)
		closers = append(closers, p.Close)
		log.Printf("Publishing fleet views to nats subject %s", notifier.DefaultViewSubject)
	}

	return publishers, func() {
		for _, c := range closers {
			c()
		}
	}
}

func newJournal(ctx context.Context, cfg *Config, awsCfg aws.Config) (*journal.S3Journal, error) {
	endpoint := cfg.AWS.BaseEndpoint()
	if cfg.S3Endpoint != "" {
		endpoint = aws.String(cfg.S3Endpoint)
	}
	return journal.NewS3Journal(ctx, journal.NewS3Client(awsCfg, endpoint), cfg.JournalBucket)
}
