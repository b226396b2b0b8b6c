package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/compositor"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/constellation"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/content"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/embedder"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/hangmonitor"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/server"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/resources"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

func main() {
	configPath := flag.String("config", "", "YAML or TOML configuration file (overrides environment)")
	port := flag.String("port", "", "HTTP port (overrides config)")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Constellation stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Initializing constellation",
		zap.String("port", cfg.Server.Port),
		zap.String("health_port", cfg.Server.HealthPort),
		zap.Int("retained_pipelines", cfg.Constellation.RetainedPipelines),
		zap.Bool("scripts_enabled", cfg.Content.ScriptsEnabled),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)

	endpoints := sandbox.NewEndpoints()
	loaderCfg := resources.DefaultConfig()
	loaderCfg.Timeout = cfg.Loader.Timeout.Std()
	loaderCfg.Retries = cfg.Loader.Retries
	loaderCfg.UserAgent = cfg.Loader.UserAgent
	endpoints.Publish(constellation.ResourceEndpoint, resources.NewLoader(loaderCfg, logger.Component("resources")))

	mailbox := constellation.NewMailbox(cfg.Constellation.MailboxSize)

	alerts := constellation.NewProxy(mailbox, logger.Component("hangmonitor"))
	monitor := hangmonitor.New(hangmonitor.Config{
		Interval: cfg.HangMonitor.CheckInterval.Std(),
		Logger:   logger.Component("hangmonitor"),
		OnHang: func(pipeline id.PipelineID, hungFor time.Duration) {
			_ = alerts.Send(constellation.HangAlert{Pipeline: pipeline, HungFor: hungFor})
		},
	})
	monitor.Start()
	defer monitor.Stop()

	launcher := content.NewLauncher(endpoints, monitor, content.Config{
		HangTimeout: cfg.HangMonitor.Timeout.Std(),
	}, logger.Component("content"))
	threads := sandbox.NewThreadSpawner(launcher.Launch, logger.Component("sandbox"))
	defer threads.Close()

	bus := embedder.NewBus(0, logger.Component("embedder"))
	defer bus.Close()

	c, err := constellation.New(constellation.Options{
		Mailbox:         mailbox,
		Spawner:         sandbox.NewGuardedSpawner(threads, logger.Component("sandbox")),
		Endpoints:       endpoints,
		Compositor:      compositor.New(logger.Component("compositor")),
		Events:          bus,
		Retention:       constellation.NewLRURetention(cfg.Constellation.RetainedPipelines),
		Metrics:         metrics,
		Logger:          logger.Component("constellation"),
		ScriptQueueSize: cfg.Constellation.ScriptQueueSize,
		ScriptTimeout:   cfg.Content.ScriptTimeout.Std(),
		ScriptsEnabled:  cfg.Content.ScriptsEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to create constellation: %w", err)
	}

	srv := server.New(server.Options{
		Config:   cfg,
		Proxy:    c.Proxy(),
		Tabs:     id.InstalledNamespace(id.EmbedderNamespace),
		Bus:      bus,
		Metrics:  metrics,
		Gatherer: reg,
		Logger:   logger,
	})

	actorDone := make(chan error, 1)
	go func() { actorDone <- c.Run(context.Background()) }()
	srv.SetServing(true)

	serveCtx, stopServing := context.WithCancel(context.Background())
	defer stopServing()
	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Run(serveCtx) }()

	var failure error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err := <-serveDone:
		failure = fmt.Errorf("server stopped unexpectedly: %v", err)
		serveDone = nil
	case err := <-actorDone:
		failure = fmt.Errorf("constellation stopped unexpectedly: %v", err)
		actorDone = nil
	}

	srv.SetServing(false)
	if actorDone != nil {
		if err := c.Proxy().Send(constellation.Exit{}); err != nil {
			logger.Warn("Constellation already gone", zap.Error(err))
		}
		<-actorDone
	}
	bus.Close()

	stopServing()
	if serveDone != nil {
		if err := <-serveDone; err != nil {
			logger.Warn("Server shutdown failed", zap.Error(err))
		}
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Constellation.ShutdownTimeout.Std())
	defer cancel()
	if err := threads.Wait(waitCtx); err != nil {
		logger.Warn("Content threads did not exit in time", zap.Error(err))
	}

	logger.Info("Constellation stopped")
	return failure
}
