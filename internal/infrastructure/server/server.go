package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	apihttp "github.com/GriffinCanCode/AgentOS/constellation/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/constellation"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/embedder"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// HealthService is the grpc.health.v1 service name reporting the orchestrator
const HealthService = "constellation"

// Options carries everything the embedder surface talks to
type Options struct {
	Config   *config.Config
	Proxy    *constellation.Proxy
	Tabs     *id.Namespace
	Bus      *embedder.Bus
	Metrics  *monitoring.Metrics
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// Server wraps the HTTP API and the gRPC health service
type Server struct {
	router *gin.Engine
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
	logger *logging.Logger
	config *config.Config
}

// New builds the router and the health service
func New(opts Options) *Server {
	cfg := opts.Config
	logger := opts.Logger

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	tracer := tracing.New("constellation", logger.Component("tracing"))

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(opts.Metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.BodyLimit(middleware.MaxJSONSize))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(apihttp.Options{
		Proxy:    opts.Proxy,
		Tabs:     opts.Tabs,
		HomeURL:  cfg.Constellation.HomeURL,
		Gatherer: opts.Gatherer,
		Metrics:  opts.Metrics,
		Logger:   logger.Component("api"),
	})
	handlers.Register(router)

	wsHandler := ws.NewHandler(opts.Bus, opts.Metrics, logger.Component("ws"))
	router.GET("/events", wsHandler.HandleConnection)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(tracing.GRPCUnaryInterceptor(tracer)))
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		router: router,
		http: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		grpc:   grpcServer,
		health: healthServer,
		logger: logger,
		config: cfg,
	}
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetServing flips the health status of the orchestrator
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(HealthService, status)
}

// Run listens on the configured addresses and serves until ctx ends
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	httpLis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	var healthLis net.Listener
	if s.config.Server.HealthPort != "" {
		healthAddr := net.JoinHostPort(s.config.Server.Host, s.config.Server.HealthPort)
		healthLis, err = net.Listen("tcp", healthAddr)
		if err != nil {
			httpLis.Close()
			return err
		}
	}

	return s.Serve(ctx, httpLis, healthLis)
}

// Serve serves HTTP on httpLis and gRPC health on healthLis (which may be
// nil) until ctx ends or either server fails, then shuts both down
func (s *Server) Serve(ctx context.Context, httpLis, healthLis net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", httpLis.Addr().String()))
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if healthLis != nil {
		g.Go(func() error {
			s.logger.Info("Starting gRPC health server", zap.String("addr", healthLis.Addr().String()))
			if err := s.grpc.Serve(healthLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	s.logger.Info("Shutting down server...")
	s.SetServing(false)
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Constellation.ShutdownTimeout.Std())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	err := s.http.Shutdown(ctx)
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpc.Stop()
	}
	return err
}
