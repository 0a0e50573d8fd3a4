// Package handlers provides the HTTP API and the gRPC health server of the
// company service, bridging the transport layer and business logic.
package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gartstein/founderhub/internal/company/auth"
	"github.com/gartstein/founderhub/internal/pkg/ratelimit"
	"github.com/gartstein/founderhub/internal/pkg/telemetry"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server holds references to both a gRPC server and an HTTP server.
type Server struct {
	grpcServer   *grpc.Server
	httpServer   *http.Server
	health       *health.Server
	conn         *grpc.ClientConn
	logger       *zap.Logger
	grpcEndpoint string
	httpEndpoint string
}

// NewServer constructs a Server with separate endpoints for gRPC and HTTP.
// The gRPC server serves the standard health service.
func NewServer(
	grpcPort int,
	httpPort int,
	logger *zap.Logger,
	grpcOpts ...grpc.ServerOption,
) *Server {
	s := &Server{
		grpcServer:   grpc.NewServer(grpcOpts...),
		httpServer:   &http.Server{ReadHeaderTimeout: 10 * time.Second},
		health:       health.NewServer(),
		logger:       logger,
		grpcEndpoint: fmt.Sprintf(":%d", grpcPort),
		httpEndpoint: fmt.Sprintf(":%d", httpPort),
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	return s
}

// RegisterHTTPGateway builds the HTTP API: the handler's routes on a gateway
// mux whose /healthz asks the gRPC health service, behind authentication,
// rate limiting and request metrics. /metrics is served beside it.
func (s *Server) RegisterHTTPGateway(
	_ context.Context,
	dialOpts []grpc.DialOption,
	h *CompanyHandler,
	guard auth.Authenticator,
	limiter *ratelimit.Limiter,
) error {
	conn, err := grpc.NewClient("localhost"+s.grpcEndpoint, dialOpts...)
	if err != nil {
		return fmt.Errorf("failed to dial gRPC endpoint: %w", err)
	}
	s.conn = conn

	mux := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)))
	if err := h.Register(mux); err != nil {
		return err
	}

	root := http.NewServeMux()
	root.Handle("/metrics", h.metrics.Handler())
	root.Handle("/", NewAPIHandler(mux, h.Routes(), guard, limiter, h.metrics, s.logger))

	s.httpServer.Handler = root
	s.httpServer.Addr = s.httpEndpoint
	return nil
}

// NewAPIHandler wraps the routes with authentication, rate limiting and
// request metrics, outermost last. Metrics are labelled with the matching
// template from known.
func NewAPIHandler(routes http.Handler, known *telemetry.Routes, guard auth.Authenticator, limiter *ratelimit.Limiter, metrics *telemetry.Metrics, logger *zap.Logger) http.Handler {
	handler := auth.HTTPMiddleware(routes, guard, isProtected, logger)
	if limiter != nil {
		handler = limiter.Middleware(handler, isRateLimited)
	}
	return metrics.Middleware(handler, known)
}

// isProtected reports whether a request must carry a valid access token.
// Profile submissions resolve their own session so a stale access token can
// be refreshed mid-request; the metrics sync accepts a claimed identity.
func isProtected(r *http.Request) bool {
	path := r.URL.Path
	if !strings.HasPrefix(path, "/v1/") {
		return false
	}
	switch path {
	case "/v1/auth/refresh", "/v1/integrations/callback", "/v1/metrics/sync":
		return false
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) == 2 && segs[1] == "companies" && r.Method == http.MethodPost {
		return false
	}
	if len(segs) == 3 && segs[1] == "companies" && r.Method == http.MethodPut {
		return false
	}
	return true
}

func isRateLimited(r *http.Request) bool {
	path := r.URL.Path
	return strings.HasPrefix(path, "/v1/auth/") ||
		strings.HasPrefix(path, "/v1/integrations/") ||
		path == "/v1/metrics/sync"
}

// Start runs the gRPC and HTTP servers concurrently, returning on the first error.
func (s *Server) Start() error {
	var wg sync.WaitGroup
	wg.Add(2)
	errChan := make(chan error, 2)

	// Start gRPC Server
	go func() {
		defer wg.Done()
		s.logger.Info("Starting gRPC server", zap.String("endpoint", s.grpcEndpoint))
		lis, err := net.Listen("tcp", s.grpcEndpoint)
		if err != nil {
			errChan <- fmt.Errorf("gRPC listen error: %w", err)
			return
		}
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if err := s.grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("gRPC serve error: %w", err)
		}
	}()

	// Start HTTP Server
	go func() {
		defer wg.Done()
		s.logger.Info("Starting HTTP server", zap.String("endpoint", s.httpEndpoint))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP serve error: %w", err)
		}
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down both gRPC and HTTP servers.
func (s *Server) Stop() {
	s.logger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.grpcServer.GracefulStop()

	s.logger.Info("Servers stopped")
}
