package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/gin-gonic/gin"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	remoteinadapter "tether/internal/modules/remote/adapter/in"
	remoteoutadapter "tether/internal/modules/remote/adapter/out"
	remoteout "tether/internal/modules/remote/port/out"
	remoteservice "tether/internal/modules/remote/service"
	remoteusecase "tether/internal/modules/remote/usecase"
	"tether/internal/platform/clock"
	"tether/internal/platform/config"
	"tether/internal/platform/logging"
)

// Server is the remote document store: gRPC for devices, HTTP for health,
// metrics and the open sessions view.
type Server struct {
	GRPC     *grpc.Server
	HTTP     *gin.Engine
	Registry *prometheus.Registry

	grpcAddr string
	httpAddr string
	logger   hclog.Logger
	closer   func() error
}

func NewServer(cfg config.Config, logger hclog.Logger) (*Server, error) {
	logger = logging.OrNull(logger).Named("remote")
	registry := prometheus.NewRegistry()

	var (
		repo   remoteout.Repository
		closer func() error
	)
	switch cfg.Server.Backend {
	case "postgres":
		if cfg.Server.PostgresDSN == "" {
			return nil, fmt.Errorf("server.postgres_dsn is required for the postgres backend")
		}
		db, err := remoteoutadapter.OpenPostgres(cfg.Server.PostgresDSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("postgres handle: %w", err)
		}
		closer = sqlDB.Close
		if repo, err = remoteoutadapter.NewPostgresDocumentStore(db); err != nil {
			_ = closer()
			return nil, err
		}
	default:
		db, err := remoteoutadapter.OpenBadger(cfg.Server.BadgerDir)
		if err != nil {
			return nil, err
		}
		closer = db.Close
		repo = remoteoutadapter.NewBadgerDocumentStore(db)
	}

	documents := remoteusecase.NewInteractor(remoteservice.NewDocumentService(clock.SystemClock{}, repo, logger))
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		GRPC:     remoteinadapter.NewServer(documents, remoteinadapter.NewServerMetrics(registry), logger),
		HTTP:     remoteinadapter.NewHTTPRouter(documents, registry),
		Registry: registry,
		grpcAddr: cfg.Server.GRPCAddr,
		httpAddr: cfg.Server.HTTPAddr,
		logger:   logger,
		closer:   closer,
	}, nil
}

// Run serves both listeners until ctx ends or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.grpcAddr, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grpcErr := make(chan error, 1)
	go func() {
		s.logger.Info("grpc listening", "addr", s.grpcAddr)
		grpcErr <- s.GRPC.Serve(listener)
	}()
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- ServeHTTP(ctx, s.httpAddr, s.HTTP, s.logger)
	}()

	var errs []error
	select {
	case err := <-grpcErr:
		errs = append(errs, err)
		cancel()
		errs = append(errs, <-httpErr)
	case err := <-httpErr:
		errs = append(errs, err)
		s.GRPC.GracefulStop()
		errs = append(errs, <-grpcErr)
	case <-ctx.Done():
		s.GRPC.GracefulStop()
		errs = append(errs, <-grpcErr, <-httpErr)
	}
	return errors.Join(errs...)
}

func (s *Server) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
