package in

import (
	"context"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	remotedto "tether/internal/modules/remote/dto"
	remotein "tether/internal/modules/remote/port/in"
	"tether/internal/platform/docrpc"
	apperrors "tether/internal/platform/errors"
	"tether/internal/platform/logging"
)

// GRPCServer exposes the document store over the docrpc contract.
type GRPCServer struct {
	usecase remotein.Usecase
}

func NewGRPCServer(usecase remotein.Usecase) *GRPCServer {
	return &GRPCServer{usecase: usecase}
}

var _ docrpc.DocumentServer = (*GRPCServer)(nil)

func (s *GRPCServer) Get(ctx context.Context, in *docrpc.DocumentKey) (*docrpc.GetResponse, error) {
	doc, err := s.usecase.Get(ctx, keyFromWire(in))
	if err != nil {
		return nil, toStatus(err)
	}
	return &docrpc.GetResponse{Document: toWire(doc)}, nil
}

func (s *GRPCServer) Put(ctx context.Context, in *docrpc.PutRequest) (*docrpc.PutResponse, error) {
	lm, err := s.usecase.Put(ctx, remotedto.PutInput{
		Document: remotedto.Document{
			Key:  remotedto.Key{OwnerID: in.Document.OwnerID, Collection: in.Document.Collection, ID: in.Document.ID},
			Data: in.Document.Data,
		},
		BaseLastModified: fromNanos(in.BaseLastModified),
		Force:            in.Force,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &docrpc.PutResponse{LastModified: lm.UnixNano()}, nil
}

func (s *GRPCServer) Delete(ctx context.Context, in *docrpc.DocumentKey) (*docrpc.Empty, error) {
	if err := s.usecase.Delete(ctx, keyFromWire(in)); err != nil {
		return nil, toStatus(err)
	}
	return &docrpc.Empty{}, nil
}

func (s *GRPCServer) ChangedSince(ctx context.Context, in *docrpc.ChangedSinceRequest) (*docrpc.ChangedSinceResponse, error) {
	docs, err := s.usecase.ChangedSince(ctx, remotedto.ChangedSinceInput{OwnerID: in.OwnerID, Collection: in.Collection, Since: fromNanos(in.Since)})
	if err != nil {
		return nil, toStatus(err)
	}
	out := &docrpc.ChangedSinceResponse{Documents: make([]docrpc.Document, 0, len(docs))}
	for _, doc := range docs {
		out.Documents = append(out.Documents, toWire(doc))
	}
	return out, nil
}

func (s *GRPCServer) OpenSessions(ctx context.Context, in *docrpc.OpenSessionsRequest) (*docrpc.OpenSessionsResponse, error) {
	sessions, err := s.usecase.OpenSessions(ctx, in.OwnerID)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &docrpc.OpenSessionsResponse{Sessions: make([]docrpc.PublicSession, 0, len(sessions))}
	for _, session := range sessions {
		out.Sessions = append(out.Sessions, docrpc.PublicSession{
			ID:              session.ID,
			StartTime:       session.StartTime.UnixNano(),
			GoalDurationNS:  int64(session.GoalDuration),
			IsPaused:        session.IsPaused,
			KeyholderUserID: session.KeyholderUserID,
		})
	}
	return out, nil
}

// ServerMetrics count RPCs by method and status code.
type ServerMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &ServerMetrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_remote_requests_total",
			Help: "Document RPCs by method and status code",
		}, []string{"method", "code"}),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tether_remote_request_duration_seconds",
			Help:    "Document RPC latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),
	}
}

// NewServer builds a gRPC server carrying the document service and the
// standard health service, both reporting SERVING.
func NewServer(usecase remotein.Usecase, metrics *ServerMetrics, logger hclog.Logger) *grpc.Server {
	if metrics == nil {
		metrics = NewServerMetrics(nil)
	}
	log := logging.OrNull(logger).Named("rpc")
	server := grpc.NewServer(grpc.UnaryInterceptor(observe(metrics, log)))
	docrpc.RegisterDocumentServer(server, NewGRPCServer(usecase))
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(docrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server
}

func observe(metrics *ServerMetrics, logger hclog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		metrics.Requests.WithLabelValues(info.FullMethod, code.String()).Inc()
		metrics.Latency.WithLabelValues(info.FullMethod).Observe(time.Since(started).Seconds())
		if code == codes.Internal || code == codes.Unknown {
			logger.Error("rpc failed", "method", info.FullMethod, "error", err)
		} else {
			logger.Trace("rpc", "method", info.FullMethod, "code", code.String())
		}
		return resp, err
	}
}

func toStatus(err error) error {
	switch apperrors.CodeOf(err) {
	case remotedto.CodeDocumentNotFound:
		return status.Error(codes.NotFound, err.Error())
	case remotedto.CodeStaleWrite:
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case apperrors.KindTransient:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func keyFromWire(in *docrpc.DocumentKey) remotedto.Key {
	return remotedto.Key{OwnerID: in.OwnerID, Collection: in.Collection, ID: in.ID}
}

func toWire(doc remotedto.Document) docrpc.Document {
	return docrpc.Document{
		OwnerID:      doc.OwnerID,
		Collection:   doc.Collection,
		ID:           doc.ID,
		Data:         doc.Data,
		LastModified: doc.LastModified.UnixNano(),
	}
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
