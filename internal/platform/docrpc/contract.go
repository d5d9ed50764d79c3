package docrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	serviceName        = "tether.document.v1.DocumentStore"
	jsonCodecName      = "json"
	methodGet          = "/" + serviceName + "/Get"
	methodPut          = "/" + serviceName + "/Put"
	methodDelete       = "/" + serviceName + "/Delete"
	methodChangedSince = "/" + serviceName + "/ChangedSince"
	methodOpenSessions = "/" + serviceName + "/OpenSessions"
)

// ServiceName is the name reported by the gRPC health service.
const ServiceName = serviceName

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

// Document timestamps travel as unix nanoseconds.
type Document struct {
	OwnerID      string          `json:"owner_id"`
	Collection   string          `json:"collection"`
	ID           string          `json:"id"`
	Data         json.RawMessage `json:"data"`
	LastModified int64           `json:"last_modified"`
}

type DocumentKey struct {
	OwnerID    string `json:"owner_id"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type GetResponse struct {
	Document Document `json:"document"`
}

type PutRequest struct {
	Document         Document `json:"document"`
	BaseLastModified int64    `json:"base_last_modified"`
	Force            bool     `json:"force"`
}

type PutResponse struct {
	LastModified int64 `json:"last_modified"`
}

type ChangedSinceRequest struct {
	OwnerID    string `json:"owner_id"`
	Collection string `json:"collection"`
	Since      int64  `json:"since"`
}

type ChangedSinceResponse struct {
	Documents []Document `json:"documents"`
}

type OpenSessionsRequest struct {
	OwnerID string `json:"owner_id"`
}

// PublicSession is the subset of a session document readable by the
// notification job.
type PublicSession struct {
	ID              string `json:"id"`
	StartTime       int64  `json:"start_time"`
	GoalDurationNS  int64  `json:"goal_duration_ns"`
	IsPaused        bool   `json:"is_paused"`
	KeyholderUserID string `json:"keyholder_user_id,omitempty"`
}

type OpenSessionsResponse struct {
	Sessions []PublicSession `json:"sessions"`
}

// DocumentServer is implemented by the remote store. Errors should carry gRPC
// status codes: NotFound for missing documents, FailedPrecondition for stale
// writes.
type DocumentServer interface {
	Get(ctx context.Context, in *DocumentKey) (*GetResponse, error)
	Put(ctx context.Context, in *PutRequest) (*PutResponse, error)
	Delete(ctx context.Context, in *DocumentKey) (*Empty, error)
	ChangedSince(ctx context.Context, in *ChangedSinceRequest) (*ChangedSinceResponse, error)
	OpenSessions(ctx context.Context, in *OpenSessionsRequest) (*OpenSessionsResponse, error)
}

type DocumentClient interface {
	Get(ctx context.Context, in *DocumentKey) (*GetResponse, error)
	Put(ctx context.Context, in *PutRequest) (*PutResponse, error)
	Delete(ctx context.Context, in *DocumentKey) error
	ChangedSince(ctx context.Context, in *ChangedSinceRequest) (*ChangedSinceResponse, error)
	OpenSessions(ctx context.Context, in *OpenSessionsRequest) (*OpenSessionsResponse, error)
}

type documentClient struct {
	conn grpc.ClientConnInterface
}

func NewDocumentClient(conn grpc.ClientConnInterface) DocumentClient {
	return &documentClient{conn: conn}
}

func (c *documentClient) Get(ctx context.Context, in *DocumentKey) (*GetResponse, error) {
	out := &GetResponse{}
	if err := c.conn.Invoke(ctx, methodGet, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentClient) Put(ctx context.Context, in *PutRequest) (*PutResponse, error) {
	out := &PutResponse{}
	if err := c.conn.Invoke(ctx, methodPut, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentClient) Delete(ctx context.Context, in *DocumentKey) error {
	return c.conn.Invoke(ctx, methodDelete, in, &Empty{}, grpc.CallContentSubtype(jsonCodecName))
}

func (c *documentClient) ChangedSince(ctx context.Context, in *ChangedSinceRequest) (*ChangedSinceResponse, error) {
	out := &ChangedSinceResponse{}
	if err := c.conn.Invoke(ctx, methodChangedSince, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentClient) OpenSessions(ctx context.Context, in *OpenSessionsRequest) (*OpenSessionsResponse, error) {
	out := &OpenSessionsResponse{}
	if err := c.conn.Invoke(ctx, methodOpenSessions, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterDocumentServer(server grpc.ServiceRegistrar, impl DocumentServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*DocumentServer)(nil),
		Methods: []grpc.MethodDesc{
			unary("Get", methodGet, impl.Get),
			unary("Put", methodPut, impl.Put),
			unary("Delete", methodDelete, impl.Delete),
			unary("ChangedSince", methodChangedSince, impl.ChangedSince),
			unary("OpenSessions", methodOpenSessions, impl.OpenSessions),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "internal/platform/docrpc/contract.go",
	}, impl)
}

func unary[Req, Resp any](name, fullMethod string, call func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(*Req)
				if !ok {
					return nil, fmt.Errorf("invalid request type")
				}
				return call(ctx, typed)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
