package searchd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// HarnessServiceName is the fully qualified gRPC service name
const HarnessServiceName = "trialharness.v1.HarnessService"

// HarnessServiceServer is the server API for the harness service. Requests
// and responses are google.protobuf.Struct documents shaped like the HTTP
// API's JSON bodies.
type HarnessServiceServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(HarnessServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(HarnessServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + HarnessServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(HarnessServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// HarnessServiceDesc describes the harness service for grpc.Server.RegisterService
var HarnessServiceDesc = grpc.ServiceDesc{
	ServiceName: HarnessServiceName,
	HandlerType: (*HarnessServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateRun", Handler: unaryHandler("CreateRun", HarnessServiceServer.CreateRun)},
		{MethodName: "GetRun", Handler: unaryHandler("GetRun", HarnessServiceServer.GetRun)},
		{MethodName: "StopRun", Handler: unaryHandler("StopRun", HarnessServiceServer.StopRun)},
		{MethodName: "ListRuns", Handler: unaryHandler("ListRuns", HarnessServiceServer.ListRuns)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trialharness/v1/harness.proto",
}

// RegisterHarnessServiceServer registers srv on s
func RegisterHarnessServiceServer(s grpc.ServiceRegistrar, srv HarnessServiceServer) {
	s.RegisterService(&HarnessServiceDesc, srv)
}

// HarnessClient calls the harness service
type HarnessClient struct {
	cc grpc.ClientConnInterface
}

func NewHarnessClient(cc grpc.ClientConnInterface) *HarnessClient {
	return &HarnessClient{cc: cc}
}

func (c *HarnessClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+HarnessServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HarnessClient) CreateRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateRun", in, opts...)
}

func (c *HarnessClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetRun", in, opts...)
}

func (c *HarnessClient) StopRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StopRun", in, opts...)
}

func (c *HarnessClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListRuns", in, opts...)
}

// HarnessGRPCServer implements HarnessServiceServer using a RunStore backend.
type HarnessGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
	log      *slog.Logger
}

// NewHarnessGRPCServer creates a new HarnessGRPCServer with the provided RunStore and RunExecutor.
func NewHarnessGRPCServer(store *RunStore, executor *RunExecutor) *HarnessGRPCServer {
	return &HarnessGRPCServer{
		store:    store,
		Executor: executor,
		log:      logger.Default,
	}
}

func (s *HarnessGRPCServer) CreateRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	req, err := decodeCreateRequest(data)
	if err != nil {
		return nil, grpcError(err)
	}

	run, err := s.store.Create(req.RunID, req.input())
	if err != nil {
		return nil, grpcError(err)
	}
	started, err := s.Executor.Start(run.ID)
	if err != nil {
		return nil, grpcError(err)
	}

	s.log.Info("run created (gRPC)", "run_id", run.ID)
	return toStruct(map[string]any{"run": started})
}

func (s *HarnessGRPCServer) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	runID := in.GetFields()["run_id"].GetStringValue()
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, ErrRunIDMissing.Error())
	}
	run, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return toStruct(map[string]any{"run": run})
}

func (s *HarnessGRPCServer) StopRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	runID := in.GetFields()["run_id"].GetStringValue()
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		return nil, grpcError(err)
	}
	s.log.Info("run cancelled (gRPC)", "run_id", runID)
	return toStruct(map[string]any{"run": updated})
}

func (s *HarnessGRPCServer) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	limit := int(fields["limit"].GetNumberValue())
	runStatus := models.RunStatus(fields["status"].GetStringValue())
	runs := s.store.List(limit, runStatus)
	return toStruct(map[string]any{"runs": runs, "count": len(runs)})
}

// toStruct converts v to a Struct through its JSON form
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("convert response: %v", err))
	}
	return out, nil
}

// FromStruct decodes a Struct produced by this service into v
func FromStruct(in *structpb.Struct, v any) error {
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing), errors.Is(err, models.ErrInvalidConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrRunExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrRunTerminal):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
