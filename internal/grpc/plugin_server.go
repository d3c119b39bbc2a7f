package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/erg0nix/ctxmeter/internal/core"
	"github.com/erg0nix/ctxmeter/internal/filter"
	"github.com/erg0nix/ctxmeter/internal/protocol"
	"github.com/erg0nix/ctxmeter/internal/tools"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// PluginHandler serves the plugin over gRPC. Unary calls cannot push notifications, so events
// emitted during a call are collected and returned with its response.
type PluginHandler struct {
	Filter    *filter.Filter
	Tools     tools.Executor
	StatusFor func() protocol.StatusResponse
	Events    core.Emitter
	StartTime time.Time
	Version   string
	Logger    *slog.Logger
}

type outletReply struct {
	State  filter.State  `json:"state"`
	Status string        `json:"status,omitempty"`
	Events []core.Event  `json:"events"`
	Report *reportFields `json:"report,omitempty"`
}

type reportFields struct {
	Total      int     `json:"total"`
	Limit      int     `json:"limit"`
	Percentage float64 `json:"percentage"`
	Severity   string  `json:"severity"`
	Input      int     `json:"inputTokens"`
	Output     int     `json:"outputTokens"`
}

type toolReply struct {
	Content string       `json:"content"`
	IsError bool         `json:"isError,omitempty"`
	Events  []core.Event `json:"events"`
}

func (h *PluginHandler) collect() (*core.Recorder, core.Emitter) {
	recorder := &core.Recorder{Events: []core.Event{}}
	return recorder, core.MultiEmitter(recorder.Emit, h.Events)
}

func (h *PluginHandler) Outlet(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req protocol.FilterRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	recorder, emit := h.collect()
	result := h.Filter.Outlet(ctx, filter.Request{Body: req.Body, User: req.User, Model: req.Model}, emit)

	reply := outletReply{State: result.State, Status: result.Status, Events: recorder.Events}
	if result.Report != nil {
		reply.Report = &reportFields{
			Total:      result.Report.Total,
			Limit:      result.Report.Limit,
			Percentage: result.Report.Percentage,
			Severity:   result.Report.Severity.String(),
			Input:      result.Report.Input,
			Output:     result.Report.Output,
		}
	}

	out, err := encodeStruct(reply)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	if body, ok := in.GetFields()["body"]; ok {
		out.Fields["body"] = body
	}

	return out, nil
}

func (h *PluginHandler) CallTool(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req protocol.ToolCallRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if h.Tools == nil {
		return nil, status.Error(codes.Unimplemented, "no tools available")
	}

	recorder, emit := h.collect()
	output, err := h.Tools.Execute(ctx, req.Name, req.Arguments, emit)
	if errors.Is(err, tools.ErrToolNotFound) {
		return nil, status.Error(codes.NotFound, err.Error())
	}

	reply := toolReply{Content: output, Events: recorder.Events}
	if err != nil {
		reply = toolReply{Content: "Error: " + err.Error(), IsError: true, Events: recorder.Events}
	}

	out, encodeErr := encodeStruct(reply)
	if encodeErr != nil {
		return nil, status.Error(codes.Internal, encodeErr.Error())
	}
	return out, nil
}

func (h *PluginHandler) Status(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	resp := protocol.StatusResponse{Version: h.Version, Transport: "grpc"}
	if h.StatusFor != nil {
		resp = h.StatusFor()
	}

	if !h.StartTime.IsZero() {
		resp.StartedAt = h.StartTime.Format(time.RFC3339)
		resp.Uptime = time.Since(h.StartTime).Round(time.Second).String()
	}

	out, err := encodeStruct(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// LoggingInterceptor logs each unary call with its duration and status code.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		logger.Debug("grpc call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)

		return resp, err
	}
}

// NewServer builds a gRPC server with the plugin service registered.
func NewServer(handler *PluginHandler) *grpc.Server {
	server := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(handler.Logger)))
	RegisterPluginServiceServer(server, handler)

	return server
}

var _ PluginServiceServer = (*PluginHandler)(nil)
