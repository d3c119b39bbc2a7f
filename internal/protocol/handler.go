package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erg0nix/ctxmeter/internal/core"
	"github.com/erg0nix/ctxmeter/internal/filter"
	"github.com/erg0nix/ctxmeter/internal/tools"
)

// Handler serves the plugin methods on one connection.
type Handler struct {
	Filter  *filter.Filter
	Tools   tools.Executor
	Status  func() StatusResponse
	Events  core.Emitter
	Version string
	Logger  *slog.Logger
	conn    *Connection
}

func (h *Handler) SetConnection(conn *Connection) {
	h.conn = conn
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handler) Dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodInitialize:
		return h.handleInitialize(params)
	case MethodFilterInlet:
		return h.handlePassThrough(ctx, params, h.Filter.Inlet)
	case MethodFilterStream:
		return h.handlePassThrough(ctx, params, h.Filter.Stream)
	case MethodFilterOutlet:
		return h.handleOutlet(ctx, params)
	case MethodToolsList:
		return h.handleToolsList()
	case MethodToolsCall:
		return h.handleToolsCall(ctx, params)
	case MethodStatus:
		return h.handleStatus()
	default:
		if strings.HasPrefix(method, "_") {
			return nil, NewRPCError(ErrMethodNotFound, fmt.Sprintf("unknown extension: %s", method))
		}
		return nil, NewRPCError(ErrMethodNotFound, fmt.Sprintf("unknown method: %s", method))
	}
}

func (h *Handler) handleInitialize(params json.RawMessage) (InitializeResponse, error) {
	var req InitializeRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return InitializeResponse{}, NewRPCError(ErrInvalidParams, err.Error())
		}
	}

	if req.ClientInfo != nil {
		h.logger().Info("host connected", "host", req.ClientInfo.Name, "version", req.ClientInfo.Version)
	}

	return InitializeResponse{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      Implementation{Name: "ctxmeter", Version: h.Version},
		Capabilities: Capabilities{
			Filter: h.Filter != nil,
			Tools:  h.Tools != nil,
			Events: true,
		},
	}, nil
}

func decodeFilterRequest(params json.RawMessage) (FilterRequest, error) {
	var req FilterRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return FilterRequest{}, NewRPCError(ErrInvalidParams, err.Error())
	}
	return req, nil
}

func (h *Handler) handlePassThrough(ctx context.Context, params json.RawMessage, pass func(context.Context, json.RawMessage) json.RawMessage) (json.RawMessage, error) {
	req, err := decodeFilterRequest(params)
	if err != nil {
		return nil, err
	}
	return pass(ctx, req.Body), nil
}

func (h *Handler) handleOutlet(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	req, err := decodeFilterRequest(params)
	if err != nil {
		return nil, err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = core.NewRequestID()
	}

	result := h.Filter.Outlet(ctx, filter.Request{Body: req.Body, User: req.User, Model: req.Model}, h.emitterFor(requestID))

	h.logger().Debug("outlet handled", "request_id", requestID, "state", result.State)

	return result.Body, nil
}

func (h *Handler) handleToolsList() (ToolsListResponse, error) {
	if h.Tools == nil {
		return ToolsListResponse{Tools: []tools.Definition{}}, nil
	}
	return ToolsListResponse{Tools: h.Tools.Definitions()}, nil
}

func (h *Handler) handleToolsCall(ctx context.Context, params json.RawMessage) (ToolCallResponse, error) {
	var req ToolCallRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return ToolCallResponse{}, NewRPCError(ErrInvalidParams, err.Error())
	}

	if h.Tools == nil {
		return ToolCallResponse{}, NewRPCError(ErrMethodNotFound, "no tools available")
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = core.NewRequestID()
	}

	output, err := h.Tools.Execute(ctx, req.Name, req.Arguments, h.emitterFor(requestID))
	if errors.Is(err, tools.ErrToolNotFound) {
		return ToolCallResponse{}, NewRPCError(ErrInvalidParams, err.Error())
	}
	if err != nil {
		return ToolCallResponse{Content: "Error: " + err.Error(), IsError: true}, nil
	}

	return ToolCallResponse{Content: output}, nil
}

func (h *Handler) handleStatus() (StatusResponse, error) {
	if h.Status == nil {
		return StatusResponse{Version: h.Version, Transport: "stdio"}, nil
	}
	return h.Status(), nil
}

// emitterFor forwards events to the host as notifications and to the optional feed.
func (h *Handler) emitterFor(requestID core.RequestID) core.Emitter {
	notify := func(ctx context.Context, event core.Event) error {
		if h.conn == nil {
			return nil
		}
		return h.conn.Notify(ctx, MethodEventEmit, EventNotification{RequestID: requestID, Event: event})
	}

	return core.MultiEmitter(notify, h.Events)
}
