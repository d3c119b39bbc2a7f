// Package protocol carries the plugin over line-delimited JSON-RPC 2.0, the transport hosts use
// when they launch ctxmeter as a child process.
package protocol

import (
	"encoding/json"

	"github.com/erg0nix/ctxmeter/internal/core"
	"github.com/erg0nix/ctxmeter/internal/tools"
)

const ProtocolVersion = 1

const (
	MethodInitialize   = "initialize"
	MethodFilterInlet  = "filter/inlet"
	MethodFilterOutlet = "filter/outlet"
	MethodFilterStream = "filter/stream"
	MethodToolsList    = "tools/list"
	MethodToolsCall    = "tools/call"
	MethodStatus       = "_ctxmeter/status"
	MethodEventEmit    = "event/emit"
)

type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeRequest struct {
	ProtocolVersion int             `json:"protocolVersion"`
	ClientInfo      *Implementation `json:"clientInfo,omitempty"`
}

type Capabilities struct {
	Filter bool `json:"filter"`
	Tools  bool `json:"tools"`
	Events bool `json:"events"`
}

type InitializeResponse struct {
	ProtocolVersion int            `json:"protocolVersion"`
	ServerInfo      Implementation `json:"serverInfo"`
	Capabilities    Capabilities   `json:"capabilities"`
}

// FilterRequest wraps the body of inlet, outlet and stream calls. RequestID tags the events the
// call emits.
type FilterRequest struct {
	RequestID core.RequestID        `json:"requestId,omitempty"`
	Body      json.RawMessage       `json:"body"`
	User      *core.User            `json:"user,omitempty"`
	Model     *core.ModelDescriptor `json:"model,omitempty"`
}

type ToolsListResponse struct {
	Tools []tools.Definition `json:"tools"`
}

type ToolCallRequest struct {
	RequestID core.RequestID `json:"requestId,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolCallResponse holds the tool output. Tool failures are reported in-band with IsError so the
// model can read them.
type ToolCallResponse struct {
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// EventNotification is pushed to the host for every event emitted while handling a request.
type EventNotification struct {
	RequestID core.RequestID `json:"requestId"`
	Event     core.Event     `json:"event"`
}

// RawEventNotification is EventNotification as decoded by a client, with event data left raw.
type RawEventNotification struct {
	RequestID core.RequestID `json:"requestId"`
	Event     RawEvent       `json:"event"`
}

type RawEvent struct {
	Type core.EventType  `json:"type"`
	Data json.RawMessage `json:"data"`
}

// StatusResponse describes the running plugin for `_ctxmeter/status` and `ctxmeter status`.
type StatusResponse struct {
	Version         string `json:"version"`
	Transport       string `json:"transport"`
	StartedAt       string `json:"startedAt"`
	Uptime          string `json:"uptime"`
	OverrideDigest  string `json:"overrideDigest"`
	CapacityEntries int    `json:"capacityEntries"`
	CachedLookups   int    `json:"cachedLookups"`
	FallbackSize    int    `json:"fallbackSize"`
	Encoding        string `json:"encoding"`
	Tools           int    `json:"tools"`
}
