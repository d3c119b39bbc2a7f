package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

type EventHandler func(RawEventNotification)

// Client is the host side of a plugin connection. Events the plugin emits are handed to OnEvent
// in arrival order, before the response of the call that produced them.
type Client struct {
	conn    *Connection
	OnEvent EventHandler
}

func NewClient(w io.Writer, r io.Reader, onEvent EventHandler) *Client {
	c := &Client{OnEvent: onEvent}
	c.conn = newConnection(c.dispatch, w, r)
	go c.conn.readLoop()

	return c
}

func (c *Client) dispatch(_ context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodEventEmit:
		if c.OnEvent != nil {
			var notif RawEventNotification
			if err := json.Unmarshal(params, &notif); err == nil {
				c.OnEvent(notif)
			}
		}
		return nil, nil
	default:
		return nil, NewRPCError(ErrMethodNotFound, fmt.Sprintf("unknown method: %s", method))
	}
}

func call[T any](ctx context.Context, conn *Connection, method string, params any) (T, error) {
	var out T

	raw, err := conn.Request(ctx, method, params)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("protocol: decode %s result: %w", method, err)
	}
	return out, nil
}

func (c *Client) Initialize(ctx context.Context, name, version string) (InitializeResponse, error) {
	return call[InitializeResponse](ctx, c.conn, MethodInitialize, InitializeRequest{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      &Implementation{Name: name, Version: version},
	})
}

// Outlet returns the body exactly as the plugin sent it back.
func (c *Client) Outlet(ctx context.Context, req FilterRequest) (json.RawMessage, error) {
	return c.conn.Request(ctx, MethodFilterOutlet, req)
}

func (c *Client) Inlet(ctx context.Context, req FilterRequest) (json.RawMessage, error) {
	return c.conn.Request(ctx, MethodFilterInlet, req)
}

func (c *Client) Stream(ctx context.Context, req FilterRequest) (json.RawMessage, error) {
	return c.conn.Request(ctx, MethodFilterStream, req)
}

func (c *Client) ListTools(ctx context.Context) (ToolsListResponse, error) {
	return call[ToolsListResponse](ctx, c.conn, MethodToolsList, nil)
}

func (c *Client) CallTool(ctx context.Context, req ToolCallRequest) (ToolCallResponse, error) {
	return call[ToolCallResponse](ctx, c.conn, MethodToolsCall, req)
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	return call[StatusResponse](ctx, c.conn, MethodStatus, nil)
}

func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}

func (c *Client) Close() error {
	return c.conn.Close()
}
