package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/erg0nix/ctxmeter/internal/protocol"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

type OutletResponse struct {
	Body   json.RawMessage     `json:"-"`
	State  string              `json:"state"`
	Status string              `json:"status"`
	Events []protocol.RawEvent `json:"events"`
}

type ToolCallResponse struct {
	Content string              `json:"content"`
	IsError bool                `json:"isError"`
	Events  []protocol.RawEvent `json:"events"`
}

// Client is a typed wrapper over the Struct-based plugin service.
type Client struct {
	conn *grpc.ClientConn
	rpc  PluginServiceClient
}

// Dial connects to a plugin server without transport security; the plugin binds to loopback.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc: dial %s: %w", addr, err)
	}

	return &Client{conn: conn, rpc: NewPluginServiceClient(conn)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Outlet(ctx context.Context, req protocol.FilterRequest) (OutletResponse, error) {
	in, err := encodeStruct(req)
	if err != nil {
		return OutletResponse{}, err
	}

	out, err := c.rpc.Outlet(ctx, in)
	if err != nil {
		return OutletResponse{}, err
	}

	var resp OutletResponse
	if err := decodeStruct(out, &resp); err != nil {
		return OutletResponse{}, err
	}

	resp.Body, err = valueJSON(out.GetFields()["body"])
	if err != nil {
		return OutletResponse{}, err
	}

	return resp, nil
}

func (c *Client) CallTool(ctx context.Context, req protocol.ToolCallRequest) (ToolCallResponse, error) {
	in, err := encodeStruct(req)
	if err != nil {
		return ToolCallResponse{}, err
	}

	out, err := c.rpc.CallTool(ctx, in)
	if err != nil {
		return ToolCallResponse{}, err
	}

	var resp ToolCallResponse
	if err := decodeStruct(out, &resp); err != nil {
		return ToolCallResponse{}, err
	}
	return resp, nil
}

func (c *Client) Status(ctx context.Context) (protocol.StatusResponse, error) {
	out, err := c.rpc.Status(ctx, &structpb.Struct{})
	if err != nil {
		return protocol.StatusResponse{}, err
	}

	var resp protocol.StatusResponse
	if err := decodeStruct(out, &resp); err != nil {
		return protocol.StatusResponse{}, err
	}
	return resp, nil
}
