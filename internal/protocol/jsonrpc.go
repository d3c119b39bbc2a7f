package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

const maxMessageSize = 10 * 1024 * 1024

type ErrorCode int

const (
	ErrParseError     ErrorCode = -32700
	ErrInvalidRequest ErrorCode = -32600
	ErrMethodNotFound ErrorCode = -32601
	ErrInvalidParams  ErrorCode = -32602
	ErrInternalError  ErrorCode = -32603
)

// MethodHandler handles an incoming JSON-RPC call or notification.
type MethodHandler func(ctx context.Context, method string, params json.RawMessage) (any, error)

// Connection is a bidirectional JSON-RPC 2.0 connection over line-delimited JSON.
type Connection struct {
	writer  io.Writer
	scanner *bufio.Scanner
	handler MethodHandler
	pending map[int]chan rpcResponse
	nextID  int
	mu      sync.Mutex
	writeMu sync.Mutex
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorBody   `json:"error,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage
	Error  *rpcErrorBody
}

// RPCError is a JSON-RPC error returned by the peer or by a handler.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func NewRPCError(code ErrorCode, message string) *RPCError {
	return &RPCError{Code: int(code), Message: message}
}

// NewConnection creates a Connection and starts its read loop.
func NewConnection(handler MethodHandler, w io.Writer, r io.Reader) *Connection {
	c := newConnection(handler, w, r)
	go c.readLoop()
	return c
}

func newConnection(handler MethodHandler, w io.Writer, r io.Reader) *Connection {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		writer:  w,
		scanner: scanner,
		handler: handler,
		pending: make(map[int]chan rpcResponse),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *Connection) readLoop() {
	defer close(c.done)
	defer c.cancel()

	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			_ = c.writeMessage(rpcMessage{
				JSONRPC: "2.0",
				Error:   &rpcErrorBody{Code: int(ErrParseError), Message: err.Error()},
			})
			continue
		}

		switch {
		case msg.ID != nil && msg.Method == "":
			c.deliverResponse(msg)
		case msg.ID != nil:
			go c.handleRequest(msg)
		case msg.Method != "":
			c.handleNotification(msg)
		}
	}

	c.mu.Lock()
	for id, ch := range c.pending {
		ch <- rpcResponse{Error: &rpcErrorBody{Code: int(ErrInternalError), Message: "connection closed"}}
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *Connection) deliverResponse(msg rpcMessage) {
	c.mu.Lock()
	ch, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.mu.Unlock()

	if ok {
		ch <- rpcResponse{Result: msg.Result, Error: msg.Error}
	}
}

func (c *Connection) handleRequest(msg rpcMessage) {
	resp := rpcMessage{JSONRPC: "2.0", ID: msg.ID}

	if c.handler == nil {
		resp.Error = &rpcErrorBody{Code: int(ErrMethodNotFound), Message: "no handler"}
		_ = c.writeMessage(resp)
		return
	}

	result, err := c.handler(c.ctx, msg.Method, msg.Params)

	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			resp.Error = &rpcErrorBody{Code: rpcErr.Code, Message: rpcErr.Message}
		} else {
			resp.Error = &rpcErrorBody{Code: int(ErrInternalError), Message: err.Error()}
		}
	} else {
		data, marshalErr := marshalResult(result)
		if marshalErr != nil {
			resp.Error = &rpcErrorBody{Code: int(ErrInternalError), Message: marshalErr.Error()}
		} else {
			resp.Result = data
		}
	}

	_ = c.writeMessage(resp)
}

// marshalResult passes raw JSON through untouched so a returned body keeps its exact bytes.
func marshalResult(result any) (json.RawMessage, error) {
	if raw, ok := result.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage("null"), nil
		}
		return raw, nil
	}

	return json.Marshal(result)
}

func (c *Connection) handleNotification(msg rpcMessage) {
	if c.handler == nil {
		return
	}
	_, _ = c.handler(c.ctx, msg.Method, msg.Params)
}

func (c *Connection) writeMessage(msg rpcMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("protocol: marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data = append(data, '\n')
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}
	return nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal params: %w", err)
	}
	return raw, nil
}

// Request sends a call and blocks until the response arrives, ctx is done or the connection
// closes.
func (c *Connection) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	rawParams, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan rpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	msg := rpcMessage{JSONRPC: "2.0", ID: &id, Method: method, Params: rawParams}
	if err := c.writeMessage(msg); err != nil {
		forget()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp.Result, nil
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-c.done:
		return nil, errors.New("protocol: connection closed")
	}
}

// Notify sends a notification, which gets no response.
func (c *Connection) Notify(_ context.Context, method string, params any) error {
	rawParams, err := marshalParams(params)
	if err != nil {
		return err
	}

	return c.writeMessage(rpcMessage{JSONRPC: "2.0", Method: method, Params: rawParams})
}

// Done is closed when the read loop ends.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Context is cancelled when the connection closes.
func (c *Connection) Context() context.Context {
	return c.ctx
}

// Close cancels the connection context and closes the writer if it can be closed.
func (c *Connection) Close() error {
	c.cancel()
	if closer, ok := c.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
