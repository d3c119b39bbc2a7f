package protocol

import (
	"context"
	"io"
)

// Serve attaches h to a new connection over r and w. The returned connection is already
// reading.
func (h *Handler) Serve(w io.Writer, r io.Reader) *Connection {
	conn := newConnection(h.Dispatch, w, r)
	h.SetConnection(conn)
	go conn.readLoop()

	return conn
}

// ServeUntil serves until the peer hangs up or ctx is cancelled.
func (h *Handler) ServeUntil(ctx context.Context, w io.Writer, r io.Reader) error {
	conn := h.Serve(w, r)

	select {
	case <-conn.Done():
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	}
}
