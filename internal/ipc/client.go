package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// DialTimeout bounds how long the client waits to connect to a daemon
// socket before concluding no daemon is listening.
const DialTimeout = 2 * time.Second

// Client is a one-shot request/response client for the daemon's socket.
type Client struct {
	SocketPath string
}

// NewClient returns a Client targeting socketPath.
func NewClient(socketPath string) *Client {
	return &Client{SocketPath: socketPath}
}

// Call opens a connection, sends req, and returns the decoded Response.
// The connection is closed after one request, per the protocol's
// one-request-per-connection rule.
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	d := net.Dialer{Timeout: DialTimeout}
	conn, err := d.DialContext(ctx, "unix", c.SocketPath)
	if err != nil {
		return Response{}, fmt.Errorf("ipc: dial %s: %w", c.SocketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(RequestTimeout))
	}

	if err := WriteFrame(conn, req); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := ReadFrame(conn, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// CallSimple sends a command with no params and decodes the result into
// out (a pointer), returning an error built from resp.Error if !resp.OK.
func (c *Client) CallSimple(ctx context.Context, cmd CommandKind, out any) error {
	resp, err := c.Call(ctx, Request{Command: cmd})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("ipc: daemon returned error: %s", resp.Error)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}
