package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PolarWolf314/chatvault/internal/configs"
	"github.com/nats-io/nats.go"
)

// Client sends requests to a Server.
type Client struct {
	conn    *nats.Conn
	prefix  string
	timeout time.Duration
}

// NewClient returns a Client on an established connection.
func NewClient(conn *nats.Conn, cfg configs.NATSConfig) (*Client, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, prefix: strings.TrimSuffix(cfg.SubjectPrefix, "."), timeout: timeout}, nil
}

// Call sends req to op and decodes the response data into out, which may be
// nil. A reply with success=false is returned as *RemoteError.
func (c *Client) Call(ctx context.Context, op string, req any, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", op, err)
	}

	raw, err := c.CallRaw(ctx, op, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

// CallRaw sends a pre-encoded request and returns the raw response data.
func (c *Client) CallRaw(ctx context.Context, op string, payload []byte) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.conn.RequestWithContext(ctx, c.prefix+"."+op, payload)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}

	var resp Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", op, err)
	}
	if !resp.Success {
		return nil, &RemoteError{Code: resp.Code, Message: resp.Error}
	}
	return resp.Data, nil
}
