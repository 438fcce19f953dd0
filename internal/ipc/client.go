package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mlauncher/pkg/logger"
)

// ErrRemote wraps MsgError replies.
var ErrRemote = errors.New("ipc: remote error")

// Client sends requests to a serve host and waits for the replies
type Client struct {
	role     Role
	endpoint string

	conn    net.Conn
	encoder *Encoder
	decoder *Decoder
	mu      sync.Mutex
}

// DialOption is a functional option for Dial
type DialOption func(*dialConfig)

type dialConfig struct {
	retryDelay time.Duration
	maxRetries uint64
}

// WithRetry retries failed connection attempts. Zero retries disables retrying.
func WithRetry(delay time.Duration, maxRetries uint64) DialOption {
	return func(c *dialConfig) {
		c.retryDelay = delay
		c.maxRetries = maxRetries
	}
}

// Dial connects to the host at endpoint
func Dial(ctx context.Context, endpoint string, role Role, opts ...DialOption) (*Client, error) {
	cfg := dialConfig{retryDelay: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}

	var conn net.Conn
	attempts := 0
	var b backoff.BackOff = backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.retryDelay), cfg.maxRetries)
	err := backoff.Retry(func() error {
		attempts++
		var err error
		conn, err = dial(ctx, endpoint)
		if err != nil && attempts > 1 {
			logger.Debug().Err(err).Int("attempt", attempts).Msg("IPC dial retry")
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", endpoint, attempts, err)
	}

	return &Client{
		role:     role,
		endpoint: endpoint,
		conn:     conn,
		encoder:  NewEncoder(conn),
		decoder:  NewDecoder(conn),
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Request sends msg and waits for the reply carrying its ID
func (c *Client) Request(ctx context.Context, msg *Message) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, errors.New("not connected")
	}
	msg.Source = c.role

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.encoder.Encode(msg); err != nil {
		return nil, c.ctxErr(ctx, fmt.Errorf("send %s: %w", msg.Type, err))
	}

	for {
		reply, err := c.decoder.Decode()
		if err != nil {
			return nil, c.ctxErr(ctx, fmt.Errorf("read reply to %s: %w", msg.Type, err))
		}
		if reply.ReplyTo != msg.ID {
			continue
		}
		if reply.Type == MsgError {
			var p ErrorPayload
			_ = reply.ParsePayload(&p)
			return reply, fmt.Errorf("%w: %s: %s", ErrRemote, p.Code, p.Message)
		}
		return reply, nil
	}
}

// Call sends a game_ready or launch request and returns the attempt result
func (c *Client) Call(ctx context.Context, msgType MessageType) (ResultPayload, error) {
	reply, err := c.Request(ctx, NewMessage(msgType, c.role))
	if err != nil {
		return ResultPayload{}, err
	}
	if reply.Type != MsgResult {
		return ResultPayload{}, fmt.Errorf("unexpected reply %s to %s", reply.Type, msgType)
	}
	var res ResultPayload
	if err := reply.ParsePayload(&res); err != nil {
		return ResultPayload{}, fmt.Errorf("parse result: %w", err)
	}
	return res, nil
}

// Ping checks that the host answers
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Request(ctx, NewMessage(MsgPing, c.role))
	return err
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}
