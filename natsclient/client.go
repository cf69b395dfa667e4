// Package natsclient manages the NATS connection and JetStream KV access
// for forkfolio's persistence layer.
package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/virajxp1/forkfolio/metric"
	"github.com/virajxp1/forkfolio/pkg/retry"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

const (
	// StatusDisconnected means no connection is established
	StatusDisconnected ConnectionStatus = iota
	// StatusConnecting means a connection attempt is in progress
	StatusConnecting
	// StatusConnected means the connection is established and usable
	StatusConnected
	// StatusClosed means the client was closed and will not reconnect
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned when an operation requires an established connection
var ErrNotConnected = stderrors.New("not connected to NATS")

// Client wraps a NATS connection with JetStream access and health reporting
type Client struct {
	url    string
	name   string
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *nats.Conn
	js     jetstream.JetStream
	status ConnectionStatus

	maxReconnects int
	reconnectWait time.Duration
	connectRetry  retry.Config

	metrics *metric.CoreMetrics
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithName sets the connection name reported to the server
func WithName(name string) ClientOption {
	return func(c *Client) {
		c.name = name
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCoreMetrics enables NATS connection metrics
func WithCoreMetrics(metrics *metric.CoreMetrics) ClientOption {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithConnectRetry overrides the initial connect retry policy
func WithConnectRetry(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.connectRetry = cfg
	}
}

// NewClient creates a new NATS client for the given URL
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, stderrors.New("NATS URL cannot be empty")
	}

	client := &Client{
		url:           url,
		name:          "forkfolio",
		logger:        slog.Default().With("component", "natsclient"),
		status:        StatusDisconnected,
		maxReconnects: -1, // reconnect forever
		reconnectWait: 2 * time.Second,
		connectRetry:  retry.Quick(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// URL returns the configured server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// IsHealthy returns true when the connection is established
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status == StatusConnected && c.conn != nil && c.conn.IsConnected()
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordNATSStatus(status == StatusConnected)
	}
}

// Connect establishes the NATS connection with retry and initializes
// JetStream. Safe to call once at startup.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(StatusConnecting)

	conn, err := retry.DoWithResult(ctx, c.connectRetry, func() (*nats.Conn, error) {
		return nats.Connect(c.url, c.connectionOptions()...)
	})
	if err != nil {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("initialize JetStream: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.js = js
	c.mu.Unlock()
	c.setStatus(StatusConnected)

	c.logger.Info("NATS connected", "url", conn.ConnectedUrlRedacted())
	return nil
}

// connectionOptions builds the nats.go connection options, wiring
// reconnect/disconnect events into logging and metrics.
func (c *Client) connectionOptions() []nats.Option {
	return []nats.Option{
		nats.Name(c.name),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("NATS disconnected", "error", err)
			c.setStatus(StatusDisconnected)
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			c.logger.Info("NATS reconnected", "url", conn.ConnectedUrlRedacted())
			c.setStatus(StatusConnected)
			if c.metrics != nil {
				c.metrics.RecordNATSReconnect()
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.logger.Info("NATS connection closed")
		}),
	}
}

// WaitForConnection blocks until the connection is established or the
// context is done
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for NATS connection: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// JetStream returns the JetStream context
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

// CreateKeyValueBucket creates or opens a KV bucket
func (c *Client) CreateKeyValueBucket(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create KV bucket %s: %w", cfg.Bucket, err)
	}
	return bucket, nil
}

// Close drains and closes the connection
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.js = nil
	c.mu.Unlock()

	c.setStatus(StatusClosed)

	if conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Drain()
	}()

	select {
	case err := <-done:
		if err != nil {
			conn.Close()
			return fmt.Errorf("drain NATS connection: %w", err)
		}
		return nil
	case <-ctx.Done():
		conn.Close()
		return fmt.Errorf("close NATS connection: %w", ctx.Err())
	}
}
