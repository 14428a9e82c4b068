package clientconn

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/homehub/devicehub/pkg/lineproto"
	"github.com/homehub/devicehub/pkg/log"
)

// ErrNotConnected is returned by PushUnsolicited when no session is
// currently established.
var ErrNotConnected = errors.New("clientconn: not connected")

// CommandHandler computes the device's response to a command line
// received from the server. It runs on the client's read loop; it must
// not block indefinitely.
type CommandHandler func(ctx context.Context, command string) string

// Dialer opens the transport connection to the server. Overridable for
// tests; defaults to net.Dialer.DialContext.
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// Client is a reconnecting Device Client: it maintains a single logical
// device session to the server, re-announcing deviceID on every connect.
type Client struct {
	addr     string
	deviceID string
	handler  CommandHandler
	dial     Dialer
	logger   log.Logger

	inboundDelimiter  string
	outboundDelimiter string

	manager *reconnectManager

	mu      sync.Mutex
	conn    net.Conn
	session *lineproto.Session
}

// Option configures a Client at construction.
type Option func(*Client)

// WithDialer overrides how the client opens its TCP connection.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithLogger attaches a protocol logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithInboundDelimiter overrides the delimiter used to split lines
// received from the server.
func WithInboundDelimiter(delimiter string) Option {
	return func(c *Client) { c.inboundDelimiter = delimiter }
}

// WithOutboundDelimiter overrides the delimiter appended to lines sent to
// the server.
func WithOutboundDelimiter(delimiter string) Option {
	return func(c *Client) { c.outboundDelimiter = delimiter }
}

// New builds a reconnecting client for deviceID against addr. handler
// computes this device's response to each command line the server sends.
func New(addr, deviceID string, handler CommandHandler, opts ...Option) *Client {
	c := &Client{
		addr:     addr,
		deviceID: deviceID,
		handler:  handler,
		dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.manager = newReconnectManager(c.connectFn)
	return c
}

// Start connects (blocking on the first attempt) and begins the
// background reconnect loop, which redials after a failed first attempt
// and after every connection loss thereafter.
func (c *Client) Start(ctx context.Context) error {
	c.manager.StartReconnectLoop()
	return c.manager.Connect(ctx)
}

// Close shuts the client down permanently; no further reconnection is
// attempted.
func (c *Client) Close() {
	c.manager.Close()
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.session = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// State returns the underlying reconnect manager's current state.
func (c *Client) State() State { return c.manager.State() }

// OnStateChange forwards to the underlying reconnect manager.
func (c *Client) OnStateChange(fn func(old, new State)) { c.manager.OnStateChange(fn) }

// PushUnsolicited sends an unsolicited event line to the server outside
// the command/response cycle. It fails if no session is currently
// established; the caller decides whether to drop the event or retry.
func (c *Client) PushUnsolicited(line string) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return ErrNotConnected
	}
	return session.WriteLine([]byte(line))
}

func (c *Client) connectFn(ctx context.Context) error {
	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}

	connID := uuid.New().String()
	session := lineproto.New(conn)
	if c.inboundDelimiter != "" {
		session.SetInboundDelimiter(c.inboundDelimiter)
	}
	if c.outboundDelimiter != "" {
		session.SetOutboundDelimiter(c.outboundDelimiter)
	}
	session.SetLogger(c.logger, connID)

	if err := session.WriteLine([]byte(c.deviceID)); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.session = session
	c.mu.Unlock()

	go c.serve(conn, session)
	return nil
}

// serve reads command lines from the server and answers each with the
// handler's response, until the connection fails. Failure notifies the
// reconnect manager, which schedules the next backoff-delayed attempt.
func (c *Client) serve(conn net.Conn, session *lineproto.Session) {
	for {
		line, err := session.ReadLine()
		if err != nil {
			c.connectionLost(conn)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		response := c.handler(ctx, string(line))
		cancel()

		if err := session.WriteLine([]byte(response)); err != nil {
			c.connectionLost(conn)
			return
		}
	}
}

func (c *Client) connectionLost(conn net.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.session = nil
	}
	c.mu.Unlock()
	c.manager.NotifyConnectionLost()
}
