package devicesession

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/homehub/devicehub/pkg/lineproto"
	"github.com/homehub/devicehub/pkg/log"
	"github.com/homehub/devicehub/pkg/sender"
)

// Timeout is the device-session request deadline: longer than the base
// sender's 30s to tolerate slow serial hardware behind the Device Client.
const Timeout = 60 * time.Second

// EventCallback is invoked for every unsolicited line a device sends,
// after it has registered. Panics are caught and logged; they never
// propagate to the session.
type EventCallback func(registry *Registry, deviceID, line string)

// CommandCallback is invoked once a sendCommand call resolves (including
// a TIMEOUT outcome), with the command and its result. Panics are caught
// and logged.
type CommandCallback func(registry *Registry, deviceID, command, response string)

// Session is the server-side peer of one Device Client: a queued line
// sender whose id is bootstrapped by the device's own first line rather
// than a caller-issued request.
type Session struct {
	conn     net.Conn
	line     *lineproto.Session
	sender   *sender.Sender
	registry *Registry

	eventCallback   EventCallback
	commandCallback CommandCallback
	logger          log.Logger
	connID          string

	mu       sync.Mutex
	deviceID string

	voluntaryAbort atomic.Bool
	closeOnce      sync.Once
}

// Option configures a Session at construction.
type Option func(*Session, *lineproto.Session, *[]sender.Option)

// WithProcessFunc installs a device-specific response post-processing
// hook (see sender.ProcessFunc).
func WithProcessFunc(f sender.ProcessFunc) Option {
	return func(_ *Session, _ *lineproto.Session, opts *[]sender.Option) {
		*opts = append(*opts, sender.WithProcessFunc(f))
	}
}

// WithInboundDelimiter overrides the delimiter used to split lines the
// device sends.
func WithInboundDelimiter(delimiter string) Option {
	return func(_ *Session, ls *lineproto.Session, _ *[]sender.Option) {
		ls.SetInboundDelimiter(delimiter)
	}
}

// WithOutboundDelimiter overrides the delimiter appended to commands sent
// to the device.
func WithOutboundDelimiter(delimiter string) Option {
	return func(_ *Session, ls *lineproto.Session, _ *[]sender.Option) {
		ls.SetOutboundDelimiter(delimiter)
	}
}

// New wraps conn as a device session. Call Serve to begin reading.
func New(conn net.Conn, registry *Registry, eventCB EventCallback, cmdCB CommandCallback, logger log.Logger, opts ...Option) *Session {
	connID := uuid.New().String()
	ls := lineproto.New(conn)
	ls.SetLogger(logger, connID)

	s := &Session{
		conn:            conn,
		line:            ls,
		registry:        registry,
		eventCallback:   eventCB,
		commandCallback: cmdCB,
		logger:          logger,
		connID:          connID,
	}

	var senderOpts []sender.Option
	for _, opt := range opts {
		opt(s, ls, &senderOpts)
	}
	senderOpts = append(senderOpts,
		sender.WithDefaultTimeout(Timeout),
		sender.WithLogger(logger, connID),
		sender.WithUnsolicitedHook(s.handleUnsolicited),
	)
	s.sender = sender.New(ls, senderOpts...)

	return s
}

// DeviceID returns the id announced by the device, or "" before its first
// line has arrived.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// RemoteAddr returns the device client's network address.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// ConnID returns the session's log correlation id.
func (s *Session) ConnID() string { return s.connID }

// Serve reads lines until the connection closes, registering on the first
// line and dispatching every later line through the sender. It blocks;
// callers run it in its own goroutine per accepted connection.
func (s *Session) Serve(ctx context.Context) {
	s.logState("", "CONNECTED", "")
	defer s.connectionLost()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.line.ReadLine()
		if err != nil {
			return
		}
		s.handleLine(string(line))
	}
}

func (s *Session) handleLine(line string) {
	s.mu.Lock()
	if s.deviceID == "" {
		s.deviceID = line
		s.mu.Unlock()
		s.registry.Register(s)
		return
	}
	s.mu.Unlock()
	s.sender.OnLine(line)
}

// SendCommand sends command and, once it resolves (including to the
// TIMEOUT sentinel), invokes the command callback with the result.
func (s *Session) SendCommand(ctx context.Context, command string) (string, error) {
	resp, err := s.sender.SendWithTimeout(ctx, command, Timeout)
	if err != nil {
		return "", err
	}
	if s.commandCallback != nil {
		s.safeCall("command_callback", func() {
			s.commandCallback(s.registry, s.DeviceID(), command, resp)
		})
	}
	return resp, nil
}

// GetUnsolicited registers a waiter for the device's next unsolicited
// line.
func (s *Session) GetUnsolicited(ctx context.Context) (string, error) {
	return s.sender.GetUnsolicitedWithTimeout(ctx, Timeout)
}

// Disconnect forcibly closes the session as a voluntary abort: the
// registry calls this exclusively when it refuses a duplicate
// registration, so connectionLost must not unregister anything (there is
// nothing of this session's to unregister — the incumbent was never
// replaced).
func (s *Session) Disconnect() {
	s.closeOnce.Do(func() {
		s.voluntaryAbort.Store(true)
		s.conn.Close()
	})
}

// Close tears the connection down as an ordinary (non-voluntary) close,
// e.g. during server shutdown. connectionLost will still unregister the
// session.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func (s *Session) connectionLost() {
	s.logState("CONNECTED", "DISCONNECTED", "")
	if s.voluntaryAbort.Load() {
		return
	}
	if s.DeviceID() != "" {
		s.registry.Unregister(s)
	}
}

func (s *Session) handleUnsolicited(line string) {
	if s.eventCallback == nil {
		return
	}
	s.safeCall("event_callback", func() {
		s.eventCallback(s.registry, s.DeviceID(), line)
	})
}

// safeCall runs a user-supplied callback inside a catch-all: a panic is
// logged and discarded rather than propagated to the session's goroutine.
func (s *Session) safeCall(context string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Log(log.Event{
					Timestamp:    time.Now(),
					ConnectionID: s.connID,
					DeviceID:     s.DeviceID(),
					Category:     log.CategoryError,
					Error:        &log.ErrorEvent{Context: context, Message: fmt.Sprint(r)},
				})
			}
		}
	}()
	f()
}

func (s *Session) logState(oldState, newState, reason string) {
	if s.logger == nil {
		return
	}
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		DeviceID:     s.DeviceID(),
		Category:     log.CategoryState,
		State: &log.StateEvent{
			Entity:   "device-session",
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
