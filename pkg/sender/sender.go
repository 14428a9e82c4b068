package sender

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/homehub/devicehub/pkg/log"
	"github.com/homehub/devicehub/pkg/sentinel"
)

// DefaultTimeout is the base per-request deadline (spec: 30s).
const DefaultTimeout = 30 * time.Second

// ErrCancelled is returned when a caller's context is done before its
// request resolves.
var ErrCancelled = errors.New("sender: request cancelled")

// LineWriter is the subset of lineproto.LineWriter a Sender needs. Senders
// accept this interface rather than a concrete type so they can be tested
// against an in-memory double.
type LineWriter interface {
	WriteLine(data []byte) error
}

// ProcessFunc validates and transforms a raw response line. The default is
// the identity function. Returning an error fails the in-flight request
// with a structured error while still freeing the slot for the next queued
// request.
type ProcessFunc func(line string) (string, error)

func identityProcess(line string) (string, error) { return line, nil }

// Outcome is the resolved result of a Send or GetUnsolicited call.
type Outcome struct {
	// Line holds the (possibly post-processed) response, or the literal
	// sentinel.Timeout string on expiry.
	Line string
	// Err is non-nil only for a post-processing failure, a transport write
	// failure, or cancellation.
	Err error
}

// pendingRequest is one in-flight or queued request, or one registered
// unsolicited waiter.
type pendingRequest struct {
	line     string
	timer    *time.Timer
	resultCh chan Outcome
	once     sync.Once
}

func newPendingRequest(line string) *pendingRequest {
	return &pendingRequest{line: line, resultCh: make(chan Outcome, 1)}
}

func (r *pendingRequest) complete(out Outcome) {
	r.once.Do(func() {
		r.resultCh <- out
	})
}

// Sender is a Queued Line Sender: one in-flight request per instance, a
// FIFO queue of the rest, and a fan-out set of unsolicited waiters.
type Sender struct {
	mu                 sync.Mutex
	writer             LineWriter
	process            ProcessFunc
	defaultTimeout     time.Duration
	inFlight           *pendingRequest
	queue              []*pendingRequest
	unsolicitedWaiters []*pendingRequest

	logger log.Logger
	connID string

	onUnsolicited func(line string)
}

// Option configures a Sender at construction.
type Option func(*Sender)

// WithProcessFunc installs a device-specific post-processing hook.
func WithProcessFunc(f ProcessFunc) Option {
	return func(s *Sender) { s.process = f }
}

// WithDefaultTimeout overrides DefaultTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(s *Sender) { s.defaultTimeout = d }
}

// WithLogger attaches protocol-error logging under connID.
func WithLogger(logger log.Logger, connID string) Option {
	return func(s *Sender) {
		s.logger = logger
		s.connID = connID
	}
}

// WithUnsolicitedHook registers a callback invoked for every unsolicited
// line, in addition to (and before) resolving any currently registered
// GetUnsolicited waiters. Used by the device-session layer to fire its
// user-supplied event callback.
func WithUnsolicitedHook(f func(line string)) Option {
	return func(s *Sender) { s.onUnsolicited = f }
}

// New creates a Sender writing through w.
func New(w LineWriter, opts ...Option) *Sender {
	s := &Sender{
		writer:         w,
		process:        identityProcess,
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send transmits line (or queues it behind an in-flight request) and
// blocks until a response, a timeout, or ctx cancellation. Two sends S1,
// S2 issued in that order always have S1's outcome resolved before S2 is
// written to the transport.
func (s *Sender) Send(ctx context.Context, line string) (string, error) {
	return s.SendWithTimeout(ctx, line, s.defaultTimeout)
}

// SendWithTimeout is Send with a caller-supplied deadline, used by the
// device-session layer's longer 60s timeout.
func (s *Sender) SendWithTimeout(ctx context.Context, line string, timeout time.Duration) (string, error) {
	req := newPendingRequest(line)

	s.mu.Lock()
	becameInFlight := s.inFlight == nil
	if becameInFlight {
		s.inFlight = req
	} else {
		s.queue = append(s.queue, req)
	}
	s.mu.Unlock()

	req.timer = time.AfterFunc(timeout, func() { s.onTimeout(req) })

	if becameInFlight {
		if err := s.writer.WriteLine([]byte(line)); err != nil {
			s.failInFlight(req, err)
		}
	}

	select {
	case out := <-req.resultCh:
		return out.Line, out.Err
	case <-ctx.Done():
		s.cancel(req)
		return "", ErrCancelled
	}
}

// GetUnsolicited registers a waiter for the next unsolicited line.
func (s *Sender) GetUnsolicited(ctx context.Context) (string, error) {
	return s.GetUnsolicitedWithTimeout(ctx, s.defaultTimeout)
}

// GetUnsolicitedWithTimeout is GetUnsolicited with an explicit deadline.
func (s *Sender) GetUnsolicitedWithTimeout(ctx context.Context, timeout time.Duration) (string, error) {
	w := newPendingRequest("")
	w.timer = time.AfterFunc(timeout, func() { s.onUnsolicitedTimeout(w) })

	s.mu.Lock()
	s.unsolicitedWaiters = append(s.unsolicitedWaiters, w)
	s.mu.Unlock()

	select {
	case out := <-w.resultCh:
		return out.Line, out.Err
	case <-ctx.Done():
		s.removeUnsolicitedWaiter(w)
		return "", ErrCancelled
	}
}

// OnLine delivers one inbound line from the line session. Call this from
// the single goroutine reading the transport; OnLine itself serializes
// against concurrent Send/GetUnsolicited callers internally.
func (s *Sender) OnLine(rawLine string) {
	s.mu.Lock()
	req := s.inFlight
	if req == nil {
		waiters := s.unsolicitedWaiters
		s.unsolicitedWaiters = nil
		s.mu.Unlock()

		if s.onUnsolicited != nil {
			s.onUnsolicited(rawLine)
		}
		for _, w := range waiters {
			w.timer.Stop()
			w.complete(Outcome{Line: rawLine})
		}
		return
	}

	req.timer.Stop()
	next := s.popQueueLocked()
	s.inFlight = next
	s.mu.Unlock()

	s.startNext(next)
	s.settle(req, rawLine)
}

// onTimeout fires when a request's deadline elapses. If it is still
// in-flight, its expiry is synthesized as a response line and run through
// the same completion path (matching the reference implementation, which
// literally re-enters line-arrival handling with the TIMEOUT sentinel). If
// it was still queued, it is simply removed and completed with TIMEOUT.
func (s *Sender) onTimeout(req *pendingRequest) {
	s.mu.Lock()
	if s.inFlight == req {
		next := s.popQueueLocked()
		s.inFlight = next
		s.mu.Unlock()

		s.startNext(next)
		s.settle(req, string(sentinel.Timeout))
		return
	}

	for i, q := range s.queue {
		if q == req {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.mu.Unlock()
			req.complete(Outcome{Line: string(sentinel.Timeout)})
			return
		}
	}
	s.mu.Unlock()
}

// onUnsolicitedTimeout removes a single waiter and resolves it with
// TIMEOUT, without disturbing any other registered waiter.
func (s *Sender) onUnsolicitedTimeout(w *pendingRequest) {
	s.mu.Lock()
	for i, q := range s.unsolicitedWaiters {
		if q == w {
			s.unsolicitedWaiters = append(s.unsolicitedWaiters[:i], s.unsolicitedWaiters[i+1:]...)
			s.mu.Unlock()
			w.complete(Outcome{Line: string(sentinel.Timeout)})
			return
		}
	}
	s.mu.Unlock()
}

// cancel removes req from the queue if it never transmitted. A request
// already in flight is left untouched: the eventual reply is consumed and
// discarded by the normal completion path, and the next queued request is
// not released early.
func (s *Sender) cancel(req *pendingRequest) {
	s.mu.Lock()
	for i, q := range s.queue {
		if q == req {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.mu.Unlock()
			req.timer.Stop()
			req.complete(Outcome{Err: ErrCancelled})
			return
		}
	}
	s.mu.Unlock()
}

func (s *Sender) removeUnsolicitedWaiter(w *pendingRequest) {
	s.mu.Lock()
	for i, q := range s.unsolicitedWaiters {
		if q == w {
			s.unsolicitedWaiters = append(s.unsolicitedWaiters[:i], s.unsolicitedWaiters[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	w.timer.Stop()
}

// popQueueLocked removes and returns the head of the queue. Caller must
// hold s.mu.
func (s *Sender) popQueueLocked() *pendingRequest {
	if len(s.queue) == 0 {
		return nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next
}

// startNext transmits the newly-promoted in-flight request, if any. This
// happens before the just-completed request's outcome is delivered, so a
// callback that issues a new Send observes an empty slot only when the
// queue was genuinely empty.
func (s *Sender) startNext(next *pendingRequest) {
	if next == nil {
		return
	}
	if err := s.writer.WriteLine([]byte(next.line)); err != nil {
		s.failInFlight(next, err)
	}
}

func (s *Sender) settle(req *pendingRequest, rawLine string) {
	processed, err := s.process(rawLine)
	if err != nil {
		if s.logger != nil {
			s.logger.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: s.connID,
				Category:     log.CategoryError,
				Error:        &log.ErrorEvent{Context: "process_line", Message: err.Error()},
			})
		}
		req.complete(Outcome{Err: err})
		return
	}
	req.complete(Outcome{Line: processed})
}

// failInFlight completes req with a transport error, freeing it as if the
// write itself had been the terminal outcome. It does not attempt to
// advance the queue further; the caller of Send will see the error and
// the session layer is expected to tear the connection down.
func (s *Sender) failInFlight(req *pendingRequest, err error) {
	req.timer.Stop()
	req.complete(Outcome{Err: err})
}
