// Package sender turns a line-oriented transport into a request/response
// channel with exactly one request in flight at a time.
//
// Send enqueues a line and returns once a response is observed, the
// per-request deadline elapses (delivered in-band as the TIMEOUT sentinel,
// exactly as if it were a response line), or the caller's context is
// canceled. Lines that arrive with nothing in flight are unsolicited:
// every currently registered GetUnsolicited waiter is completed with that
// same line, and the waiter set is cleared before the next unsolicited
// line can populate it.
//
// A Sender knows nothing about device ids or registries — that belongs to
// the session layer built on top of it.
package sender
