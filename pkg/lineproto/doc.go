// Package lineproto implements framed line I/O over a byte stream.
//
// A device session — whether the device-server's end of a Device Client
// socket or a device-client's end of a physical device's serial/TCP link —
// exchanges ASCII lines rather than length-prefixed binary frames. The
// inbound and outbound delimiters are independently configurable because
// some devices echo a delimiter different from the one they expect to
// receive (a common case: a device wants commands terminated with `\r` but
// answers terminate its own lines with `\r\n`).
//
// # Protocol stack
//
//	┌────────────────────────────────┐
//	│        ASCII command lines     │
//	├────────────────────────────────┤
//	│   Delimiter-scanned framing     │
//	├────────────────────────────────┤
//	│              TCP                │
//	└────────────────────────────────┘
//
// Reader emission is single-threaded and strictly in arrival order: bytes
// are appended to an internal buffer and every complete delimiter-terminated
// segment is emitted before the next read happens. Empty segments (two
// delimiters back to back) are dropped silently rather than delivered as
// zero-length lines.
package lineproto
