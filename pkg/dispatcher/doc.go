// Package dispatcher adapts the Device Registry, device sessions, and the
// macro executor into the small set of operations an external control
// surface needs (C6): sendCommand, getUnsolicited, runMacro, listDevices,
// and a process-wide disabled kill switch. It has no knowledge of HTTP or
// any other transport; internal/httpapi is the thin layer that calls it.
package dispatcher
