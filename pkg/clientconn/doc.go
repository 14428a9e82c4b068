// Package clientconn is the Device Client side of the wire protocol (C7):
// it dials the Device Server, announces a device id, and keeps the
// connection alive with exponential backoff, rebuilding the Line Session
// and re-announcing the device id on every successful reconnect. Its
// reconnect state machine and backoff math are self-contained, scoped to
// exactly what a single device connection needs.
package clientconn
