// Package httpapi is the external Control Server (S2): a thin net/http
// layer over pkg/dispatcher implementing the route table of spec.md §6
// (listDevices, {device_id}/sendCommand, {device_id}/getUnsolicited,
// macro, toggleStatus). It holds no device-hub state of its own.
package httpapi
