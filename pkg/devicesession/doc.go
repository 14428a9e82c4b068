// Package devicesession implements the server-side peer of one Device
// Client (C3) and the process-wide id → session map it registers into
// (C4).
//
// A Session is a sender.Sender whose first received line is not a
// response: it is the device announcing its id, which bootstraps
// registration into the Registry. Every later line follows the ordinary
// Queued Line Sender rules. Device-session timeouts are 60s, longer than
// the sender package's 30s default, to tolerate slow serial hardware
// behind the Device Client.
package devicesession
