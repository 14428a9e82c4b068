// Package macro runs a named, ordered sequence of {device, command} steps
// against live device sessions (C5), loading macro definitions from an
// external JSON document once at startup (S3).
//
// Steps execute strictly sequentially. The reserved device id DELAY
// suspends the executor for its command value, interpreted as a
// non-negative number of seconds, rather than addressing a device. The
// executor aborts at the first step whose device is unregistered or whose
// result is itself NO_DEVICE_FOUND or TIMEOUT — membership against that
// pair, not equality against a tuple, per the corrected semantics of the
// short-circuit check. It never retries and never rolls back steps that
// already ran.
package macro
