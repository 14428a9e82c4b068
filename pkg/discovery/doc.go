// Package discovery advertises and locates a device server on the local
// network over mDNS. It is purely additive (SPEC_FULL.md S5): a device
// client not run with -discover never touches this package, and a device
// server that fails to advertise still serves
// device and HTTP connections normally.
package discovery

import "time"

// ServiceType is the mDNS service type devicehub advertises and browses for.
const ServiceType = "_devicehub._tcp"

// Domain is the mDNS domain used for advertisement and browsing.
const Domain = "local."

// DefaultBrowseTimeout bounds how long BrowseOnce waits for a response
// before giving up and letting the caller fall back to backoff dialing.
const DefaultBrowseTimeout = 5 * time.Second
