package discovery

import "errors"

// Sentinel errors for discovery orchestration.
var (
	// ErrDiscoveryRunning is returned by Start when a session for the
	// gateway is already active.
	ErrDiscoveryRunning = errors.New("discovery: session already running")

	// ErrUnknownGateway is returned when no transport is registered for
	// the requested gateway.
	ErrUnknownGateway = errors.New("discovery: unknown gateway")

	// ErrNotConnected is returned when the gateway transport is down.
	ErrNotConnected = errors.New("discovery: gateway not connected")
)
