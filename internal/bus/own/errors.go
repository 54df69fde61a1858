package own

import "errors"

// Domain errors for the OpenWebNet bus package.
var (
	// ErrNotConnected is returned when an operation requires a connection
	// but the client is not connected to the gateway.
	ErrNotConnected = errors.New("own: not connected to gateway")

	// ErrConnectionFailed is returned when the connection to the gateway fails.
	ErrConnectionFailed = errors.New("own: connection to gateway failed")

	// ErrHandshakeFailed is returned when the gateway session handshake
	// is rejected or times out.
	ErrHandshakeFailed = errors.New("own: session handshake failed")

	// ErrInvalidFrame is returned when a frame string is malformed.
	ErrInvalidFrame = errors.New("own: invalid frame")

	// ErrInvalidWhere is returned when a where address string
	// cannot be parsed.
	ErrInvalidWhere = errors.New("own: invalid where address")

	// ErrSendFailed is returned when writing a frame to the gateway fails.
	ErrSendFailed = errors.New("own: frame send failed")

	// ErrUnknownSubsystem is returned when no probe is defined for a
	// subsystem identifier.
	ErrUnknownSubsystem = errors.New("own: unknown subsystem")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("own: operation timed out")
)
