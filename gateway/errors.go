package gateway

import "errors"

// Error taxonomy for the Inference Gateway Client (§4.2, §7).
var (
	// ErrUnavailable covers connection loss and server-not-ready.
	ErrUnavailable = errors.New("gateway: unavailable")
	// ErrInferenceFailed covers a server-side inference error, surfaced to
	// the caller and not retried here.
	ErrInferenceFailed = errors.New("gateway: inference failed")
	// ErrInvalidShape covers a deserialization length mismatch.
	ErrInvalidShape = errors.New("gateway: invalid shape")
)
