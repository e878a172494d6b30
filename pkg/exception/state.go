package exception

import "errors"

// Shared state and dispatch errors
var (
	ErrEventQueueFull   = errors.New("state: event queue full")
	ErrEventQueueClosed = errors.New("state: event queue closed")
)
