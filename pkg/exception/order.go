package exception

import "errors"

// Order gating errors
var (
	ErrOrderQueueFull       = errors.New("order: pending queue full")
	ErrOrderQueueClosed     = errors.New("order: pending queue closed")
	ErrOrderDiscarded       = errors.New("order: discarded on disconnect")
	ErrOrderUnsupportedKind = errors.New("order: unsupported request kind")
	ErrOrderInvalidRequest  = errors.New("order: invalid request")
	ErrOrderEmptyResponseID = errors.New("order: empty response order id")
	ErrOrderDecodeResponse  = errors.New("order: decode response body")
	ErrOrderSessionExpired  = errors.New("order: session expired")
	ErrOrderRequestNotSent  = errors.New("order: request did not send")
	ErrOrderRejected        = errors.New("order: rejected by exchange")
)
