package exception

import "errors"

// Feed errors
var (
	ErrFeedSubscribeFailed  = errors.New("feed: subscribe failed")
	ErrFeedMalformedMessage = errors.New("feed: malformed message")
	ErrFeedUnknownChannel   = errors.New("feed: unknown channel")
)
