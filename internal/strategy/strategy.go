package strategy

import (
	"time"

	"quoter/internal/book"
	"quoter/internal/schema"
	"quoter/internal/state"
)

// View is the read-only surface of shared state handed to callbacks.
// *state.Store satisfies it; strategies never receive a mutable handle.
type View interface {
	RawBook(instrument string) (*book.Book, bool)
	FilteredBook(instrument string) (*book.Book, bool)
	Portfolio() schema.PortfolioSnapshot
	Position(instrument string) schema.Position
	Instruments() []string
	Stale(stream state.Stream) bool
	LastUpdate(stream state.Stream) time.Time
}

// Quoter accepts order action requests. Submit queues and returns
// immediately; it never blocks on network I/O.
type Quoter interface {
	Submit(req schema.OrderRequest) error
}

// Strategy is the pluggable callback pair invoked by the dispatcher. Both
// callbacks run on their stream's single processing path, so they must not
// block for unbounded time; a slow callback delays every later message on
// that stream.
type Strategy interface {
	OnOrderbookUpdate(view View)
	OnPortfolioUpdate(view View)
}
