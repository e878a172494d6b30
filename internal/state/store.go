package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"quoter/internal/book"
	"quoter/internal/schema"
)

// Stream identifies one of the two inbound transport streams.
type Stream uint8

const (
	StreamOrderbook Stream = iota
	StreamPortfolio
)

// Store owns the latest orderbooks and portfolio snapshot. The dispatcher
// is the single writer; strategy callbacks and reporting read concurrently.
// Books are guarded by one RWMutex with copy-on-read views; the portfolio
// is swapped wholesale through an atomic.Value so readers never observe a
// torn snapshot.
type Store struct {
	mu    sync.Mutex
	books map[string]*book.Book

	portfolio atomic.Value // schema.PortfolioSnapshot

	bookUpdatedNano      atomic.Int64
	portfolioUpdatedNano atomic.Int64
	bookStale            atomic.Bool
	portfolioStale       atomic.Bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{books: make(map[string]*book.Book)}
	s.portfolio.Store(schema.PortfolioSnapshot{})
	return s
}

// ApplyBookDelta replaces the depth at one price level. An unknown
// instrument creates its book lazily; that is a normal part of market
// discovery, not an error. The write is visible to reads before the
// corresponding strategy trigger fires.
func (s *Store) ApplyBookDelta(d schema.BookDelta) {
	s.mu.Lock()
	b, ok := s.books[d.Instrument]
	if !ok {
		b = book.New()
		s.books[d.Instrument] = b
	}
	b.Apply(d.Side, d.Price, d.Depth)
	s.mu.Unlock()

	s.bookUpdatedNano.Store(time.Now().UTC().UnixNano())
	s.bookStale.Store(false)
}

// SeedBook installs an initial snapshot for an instrument, replacing any
// previous levels. Used once after session buildup, before streaming.
func (s *Store) SeedBook(instrument string, bids, asks []book.Level) {
	b := book.New()
	for _, lv := range bids {
		b.Apply(schema.SideBid, lv.Price, lv.Depth)
	}
	for _, lv := range asks {
		b.Apply(schema.SideAsk, lv.Price, lv.Depth)
	}

	s.mu.Lock()
	s.books[instrument] = b
	s.mu.Unlock()

	s.bookUpdatedNano.Store(time.Now().UTC().UnixNano())
}

// ReplacePortfolio atomically swaps in a full snapshot.
func (s *Store) ReplacePortfolio(snapshot schema.PortfolioSnapshot) {
	s.portfolio.Store(snapshot)
	s.portfolioUpdatedNano.Store(time.Now().UTC().UnixNano())
	s.portfolioStale.Store(false)
}

// Portfolio returns the current snapshot. The snapshot is immutable by
// convention: writers always build a fresh value, never mutate in place.
func (s *Store) Portfolio() schema.PortfolioSnapshot {
	return s.portfolio.Load().(schema.PortfolioSnapshot)
}

// RawBook returns a point-in-time copy of the instrument's book including
// the caller's own resting orders.
func (s *Store) RawBook(instrument string) (*book.Book, bool) {
	s.mu.Lock()
	b, ok := s.books[instrument]
	if ok {
		b = b.Clone()
	}
	s.mu.Unlock()
	return b, ok
}

// FilteredBook returns a point-in-time copy of the instrument's book with
// the account's own resting quantity removed from each level.
func (s *Store) FilteredBook(instrument string) (*book.Book, bool) {
	raw, ok := s.RawBook(instrument)
	if !ok {
		return nil, false
	}
	orders := s.Portfolio().OpenOrders[instrument]
	return raw.FilterOwn(orders), true
}

// Position returns the current position for an instrument, zero if none.
func (s *Store) Position(instrument string) schema.Position {
	if p, ok := s.Portfolio().Positions[instrument]; ok {
		return p
	}
	return schema.Position{Quantity: decimal.Zero, AveragePrice: decimal.Zero}
}

// Instruments lists the instruments with a known book.
func (s *Store) Instruments() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.books))
	for name := range s.books {
		out = append(out, name)
	}
	s.mu.Unlock()
	return out
}

// MarkStale flags a stream's last-known values as predating a disconnect.
// Values stay queryable; the flag clears on the first post-reconnect
// update for that stream.
func (s *Store) MarkStale(stream Stream) {
	switch stream {
	case StreamOrderbook:
		s.bookStale.Store(true)
	case StreamPortfolio:
		s.portfolioStale.Store(true)
	}
}

// Stale reports whether the stream's values predate a disconnect.
func (s *Store) Stale(stream Stream) bool {
	switch stream {
	case StreamOrderbook:
		return s.bookStale.Load()
	case StreamPortfolio:
		return s.portfolioStale.Load()
	default:
		return false
	}
}

// LastUpdate returns the time of the stream's most recent applied update,
// zero if the stream has never delivered.
func (s *Store) LastUpdate(stream Stream) time.Time {
	var nano int64
	switch stream {
	case StreamOrderbook:
		nano = s.bookUpdatedNano.Load()
	case StreamPortfolio:
		nano = s.portfolioUpdatedNano.Load()
	}
	if nano == 0 {
		return time.Time{}
	}
	return time.Unix(0, nano).UTC()
}
