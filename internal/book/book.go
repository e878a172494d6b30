package book

import (
	"sort"

	"github.com/shopspring/decimal"

	"quoter/internal/schema"
)

// Level is the aggregate resting quantity at one price.
type Level struct {
	Price decimal.Decimal
	Depth decimal.Decimal
}

// levels holds one side of the book sorted best-first:
// bids descending, asks ascending. Insert/replace/remove use binary
// search, so iteration for best/mid/snapshot needs no sort.
type levels struct {
	rows []Level
	desc bool
}

// search returns the index where price belongs and whether it is present.
func (l *levels) search(price decimal.Decimal) (int, bool) {
	idx := sort.Search(len(l.rows), func(i int) bool {
		cmp := l.rows[i].Price.Cmp(price)
		if l.desc {
			return cmp <= 0
		}
		return cmp >= 0
	})
	if idx < len(l.rows) && l.rows[idx].Price.Equal(price) {
		return idx, true
	}
	return idx, false
}

// set replaces the depth at price. Zero depth removes the level. Replaying
// the same update is idempotent.
func (l *levels) set(price, depth decimal.Decimal) {
	idx, found := l.search(price)
	switch {
	case depth.IsZero():
		if found {
			l.rows = append(l.rows[:idx], l.rows[idx+1:]...)
		}
	case found:
		l.rows[idx].Depth = depth
	default:
		l.rows = append(l.rows, Level{})
		copy(l.rows[idx+1:], l.rows[idx:])
		l.rows[idx] = Level{Price: price, Depth: depth}
	}
}

func (l *levels) depth(price decimal.Decimal) (decimal.Decimal, bool) {
	if idx, found := l.search(price); found {
		return l.rows[idx].Depth, true
	}
	return decimal.Zero, false
}

func (l *levels) best() (Level, bool) {
	if len(l.rows) == 0 {
		return Level{}, false
	}
	return l.rows[0], true
}

func (l *levels) clone() levels {
	rows := make([]Level, len(l.rows))
	copy(rows, l.rows)
	return levels{rows: rows, desc: l.desc}
}

// Book is a single-instrument orderbook.
type Book struct {
	bids levels
	asks levels
}

// New creates an empty book.
func New() *Book {
	return &Book{
		bids: levels{desc: true},
		asks: levels{desc: false},
	}
}

// Apply replaces the depth at one price level on the given side.
func (b *Book) Apply(side schema.Side, price, depth decimal.Decimal) {
	switch side {
	case schema.SideBid:
		b.bids.set(price, depth)
	case schema.SideAsk:
		b.asks.set(price, depth)
	}
}

// Depth returns the aggregate quantity resting at price on the given side.
func (b *Book) Depth(side schema.Side, price decimal.Decimal) (decimal.Decimal, bool) {
	switch side {
	case schema.SideBid:
		return b.bids.depth(price)
	case schema.SideAsk:
		return b.asks.depth(price)
	default:
		return decimal.Zero, false
	}
}

// BestBid returns the highest bid level.
func (b *Book) BestBid() (Level, bool) { return b.bids.best() }

// BestAsk returns the lowest ask level.
func (b *Book) BestAsk() (Level, bool) { return b.asks.best() }

// Mid returns the average of best bid and best ask. The second return is
// false when either side is empty.
func (b *Book) Mid() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// WMid returns the depth-weighted mid price: the best bid weighted by ask
// depth and vice versa, so the thinner side pulls the price toward itself.
func (b *Book) WMid() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	total := bid.Depth.Add(ask.Depth)
	if total.IsZero() {
		return decimal.Zero, false
	}
	weighted := bid.Price.Mul(ask.Depth).Add(ask.Price.Mul(bid.Depth))
	return weighted.Div(total), true
}

// Spread returns best ask minus best bid.
func (b *Book) Spread() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// Bids returns a copy of the bid levels, best first.
func (b *Book) Bids() []Level {
	rows := make([]Level, len(b.bids.rows))
	copy(rows, b.bids.rows)
	return rows
}

// Asks returns a copy of the ask levels, best first.
func (b *Book) Asks() []Level {
	rows := make([]Level, len(b.asks.rows))
	copy(rows, b.asks.rows)
	return rows
}

// Clone returns an independent copy of the book.
func (b *Book) Clone() *Book {
	return &Book{
		bids: b.bids.clone(),
		asks: b.asks.clone(),
	}
}
