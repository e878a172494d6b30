package book

import (
	"github.com/shopspring/decimal"

	"quoter/internal/schema"
)

// FilterOwn returns a copy of the book with the caller's own resting
// quantity removed from each level. The filtered depth never goes
// negative; a level whose depth reaches zero is removed entirely. Orders
// for other instruments, and orders at prices the book does not show, are
// ignored.
func (b *Book) FilterOwn(orders []schema.OpenOrder) *Book {
	filtered := b.Clone()
	for _, order := range orders {
		var side *levels
		switch order.Side {
		case schema.SideBid:
			side = &filtered.bids
		case schema.SideAsk:
			side = &filtered.asks
		default:
			continue
		}
		idx, found := side.search(order.Price)
		if !found {
			continue
		}
		remaining := side.rows[idx].Depth.Sub(order.Remaining)
		if remaining.Sign() <= 0 {
			remaining = decimal.Zero
		}
		side.set(order.Price, remaining)
	}
	return filtered
}
