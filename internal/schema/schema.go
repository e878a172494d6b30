package schema

import "github.com/shopspring/decimal"

// Side describes which half of the book an update or order belongs to.
type Side uint8

const (
	SideUnknown Side = iota
	SideBid
	SideAsk
)

// String returns the wire spelling of the side.
func (s Side) String() string {
	switch s {
	case SideBid:
		return "BID"
	case SideAsk:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

// ParseSide maps a wire side string to a Side. Case is ignored.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "BID", "bid", "Bid":
		return SideBid, true
	case "ASK", "ask", "Ask":
		return SideAsk, true
	default:
		return SideUnknown, false
	}
}

// RequestKind is the category of an order action request.
type RequestKind uint8

const (
	RequestUnknown RequestKind = iota
	RequestPlaceLimit
	RequestPlaceMarket
	RequestCancel
	RequestCancelAll
)

// IsCancel reports whether the request reduces exposure rather than adding it.
func (k RequestKind) IsCancel() bool {
	return k == RequestCancel || k == RequestCancelAll
}

// String returns a short label for logging.
func (k RequestKind) String() string {
	switch k {
	case RequestPlaceLimit:
		return "place_limit"
	case RequestPlaceMarket:
		return "place_market"
	case RequestCancel:
		return "cancel"
	case RequestCancelAll:
		return "cancel_all"
	default:
		return "unknown"
	}
}

// Priority orders simultaneously pending requests. Higher forwards first;
// equal priorities forward in submission order.
type Priority int32

// BookDelta replaces the depth at a single price level. Zero depth removes
// the level.
type BookDelta struct {
	Instrument  string
	Side        Side
	Price       decimal.Decimal
	Depth       decimal.Decimal
	EventTsNano int64
}

// OrderRequest is a strategy-originated order action. It is created by the
// strategy, queued by the prioritizer, and terminal once forwarded, rejected,
// or dropped.
type OrderRequest struct {
	Kind       RequestKind
	Instrument string
	Side       Side
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Priority   Priority

	// OrderID identifies the resting order for RequestCancel.
	OrderID int64
	// ClientID correlates the request across logs, journal, and wire. The
	// prioritizer assigns one when empty.
	ClientID string
}

// OpenOrder is one of the account's resting orders as reported by the
// portfolio stream.
type OpenOrder struct {
	ID         int64
	Instrument string
	Side       Side
	Price      decimal.Decimal
	Remaining  decimal.Decimal
}

// Position is the account's holding in a single instrument.
type Position struct {
	Quantity     decimal.Decimal
	AveragePrice decimal.Decimal
}

// PortfolioSnapshot is the account state delivered by the portfolio stream.
// Snapshots are complete: the store replaces its portfolio wholesale, it
// never merges field by field.
type PortfolioSnapshot struct {
	Balance    decimal.Decimal
	PnL        decimal.Decimal
	Positions  map[string]Position
	OpenOrders map[string][]OpenOrder
}
