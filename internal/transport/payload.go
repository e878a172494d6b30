package transport

import (
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"quoter/internal/book"
	"quoter/internal/schema"
	"quoter/pkg/exception"
)

// Wire channel names carried in the feed envelope.
const (
	channelOrderbook = "orderbook"
	channelPortfolio = "portfolio"
)

type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type bookUpdateRow struct {
	Ticker string          `json:"ticker"`
	Side   string          `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

type positionPayload struct {
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
}

type openOrderPayload struct {
	OrderID int64           `json:"orderId"`
	Side    string          `json:"side"`
	Price   decimal.Decimal `json:"price"`
	Volume  decimal.Decimal `json:"volume"`
}

type portfolioPayload struct {
	Balance   decimal.Decimal               `json:"balance"`
	PnL       decimal.Decimal               `json:"pnl"`
	Positions map[string]positionPayload    `json:"positions"`
	Orders    map[string][]openOrderPayload `json:"orders"`
}

// Message is one decoded feed frame. Exactly one of Deltas or Portfolio is
// set, matching the envelope's channel.
type Message struct {
	Deltas    []schema.BookDelta
	Portfolio *schema.PortfolioSnapshot
}

// DecodeMessage parses one raw feed frame. A frame that cannot be decoded
// unwraps to exception.ErrFeedMalformedMessage so callers can count and skip
// it without tearing the connection down.
func DecodeMessage(raw []byte, recvNano int64) (Message, error) {
	var env envelope
	if err := sonic.ConfigFastest.Unmarshal(raw, &env); err != nil {
		return Message{}, errors.Wrap(exception.ErrFeedMalformedMessage, err.Error())
	}

	switch env.Channel {
	case channelOrderbook:
		var rows []bookUpdateRow
		if err := sonic.ConfigFastest.Unmarshal(env.Data, &rows); err != nil {
			return Message{}, errors.Wrap(exception.ErrFeedMalformedMessage, err.Error())
		}
		deltas := make([]schema.BookDelta, 0, len(rows))
		for _, row := range rows {
			side, ok := schema.ParseSide(row.Side)
			if !ok {
				return Message{}, errors.Wrapf(exception.ErrFeedMalformedMessage, "bad side %q", row.Side)
			}
			deltas = append(deltas, schema.BookDelta{
				Instrument:  row.Ticker,
				Side:        side,
				Price:       row.Price,
				Depth:       row.Volume,
				EventTsNano: recvNano,
			})
		}
		return Message{Deltas: deltas}, nil

	case channelPortfolio:
		var p portfolioPayload
		if err := sonic.ConfigFastest.Unmarshal(env.Data, &p); err != nil {
			return Message{}, errors.Wrap(exception.ErrFeedMalformedMessage, err.Error())
		}
		snapshot, err := p.toSnapshot()
		if err != nil {
			return Message{}, err
		}
		return Message{Portfolio: &snapshot}, nil

	default:
		return Message{}, errors.Wrapf(exception.ErrFeedUnknownChannel, "channel %q", env.Channel)
	}
}

func (p portfolioPayload) toSnapshot() (schema.PortfolioSnapshot, error) {
	snapshot := schema.PortfolioSnapshot{
		Balance:    p.Balance,
		PnL:        p.PnL,
		Positions:  make(map[string]schema.Position, len(p.Positions)),
		OpenOrders: make(map[string][]schema.OpenOrder, len(p.Orders)),
	}
	for ticker, pos := range p.Positions {
		snapshot.Positions[ticker] = schema.Position{
			Quantity:     pos.Quantity,
			AveragePrice: pos.AveragePrice,
		}
	}
	for ticker, orders := range p.Orders {
		out := make([]schema.OpenOrder, 0, len(orders))
		for _, o := range orders {
			side, ok := schema.ParseSide(o.Side)
			if !ok {
				return schema.PortfolioSnapshot{}, errors.Wrapf(exception.ErrFeedMalformedMessage, "bad order side %q", o.Side)
			}
			out = append(out, schema.OpenOrder{
				ID:         o.OrderID,
				Instrument: ticker,
				Side:       side,
				Price:      o.Price,
				Remaining:  o.Volume,
			})
		}
		snapshot.OpenOrders[ticker] = out
	}
	return snapshot, nil
}

// seedBookData is the initial book snapshot embedded in the buildup
// response, keyed by ticker, with price-string keyed depth maps.
type seedBookData map[string]struct {
	BidVolumes map[string]decimal.Decimal `json:"bidVolumes"`
	AskVolumes map[string]decimal.Decimal `json:"askVolumes"`
}

// BookSeed is the initial levels for one instrument.
type BookSeed struct {
	Bids []book.Level
	Asks []book.Level
}

func decodeSeedBooks(raw []byte) (map[string]BookSeed, error) {
	var data seedBookData
	if err := sonic.ConfigFastest.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "decode seed orderbook")
	}

	seeds := make(map[string]BookSeed, len(data))
	for ticker, volumes := range data {
		seed := BookSeed{
			Bids: make([]book.Level, 0, len(volumes.BidVolumes)),
			Asks: make([]book.Level, 0, len(volumes.AskVolumes)),
		}
		for price, depth := range volumes.BidVolumes {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return nil, errors.Wrapf(err, "bad seed bid price %q", price)
			}
			seed.Bids = append(seed.Bids, book.Level{Price: p, Depth: depth})
		}
		for price, depth := range volumes.AskVolumes {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return nil, errors.Wrapf(err, "bad seed ask price %q", price)
			}
			seed.Asks = append(seed.Asks, book.Level{Price: p, Depth: depth})
		}
		seeds[ticker] = seed
	}
	return seeds, nil
}
