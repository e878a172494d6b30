package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoter/internal/schema"
	"quoter/pkg/exception"
)

func TestDecodeOrderbookMessage(t *testing.T) {
	raw := []byte(`{
		"channel": "orderbook",
		"data": [
			{"ticker": "ABC", "side": "BID", "price": "99.5", "volume": "12"},
			{"ticker": "ABC", "side": "ASK", "price": "100.5", "volume": "0"}
		]
	}`)

	msg, err := DecodeMessage(raw, 42)
	require.NoError(t, err)
	require.Len(t, msg.Deltas, 2)
	assert.Nil(t, msg.Portfolio)

	first := msg.Deltas[0]
	assert.Equal(t, "ABC", first.Instrument)
	assert.Equal(t, schema.SideBid, first.Side)
	assert.Equal(t, "99.5", first.Price.String())
	assert.Equal(t, "12", first.Depth.String())
	assert.Equal(t, int64(42), first.EventTsNano)

	second := msg.Deltas[1]
	assert.Equal(t, schema.SideAsk, second.Side)
	assert.True(t, second.Depth.IsZero(), "zero depth rows pass through as removals")
}

func TestDecodePortfolioMessage(t *testing.T) {
	raw := []byte(`{
		"channel": "portfolio",
		"data": {
			"balance": "1000.25",
			"pnl": "-3.5",
			"positions": {"ABC": {"quantity": "7", "averagePrice": "99"}},
			"orders": {"ABC": [{"orderId": 11, "side": "BID", "price": "98", "volume": "2"}]}
		}
	}`)

	msg, err := DecodeMessage(raw, 0)
	require.NoError(t, err)
	require.NotNil(t, msg.Portfolio)

	p := msg.Portfolio
	assert.Equal(t, "1000.25", p.Balance.String())
	assert.Equal(t, "-3.5", p.PnL.String())
	assert.Equal(t, "7", p.Positions["ABC"].Quantity.String())

	require.Len(t, p.OpenOrders["ABC"], 1)
	order := p.OpenOrders["ABC"][0]
	assert.Equal(t, int64(11), order.ID)
	assert.Equal(t, "ABC", order.Instrument)
	assert.Equal(t, schema.SideBid, order.Side)
	assert.Equal(t, "2", order.Remaining.String())
}

func TestDecodeMalformedMessage(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"book rows not a list", `{"channel":"orderbook","data":{"ticker":"ABC"}}`},
		{"bad side", `{"channel":"orderbook","data":[{"ticker":"ABC","side":"MIDDLE","price":"1","volume":"1"}]}`},
		{"portfolio not an object", `{"channel":"portfolio","data":[1,2]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tc.raw), 0)
			assert.ErrorIs(t, err, exception.ErrFeedMalformedMessage)
		})
	}
}

func TestDecodeUnknownChannel(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"channel":"trades","data":[]}`), 0)
	assert.ErrorIs(t, err, exception.ErrFeedUnknownChannel)
}

func TestDecodeSeedBooks(t *testing.T) {
	raw := []byte(`{
		"ABC": {
			"bidVolumes": {"99": "5", "98.5": "3"},
			"askVolumes": {"101": "4"}
		},
		"XYZ": {}
	}`)

	seeds, err := decodeSeedBooks(raw)
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	abc := seeds["ABC"]
	assert.Len(t, abc.Bids, 2)
	assert.Len(t, abc.Asks, 1)
	assert.Empty(t, seeds["XYZ"].Bids)

	_, err = decodeSeedBooks([]byte(`{"ABC":{"bidVolumes":{"not-a-price":"1"}}}`))
	assert.Error(t, err)
}
