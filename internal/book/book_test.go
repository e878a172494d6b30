package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoter/internal/schema"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestApplyKeepsSidesSorted(t *testing.T) {
	b := New()
	b.Apply(schema.SideBid, dec("100"), dec("5"))
	b.Apply(schema.SideBid, dec("102"), dec("1"))
	b.Apply(schema.SideBid, dec("101"), dec("2"))
	b.Apply(schema.SideAsk, dec("105"), dec("3"))
	b.Apply(schema.SideAsk, dec("103"), dec("4"))
	b.Apply(schema.SideAsk, dec("104"), dec("6"))

	bids := b.Bids()
	require.Len(t, bids, 3)
	assert.True(t, bids[0].Price.Equal(dec("102")))
	assert.True(t, bids[1].Price.Equal(dec("101")))
	assert.True(t, bids[2].Price.Equal(dec("100")))

	asks := b.Asks()
	require.Len(t, asks, 3)
	assert.True(t, asks[0].Price.Equal(dec("103")))
	assert.True(t, asks[1].Price.Equal(dec("104")))
	assert.True(t, asks[2].Price.Equal(dec("105")))
}

func TestApplyZeroDepthRemovesLevel(t *testing.T) {
	b := New()
	b.Apply(schema.SideBid, dec("100"), dec("5"))
	b.Apply(schema.SideBid, dec("100"), dec("0"))

	_, found := b.Depth(schema.SideBid, dec("100"))
	assert.False(t, found, "zero depth must remove the level")
	assert.Empty(t, b.Bids())

	// Removing an absent level is a no-op.
	b.Apply(schema.SideBid, dec("100"), dec("0"))
	assert.Empty(t, b.Bids())
}

func TestApplyIsIdempotent(t *testing.T) {
	b := New()
	b.Apply(schema.SideAsk, dec("101.5"), dec("7"))
	b.Apply(schema.SideAsk, dec("101.5"), dec("7"))

	asks := b.Asks()
	require.Len(t, asks, 1)
	assert.True(t, asks[0].Depth.Equal(dec("7")))
}

func TestBestMidWMidSpread(t *testing.T) {
	b := New()
	_, ok := b.Mid()
	assert.False(t, ok, "empty book has no mid")

	b.Apply(schema.SideBid, dec("99"), dec("10"))
	b.Apply(schema.SideAsk, dec("101"), dec("30"))

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(dec("99")))

	mid, ok := b.Mid()
	require.True(t, ok)
	assert.True(t, mid.Equal(dec("100")))

	// wmid = (99*30 + 101*10) / 40 = 99.5
	wmid, ok := b.WMid()
	require.True(t, ok)
	assert.True(t, wmid.Equal(dec("99.5")), "got %s", wmid)

	spread, ok := b.Spread()
	require.True(t, ok)
	assert.True(t, spread.Equal(dec("2")))
}

func TestFilterOwnSubtractsRestingQuantity(t *testing.T) {
	b := New()
	b.Apply(schema.SideBid, dec("100"), dec("5"))
	b.Apply(schema.SideBid, dec("99"), dec("8"))
	b.Apply(schema.SideAsk, dec("101"), dec("4"))

	filtered := b.FilterOwn([]schema.OpenOrder{
		{ID: 1, Instrument: "X", Side: schema.SideBid, Price: dec("100"), Remaining: dec("2")},
		{ID: 2, Instrument: "X", Side: schema.SideAsk, Price: dec("101"), Remaining: dec("4")},
	})

	depth, found := filtered.Depth(schema.SideBid, dec("100"))
	require.True(t, found)
	assert.True(t, depth.Equal(dec("3")))

	// Fully owned level disappears from the filtered view.
	_, found = filtered.Depth(schema.SideAsk, dec("101"))
	assert.False(t, found)

	// The raw book is untouched.
	raw, found := b.Depth(schema.SideBid, dec("100"))
	require.True(t, found)
	assert.True(t, raw.Equal(dec("5")))
}

func TestFilterOwnNeverNegative(t *testing.T) {
	b := New()
	b.Apply(schema.SideBid, dec("100"), dec("3"))

	filtered := b.FilterOwn([]schema.OpenOrder{
		{ID: 1, Side: schema.SideBid, Price: dec("100"), Remaining: dec("10")},
	})

	_, found := filtered.Depth(schema.SideBid, dec("100"))
	assert.False(t, found, "over-subtracted level must floor at zero and be removed")
}

func TestFilterOwnIgnoresUnknownLevels(t *testing.T) {
	b := New()
	b.Apply(schema.SideBid, dec("100"), dec("3"))

	filtered := b.FilterOwn([]schema.OpenOrder{
		{ID: 1, Side: schema.SideBid, Price: dec("97"), Remaining: dec("1")},
	})

	depth, found := filtered.Depth(schema.SideBid, dec("100"))
	require.True(t, found)
	assert.True(t, depth.Equal(dec("3")))
}
