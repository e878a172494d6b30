package strategy

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"quoter/internal/schema"
	"quoter/internal/state"
)

// NaiveConfig tunes the reference market-making strategy.
type NaiveConfig struct {
	Instruments []string

	// Quantity is the size quoted on each side.
	Quantity decimal.Decimal
	// HalfSpread is the distance of each quote from fair value.
	HalfSpread decimal.Decimal
	// RequoteThreshold is the minimum fair value move before levels are
	// refreshed. Zero refreshes on every tick.
	RequoteThreshold decimal.Decimal
	// MinInterval floors the time between refreshes.
	MinInterval time.Duration

	Priority schema.Priority
}

// Naive is a reference strategy that keeps one bid and one ask around the
// weighted mid of the filtered book, pulling all quotes before moving them.
// It exists to exercise the full pipeline and as a template for real
// strategies.
type Naive struct {
	cfg    NaiveConfig
	quoter Quoter

	mu         sync.Mutex
	lastQuoted map[string]decimal.Decimal
	lastMoved  time.Time

	now func() time.Time
}

// NewNaive creates the strategy over the given quoter.
func NewNaive(cfg NaiveConfig, quoter Quoter) *Naive {
	return &Naive{
		cfg:        cfg,
		quoter:     quoter,
		lastQuoted: make(map[string]decimal.Decimal, len(cfg.Instruments)),
		now:        time.Now,
	}
}

// OnOrderbookUpdate re-quotes any instrument whose fair value drifted past
// the threshold since the last refresh.
func (n *Naive) OnOrderbookUpdate(view View) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if n.cfg.MinInterval > 0 && now.Sub(n.lastMoved) < n.cfg.MinInterval {
		return
	}

	stale := make(map[string]decimal.Decimal, len(n.cfg.Instruments))
	for _, instrument := range n.cfg.Instruments {
		fair, ok := n.fairValue(view, instrument)
		if !ok {
			continue
		}
		last, quoted := n.lastQuoted[instrument]
		if quoted && fair.Sub(last).Abs().Cmp(n.cfg.RequoteThreshold) < 0 {
			continue
		}
		stale[instrument] = fair
	}
	if len(stale) == 0 {
		return
	}

	// Pull everything before moving levels so the resting quotes never
	// straddle the new fair value.
	if err := n.quoter.Submit(schema.OrderRequest{
		Kind:     schema.RequestCancelAll,
		Priority: n.cfg.Priority,
	}); err != nil {
		logs.Warnf("cancel all failed: %v", err)
		return
	}

	for instrument, fair := range stale {
		bid := fair.Sub(n.cfg.HalfSpread)
		ask := fair.Add(n.cfg.HalfSpread)
		if bid.Sign() <= 0 {
			continue
		}
		if err := n.submitQuote(instrument, schema.SideBid, bid); err != nil {
			continue
		}
		if err := n.submitQuote(instrument, schema.SideAsk, ask); err != nil {
			continue
		}
		n.lastQuoted[instrument] = fair
	}
	n.lastMoved = now
}

// OnPortfolioUpdate only observes; the naive strategy carries no inventory
// management.
func (n *Naive) OnPortfolioUpdate(view View) {
	p := view.Portfolio()
	logs.Infof("portfolio update: balance=%s pnl=%s", p.Balance, p.PnL)
}

func (n *Naive) fairValue(view View, instrument string) (decimal.Decimal, bool) {
	b, ok := view.FilteredBook(instrument)
	if !ok {
		return decimal.Zero, false
	}
	if wmid, ok := b.WMid(); ok {
		return wmid, true
	}
	return b.Mid()
}

func (n *Naive) submitQuote(instrument string, side schema.Side, price decimal.Decimal) error {
	err := n.quoter.Submit(schema.OrderRequest{
		Kind:       schema.RequestPlaceLimit,
		Instrument: instrument,
		Side:       side,
		Price:      price,
		Quantity:   n.cfg.Quantity,
		Priority:   n.cfg.Priority,
	})
	if err != nil {
		logs.Warnf("quote failed: instrument=%s side=%s err=%v", instrument, side, err)
	}
	return err
}

var _ Strategy = (*Naive)(nil)
var _ View = (*state.Store)(nil)
