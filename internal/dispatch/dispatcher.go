package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"quoter/internal/obs"
	"quoter/internal/schema"
	"quoter/internal/state"
	"quoter/internal/strategy"
)

// Dispatcher consumes decoded transport messages, commits them to the
// store, then invokes the registered strategy trigger. Each stream has its
// own queue and its own sequential consumer, so messages are processed
// strictly in arrival order and a portfolio burst never stalls book
// updates. A strategy fault is reported and the stream continues; state
// committed before the fault stays committed.
type Dispatcher struct {
	store   *state.Store
	metrics *obs.Metrics

	books      *Queue
	portfolios *Queue

	mu       sync.RWMutex
	strategy strategy.Strategy
}

// NewDispatcher creates a dispatcher over the given store. queueDepth
// bounds each stream's buffer; events beyond it are dropped and counted.
func NewDispatcher(store *state.Store, metrics *obs.Metrics, queueDepth int) *Dispatcher {
	return &Dispatcher{
		store:      store,
		metrics:    metrics,
		books:      NewQueue(queueDepth),
		portfolios: NewQueue(queueDepth),
	}
}

// SetStrategy registers the callback pair. Passing nil detaches it.
func (d *Dispatcher) SetStrategy(s strategy.Strategy) {
	d.mu.Lock()
	d.strategy = s
	d.mu.Unlock()
}

func (d *Dispatcher) currentStrategy() strategy.Strategy {
	d.mu.RLock()
	s := d.strategy
	d.mu.RUnlock()
	return s
}

// PublishBookDelta hands an orderbook message to the book stream.
func (d *Dispatcher) PublishBookDelta(delta schema.BookDelta) error {
	err := d.books.TryPublish(Event{
		Kind:       EventBookDelta,
		Delta:      delta,
		RecvTsNano: time.Now().UTC().UnixNano(),
	})
	if err != nil {
		d.metrics.IncEventDrop()
		logs.Warnf("book event dropped: %v", err)
	}
	return err
}

// PublishPortfolio hands a portfolio snapshot to the portfolio stream.
func (d *Dispatcher) PublishPortfolio(snapshot schema.PortfolioSnapshot) error {
	err := d.portfolios.TryPublish(Event{
		Kind:       EventPortfolio,
		Portfolio:  snapshot,
		RecvTsNano: time.Now().UTC().UnixNano(),
	})
	if err != nil {
		d.metrics.IncEventDrop()
		logs.Warnf("portfolio event dropped: %v", err)
	}
	return err
}

// Run consumes both streams until the context is done. It blocks; callers
// usually run it in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.books.Run(ctx, d.handle)
	}()
	go func() {
		defer wg.Done()
		d.portfolios.Run(ctx, d.handle)
	}()
	wg.Wait()
}

// Close stops both queues. Events already queued are still consumed.
func (d *Dispatcher) Close() {
	d.books.Close()
	d.portfolios.Close()
}

func (d *Dispatcher) handle(e Event) {
	start := time.Now()

	// Commit before triggering: the strategy must read its own stream's
	// write when the callback fires.
	switch e.Kind {
	case EventBookDelta:
		d.store.ApplyBookDelta(e.Delta)
		d.metrics.IncBookEvent()
		d.invoke(func(s strategy.Strategy) { s.OnOrderbookUpdate(d.store) })
	case EventPortfolio:
		d.store.ReplacePortfolio(e.Portfolio)
		d.metrics.IncPortfolioEvent()
		d.invoke(func(s strategy.Strategy) { s.OnPortfolioUpdate(d.store) })
	default:
		logs.Warnf("unknown event kind: %d", e.Kind)
	}

	d.metrics.ObserveDispatch(time.Since(start))
}

// invoke runs one strategy trigger, containing panics so a strategy fault
// never stops the stream.
func (d *Dispatcher) invoke(trigger func(strategy.Strategy)) {
	s := d.currentStrategy()
	if s == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.metrics.IncStrategyFault()
			logs.Errorf("strategy callback fault: %+v", r)
		}
	}()
	trigger(s)
}
