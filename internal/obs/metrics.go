package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the runtime.
// All methods are safe for concurrent use and tolerate a nil receiver so
// call sites never need to guard.
type Metrics struct {
	bookEvents      uint64
	portfolioEvents uint64
	eventDrops      uint64
	decodeErrors    uint64
	strategyFaults  uint64

	forwards        uint64
	cancelBypasses  uint64
	requestDrops    uint64
	rejections      uint64
	transportErrors uint64
	reconnects      uint64

	dispatchLatency LatencyStats
	forwardLatency  LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	BookEvents      uint64
	PortfolioEvents uint64
	EventDrops      uint64
	DecodeErrors    uint64
	StrategyFaults  uint64
	Forwards        uint64
	CancelBypasses  uint64
	RequestDrops    uint64
	Rejections      uint64
	TransportErrors uint64
	Reconnects      uint64
	DispatchLatency LatencySnapshot
	ForwardLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncBookEvent counts a dispatched orderbook event.
func (m *Metrics) IncBookEvent() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.bookEvents, 1)
}

// IncPortfolioEvent counts a dispatched portfolio event.
func (m *Metrics) IncPortfolioEvent() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.portfolioEvents, 1)
}

// IncEventDrop counts an inbound event lost to a full dispatch queue.
func (m *Metrics) IncEventDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.eventDrops, 1)
}

// IncDecodeError counts a malformed inbound message that was discarded.
func (m *Metrics) IncDecodeError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.decodeErrors, 1)
}

// IncStrategyFault counts a recovered strategy callback panic.
func (m *Metrics) IncStrategyFault() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.strategyFaults, 1)
}

// IncForward counts a request admitted and sent to the transport.
func (m *Metrics) IncForward() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.forwards, 1)
}

// IncCancelBypass counts a cancel forwarded outside the rate budget.
func (m *Metrics) IncCancelBypass() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cancelBypasses, 1)
}

// IncRequestDrop counts a request dropped before forwarding.
func (m *Metrics) IncRequestDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.requestDrops, 1)
}

// IncRejection counts an exchange-side order rejection.
func (m *Metrics) IncRejection() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rejections, 1)
}

// IncTransportError counts a forwarding attempt that failed in transit.
func (m *Metrics) IncTransportError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.transportErrors, 1)
}

// IncReconnect counts a feed reconnection.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
}

// ObserveDispatch measures store-update-plus-callback latency.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(d)
}

// ObserveForward measures transport round-trip latency for one request.
func (m *Metrics) ObserveForward(d time.Duration) {
	if m == nil {
		return
	}
	m.forwardLatency.Observe(d)
}

// Observe records a duration sample.
func (s *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	v := uint64(d)
	atomic.AddUint64(&s.count, 1)
	atomic.AddUint64(&s.sum, v)
	for {
		old := atomic.LoadUint64(&s.min)
		if old != 0 && old <= v {
			break
		}
		if atomic.CompareAndSwapUint64(&s.min, old, v) {
			break
		}
	}
	for {
		old := atomic.LoadUint64(&s.max)
		if old >= v {
			break
		}
		if atomic.CompareAndSwapUint64(&s.max, old, v) {
			break
		}
	}
}

// SnapshotOf returns a point-in-time view of the stats.
func (s *LatencyStats) SnapshotOf() LatencySnapshot {
	count := atomic.LoadUint64(&s.count)
	snap := LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&s.min)),
		Max:   time.Duration(atomic.LoadUint64(&s.max)),
	}
	if count > 0 {
		snap.Avg = time.Duration(atomic.LoadUint64(&s.sum) / count)
	}
	return snap
}

// Snapshot captures all counters at once.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		BookEvents:      atomic.LoadUint64(&m.bookEvents),
		PortfolioEvents: atomic.LoadUint64(&m.portfolioEvents),
		EventDrops:      atomic.LoadUint64(&m.eventDrops),
		DecodeErrors:    atomic.LoadUint64(&m.decodeErrors),
		StrategyFaults:  atomic.LoadUint64(&m.strategyFaults),
		Forwards:        atomic.LoadUint64(&m.forwards),
		CancelBypasses:  atomic.LoadUint64(&m.cancelBypasses),
		RequestDrops:    atomic.LoadUint64(&m.requestDrops),
		Rejections:      atomic.LoadUint64(&m.rejections),
		TransportErrors: atomic.LoadUint64(&m.transportErrors),
		Reconnects:      atomic.LoadUint64(&m.reconnects),
		DispatchLatency: m.dispatchLatency.SnapshotOf(),
		ForwardLatency:  m.forwardLatency.SnapshotOf(),
	}
}
