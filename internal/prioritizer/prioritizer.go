package prioritizer

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"quoter/internal/journal"
	"quoter/internal/obs"
	"quoter/internal/schema"
	"quoter/pkg/exception"
)

// Ack is the order entry channel's positive response.
type Ack struct {
	OrderID int64
}

// Sender forwards one admitted request to the exchange. An exchange-side
// rejection must unwrap to exception.ErrOrderRejected so it can be told
// apart from a transport failure.
type Sender interface {
	Send(ctx context.Context, req schema.OrderRequest) (Ack, error)
}

// Result is the terminal outcome of one request.
type Result struct {
	Request  schema.OrderRequest
	OrderID  int64
	Rejected bool
	Err      error
}

// Config tunes the gate. Window/Limit define the rolling rate budget,
// QueueDepth the pending ceiling.
type Config struct {
	Window     time.Duration
	Limit      int
	QueueDepth int

	// DrainOnReconnect keeps queued requests across a disconnect and
	// forwards them after Resume. When false the queue is discarded on
	// Pause, each drop reported.
	DrainOnReconnect bool

	// SendTimeout bounds one forwarding attempt. Defaults to 10s.
	SendTimeout time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time

	// OnDrop observes requests that never reach the transport.
	OnDrop func(req schema.OrderRequest, reason error)
	// OnResult observes terminal outcomes of forwarded requests.
	OnResult func(res Result)
}

// Prioritizer gates strategy order actions behind a rolling rate budget
// with priority ordering. Submit is a non-blocking handoff; a dedicated
// forwarding loop performs the network sends so rate-limited traffic never
// stalls state updates. Cancellations bypass the budget entirely: they
// reduce exposure rather than add it.
type Prioritizer struct {
	cfg     Config
	sender  Sender
	metrics *obs.Metrics
	journal journal.Recorder

	mu      sync.Mutex
	queue   pendingHeap
	cancels []pending
	budget  *window
	seq     uint64
	paused  bool
	closed  bool

	wake chan struct{}
}

// New creates a prioritizer over the given sender. A nil recorder falls
// back to the no-op journal.
func New(cfg Config, sender Sender, metrics *obs.Metrics, recorder journal.Recorder) *Prioritizer {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if recorder == nil {
		recorder = journal.Nop{}
	}
	return &Prioritizer{
		cfg:     cfg,
		sender:  sender,
		metrics: metrics,
		journal: recorder,
		budget:  newWindow(cfg.Window, cfg.Limit),
		wake:    make(chan struct{}, 1),
	}
}

// Submit queues one request and returns immediately. Cancel requests go to
// the bypass lane. Place requests beyond the queue ceiling are dropped and
// reported, never silently lost.
func (p *Prioritizer) Submit(req schema.OrderRequest) error {
	if req.Kind == schema.RequestUnknown {
		return exception.ErrOrderUnsupportedKind
	}
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return exception.ErrOrderQueueClosed
	}
	p.seq++
	pn := pending{req: req, seq: p.seq}

	if req.Kind.IsCancel() {
		p.cancels = append(p.cancels, pn)
		p.mu.Unlock()
		p.signal()
		return nil
	}

	if p.paused && !p.cfg.DrainOnReconnect {
		p.mu.Unlock()
		p.reportDrop(req, exception.ErrOrderDiscarded, journal.OutcomeDiscarded)
		return exception.ErrOrderDiscarded
	}

	if p.cfg.QueueDepth > 0 && len(p.queue) >= p.cfg.QueueDepth {
		p.mu.Unlock()
		p.reportDrop(req, exception.ErrOrderQueueFull, journal.OutcomeDropped)
		return exception.ErrOrderQueueFull
	}

	heap.Push(&p.queue, pn)
	p.mu.Unlock()
	p.signal()
	return nil
}

// Pause stops forwarding, typically on transport disconnect. Without the
// drain policy the queue is discarded so stale requests never reach a dead
// or freshly reconnected session.
func (p *Prioritizer) Pause() {
	p.mu.Lock()
	p.paused = true
	var discarded []pending
	if !p.cfg.DrainOnReconnect {
		discarded = make([]pending, 0, len(p.queue)+len(p.cancels))
		discarded = append(discarded, p.queue...)
		discarded = append(discarded, p.cancels...)
		p.queue = p.queue[:0]
		p.cancels = p.cancels[:0]
	}
	p.mu.Unlock()

	for _, pn := range discarded {
		p.reportDrop(pn.req, exception.ErrOrderDiscarded, journal.OutcomeDiscarded)
	}
}

// Resume restarts forwarding after reconnection re-established the session.
func (p *Prioritizer) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.signal()
}

// Close rejects further submissions. The forwarding loop exits with its
// context.
func (p *Prioritizer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.signal()
}

// PendingLen returns the number of queued requests, bypass lane included.
func (p *Prioritizer) PendingLen() int {
	p.mu.Lock()
	n := len(p.queue) + len(p.cancels)
	p.mu.Unlock()
	return n
}

// Run is the forwarding loop. It blocks until the context is done.
func (p *Prioritizer) Run(ctx context.Context) {
	for {
		pn, wait, ok := p.next()
		if ok {
			p.forward(ctx, pn)
			continue
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-p.wake:
				timer.Stop()
			case <-timer.C:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}
	}
}

// next pops the request to forward now. It prefers the bypass lane, then
// the highest-priority pending request if budget allows. The returned wait
// is how long until budget replenishes when that is the only obstacle.
func (p *Prioritizer) next() (pending, time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return pending{}, 0, false
	}
	if len(p.cancels) > 0 {
		pn := p.cancels[0]
		p.cancels = p.cancels[1:]
		return pn, 0, true
	}
	if len(p.queue) == 0 {
		return pending{}, 0, false
	}

	now := p.cfg.Clock()
	if !p.budget.allow(now) {
		return pending{}, p.budget.nextFree(now), false
	}
	return heap.Pop(&p.queue).(pending), 0, true
}

func (p *Prioritizer) forward(ctx context.Context, pn pending) {
	start := time.Now()
	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	ack, err := p.sender.Send(sendCtx, pn.req)
	cancel()
	p.metrics.ObserveForward(time.Since(start))

	if pn.req.Kind.IsCancel() {
		p.metrics.IncCancelBypass()
	} else {
		p.metrics.IncForward()
	}

	res := Result{Request: pn.req, OrderID: ack.OrderID, Err: err}
	outcome := journal.OutcomeForwarded
	switch {
	case err == nil:
	case errors.Is(err, exception.ErrOrderRejected):
		res.Rejected = true
		outcome = journal.OutcomeRejected
		p.metrics.IncRejection()
		logs.Warnf("order rejected: client_id=%s kind=%s err=%+v", pn.req.ClientID, pn.req.Kind, err)
	default:
		outcome = journal.OutcomeFailed
		p.metrics.IncTransportError()
		logs.Errorf("order send failed: client_id=%s kind=%s err=%+v", pn.req.ClientID, pn.req.Kind, err)
	}

	p.record(ctx, pn.req, outcome, res.OrderID, err)
	if p.cfg.OnResult != nil {
		p.cfg.OnResult(res)
	}
}

func (p *Prioritizer) reportDrop(req schema.OrderRequest, reason error, outcome journal.Outcome) {
	p.metrics.IncRequestDrop()
	logs.Warnf("order request dropped: client_id=%s kind=%s reason=%v", req.ClientID, req.Kind, reason)
	p.record(context.Background(), req, outcome, 0, reason)
	if p.cfg.OnDrop != nil {
		p.cfg.OnDrop(req, reason)
	}
}

func (p *Prioritizer) record(ctx context.Context, req schema.OrderRequest, outcome journal.Outcome, orderID int64, err error) {
	entry := journal.Entry{
		ClientID:   req.ClientID,
		Kind:       req.Kind.String(),
		Instrument: req.Instrument,
		Side:       req.Side.String(),
		Price:      req.Price.String(),
		Quantity:   req.Quantity.String(),
		Priority:   int32(req.Priority),
		Outcome:    outcome,
		OrderID:    orderID,
		CreatedAt:  time.Now().UTC(),
	}
	if err != nil {
		entry.Detail = err.Error()
	}
	p.journal.Record(ctx, entry)
}

func (p *Prioritizer) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
