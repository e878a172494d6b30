package transport

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"quoter/internal/obs"
	"quoter/internal/schema"
	"quoter/pkg/exception"
)

// Sink receives decoded feed messages. *dispatch.Dispatcher satisfies it.
type Sink interface {
	PublishBookDelta(delta schema.BookDelta) error
	PublishPortfolio(snapshot schema.PortfolioSnapshot) error
}

// FeedConfig configures the market data connection.
type FeedConfig struct {
	URL          string
	Username     string
	SessionToken string

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	Backoff          Backoff

	// OnDown fires once when an established connection is lost, before
	// reconnecting starts. OnUp fires after every successful subscribe,
	// the initial connect included.
	OnDown func()
	OnUp   func()
}

type subscribeFrame struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
}

// Feed owns the websocket connection to the exchange stream. It reconnects
// with backoff on any failure and resubscribes to both channels; session
// identity travels in the URL query so a fresh dial re-authenticates.
type Feed struct {
	cfg     FeedConfig
	sink    Sink
	metrics *obs.Metrics

	mu     sync.RWMutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeed creates a feed over the given sink.
func NewFeed(cfg FeedConfig, sink Sink, metrics *obs.Metrics) *Feed {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	return &Feed{cfg: cfg, sink: sink, metrics: metrics}
}

// Start launches the connection loop in its own goroutine.
func (f *Feed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.runLoop(ctx)
	}()
}

// Stop tears the connection down and waits for the loop to exit.
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.closeConn()
	f.wg.Wait()
}

func (f *Feed) runLoop(ctx context.Context) {
	attempt := 0
	connectedBefore := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := f.connect(ctx); err != nil {
			attempt++
			wait := f.cfg.Backoff.Next(attempt)
			logs.Warnf("feed connect failed, retrying in %s: attempt=%d err=%+v", wait, attempt, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		attempt = 0
		if connectedBefore {
			f.metrics.IncReconnect()
		}
		connectedBefore = true
		if f.cfg.OnUp != nil {
			f.cfg.OnUp()
		}

		f.readLoop(ctx)

		// Connection lost. Flag last-known state before dialing again.
		if f.cfg.OnDown != nil {
			f.cfg.OnDown()
		}
	}
}

func (f *Feed) endpoint() (string, error) {
	u, err := url.Parse(f.cfg.URL)
	if err != nil {
		return "", errors.Wrap(err, "parse feed url")
	}
	q := u.Query()
	q.Set("Session-ID", f.cfg.SessionToken)
	q.Set("Username", f.cfg.Username)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *Feed) connect(ctx context.Context) error {
	endpoint, err := f.endpoint()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, http.Header{})
	if err != nil {
		return errors.Wrap(err, "dial feed")
	}

	for _, channel := range []string{channelOrderbook, channelPortfolio} {
		if err := conn.WriteJSON(subscribeFrame{Op: "subscribe", Channel: channel}); err != nil {
			conn.Close()
			return errors.Wrapf(exception.ErrFeedSubscribeFailed, "channel %s: %v", channel, err)
		}
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	if f.cfg.PingInterval > 0 {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.pingLoop(ctx, conn)
		}()
	}

	logs.Infof("feed connected: %s", f.cfg.URL)
	return nil
}

func (f *Feed) readLoopConn() *websocket.Conn {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.conn
}

func (f *Feed) readLoop(ctx context.Context) {
	defer f.closeConn()

	for {
		conn := f.readLoopConn()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logs.Warnf("feed read failed: %+v", err)
			}
			return
		}

		f.route(raw)
	}
}

// route decodes one frame and hands it to the sink. Decode failures are
// counted and skipped so one bad frame never costs a reconnect.
func (f *Feed) route(raw []byte) {
	recvNano := time.Now().UTC().UnixNano()
	msg, err := DecodeMessage(raw, recvNano)
	if err != nil {
		f.metrics.IncDecodeError()
		logs.Warnf("feed message discarded: %+v", err)
		return
	}

	for _, delta := range msg.Deltas {
		// Publish failures are already counted by the sink.
		_ = f.sink.PublishBookDelta(delta)
	}
	if msg.Portfolio != nil {
		_ = f.sink.PublishPortfolio(*msg.Portfolio)
	}
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f.readLoopConn() != conn {
				return
			}
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logs.Warnf("feed ping failed: %+v", err)
				f.closeConn()
				return
			}
		}
	}
}

func (f *Feed) closeConn() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}
