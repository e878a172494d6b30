package transport

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"quoter/internal/prioritizer"
	"quoter/internal/schema"
	"quoter/pkg/exception"
)

// Exchange order entry routes.
const (
	routeBuildup     = "/buildup"
	routeLimitOrder  = "/limit_order"
	routeMarketOrder = "/market_order"
	routeRemoveOrder = "/remove_order"
	routeRemoveAll   = "/remove_all"
)

// OrderEntryConfig configures the HTTP order entry client.
type OrderEntryConfig struct {
	BaseURL  string
	Username string
	APIKey   string

	// Timeout bounds one request. Defaults to 15s.
	Timeout time.Duration
}

// OrderEntry is the HTTP side of the exchange session: one buildup call to
// authenticate and seed state, then order actions signed per request. It
// satisfies prioritizer.Sender.
type OrderEntry struct {
	cfg    OrderEntryConfig
	client *http.Client

	mu           sync.RWMutex
	sessionToken string
}

// BuildupResult carries the session token and the initial orderbook
// snapshot returned by the exchange.
type BuildupResult struct {
	SessionToken string
	Books        map[string]BookSeed
}

type buildupResponse struct {
	SessionToken  string `json:"sessionToken"`
	OrderBookData string `json:"orderBookData"`
}

type orderEntryResponse struct {
	Message struct {
		ErrorCode    int    `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
		OrderID      int64  `json:"orderId"`
	} `json:"message"`
}

// NewOrderEntry creates an order entry client. A nil http client falls back
// to a default with the configured timeout.
func NewOrderEntry(cfg OrderEntryConfig, client *http.Client) *OrderEntry {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &OrderEntry{cfg: cfg, client: client}
}

// Buildup authenticates the user and returns the session token plus the
// initial book snapshot. It must succeed before Send or the feed can run.
func (e *OrderEntry) Buildup(ctx context.Context) (BuildupResult, error) {
	body := map[string]string{
		"username": e.cfg.Username,
		"apiKey":   e.cfg.APIKey,
	}

	var resp buildupResponse
	if err := e.post(ctx, routeBuildup, body, &resp); err != nil {
		return BuildupResult{}, errors.Wrap(err, "buildup")
	}
	if resp.SessionToken == "" {
		return BuildupResult{}, errors.Wrap(exception.ErrOrderSessionExpired, "buildup returned no session token")
	}

	seeds, err := decodeSeedBooks([]byte(resp.OrderBookData))
	if err != nil {
		return BuildupResult{}, errors.Wrap(err, "buildup orderbook data")
	}

	e.mu.Lock()
	e.sessionToken = resp.SessionToken
	e.mu.Unlock()

	return BuildupResult{SessionToken: resp.SessionToken, Books: seeds}, nil
}

// SessionToken returns the token from the last successful buildup.
func (e *OrderEntry) SessionToken() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessionToken
}

// Send forwards one order action. Exchange-side rejections unwrap to
// exception.ErrOrderRejected; everything else is a transport failure.
func (e *OrderEntry) Send(ctx context.Context, req schema.OrderRequest) (prioritizer.Ack, error) {
	token := e.SessionToken()
	if token == "" {
		return prioritizer.Ack{}, exception.ErrOrderSessionExpired
	}

	route, body, err := e.requestBody(token, req)
	if err != nil {
		return prioritizer.Ack{}, err
	}

	var resp orderEntryResponse
	if err := e.post(ctx, route, body, &resp); err != nil {
		return prioritizer.Ack{}, err
	}

	if resp.Message.ErrorCode != 0 {
		return prioritizer.Ack{}, errors.Wrapf(exception.ErrOrderRejected,
			"code=%d message=%q", resp.Message.ErrorCode, resp.Message.ErrorMessage)
	}
	if req.Kind == schema.RequestPlaceLimit && resp.Message.OrderID == 0 {
		return prioritizer.Ack{}, exception.ErrOrderEmptyResponseID
	}
	return prioritizer.Ack{OrderID: resp.Message.OrderID}, nil
}

func (e *OrderEntry) requestBody(token string, req schema.OrderRequest) (string, map[string]string, error) {
	base := map[string]string{
		"username":     e.cfg.Username,
		"sessionToken": token,
	}

	switch req.Kind {
	case schema.RequestPlaceLimit:
		if req.Instrument == "" || req.Side == schema.SideUnknown ||
			req.Price.Sign() <= 0 || req.Quantity.Sign() <= 0 {
			return "", nil, exception.ErrOrderInvalidRequest
		}
		base["ticker"] = req.Instrument
		base["price"] = req.Price.String()
		base["volume"] = req.Quantity.String()
		base["isBid"] = strconv.FormatBool(req.Side == schema.SideBid)
		return routeLimitOrder, base, nil

	case schema.RequestPlaceMarket:
		if req.Instrument == "" || req.Side == schema.SideUnknown || req.Quantity.Sign() <= 0 {
			return "", nil, exception.ErrOrderInvalidRequest
		}
		base["ticker"] = req.Instrument
		base["volume"] = req.Quantity.String()
		base["isBid"] = strconv.FormatBool(req.Side == schema.SideBid)
		return routeMarketOrder, base, nil

	case schema.RequestCancel:
		if req.OrderID == 0 {
			return "", nil, exception.ErrOrderInvalidRequest
		}
		base["orderId"] = strconv.FormatInt(req.OrderID, 10)
		return routeRemoveOrder, base, nil

	case schema.RequestCancelAll:
		return routeRemoveAll, base, nil

	default:
		return "", nil, exception.ErrOrderUnsupportedKind
	}
}

func (e *OrderEntry) post(ctx context.Context, route string, body map[string]string, out any) error {
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request body")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(e.cfg.BaseURL, "/")+route, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(exception.ErrOrderRequestNotSent, err.Error())
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("authorization", e.sign(body))

	resp, err := e.client.Do(r)
	if err != nil {
		return errors.Wrap(exception.ErrOrderRequestNotSent, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return exception.ErrOrderSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("order entry status %d", resp.StatusCode)
	}

	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(exception.ErrOrderDecodeResponse, err.Error())
	}
	return nil
}

// sign hashes the sorted request params together with the API key. The
// exchange recomputes the digest to authenticate the request.
func (e *OrderEntry) sign(body map[string]string) string {
	pairs := make([]string, 0, len(body)+1)
	for k, v := range body {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	pairs = append(pairs, fmt.Sprintf("secret_key=%s", e.cfg.APIKey))
	sort.Strings(pairs)
	hash := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(hash[:])
}
