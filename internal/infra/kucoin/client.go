package kucoin

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
	"tradedesk/internal/infra"
)

// FillRecorder persists completed fills; the sqlite store implements it.
type FillRecorder interface {
	SaveFill(fill *domain.TradeCompleted) error
}

// Client implements domain.Exchange against the KuCoin spot API. REST
// calls translate wire payloads into the canonical snapshot/delta shapes;
// the core never sees exchange-specific formats.
type Client struct {
	name       string
	wsURL      string
	restURL    string
	accessKey  string
	secretKey  string
	passphrase string
	fee        decimal.Decimal

	pingInterval time.Duration
	readTimeout  time.Duration

	http     *http.Client
	balances *domain.BalanceBook
	recorder FillRecorder

	historyMu sync.Mutex
	history   []*domain.TradeCompleted
}

// NewClient builds a client from configuration. recorder may be nil, in
// which case fills are kept in memory only.
func NewClient(cfg *infra.Config, recorder FillRecorder) *Client {
	ping := time.Duration(cfg.Stream.PingIntervalSec) * time.Second
	if ping <= 0 {
		ping = defaultPingInterval
	}
	read := time.Duration(cfg.Stream.ReadTimeoutSec) * time.Second
	if read <= 0 {
		read = defaultReadTimeout
	}
	return &Client{
		name:         cfg.Exchange.Name,
		wsURL:        cfg.Exchange.WSURL,
		restURL:      cfg.Exchange.RestURL,
		accessKey:    cfg.Exchange.AccessKey,
		secretKey:    cfg.Exchange.SecretKey,
		passphrase:   cfg.Exchange.Passphrase,
		fee:          cfg.Exchange.Fee,
		pingInterval: ping,
		readTimeout:  read,
		http:         &http.Client{Timeout: 15 * time.Second},
		balances:     domain.NewBalanceBook(),
		recorder:     recorder,
	}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Fee() decimal.Decimal {
	return c.fee
}

func (c *Client) Balance(symbol string) *domain.Balance {
	return c.balances.Get(symbol)
}

// RecordTrade appends a fill to the exchange's trade history.
func (c *Client) RecordTrade(fill *domain.TradeCompleted) {
	c.historyMu.Lock()
	c.history = append(c.history, fill)
	c.historyMu.Unlock()
	infra.GlobalMetrics.RecordFill()
	if c.recorder != nil {
		if err := c.recorder.SaveFill(fill); err != nil {
			infra.GlobalMetrics.RecordError()
		}
	}
}

// History returns a copy of the recorded fills.
func (c *Client) History() []*domain.TradeCompleted {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	out := make([]*domain.TradeCompleted, len(c.history))
	copy(out, c.history)
	return out
}

// OrderBookSnapshot performs the blocking REST full-depth request.
func (c *Client) OrderBookSnapshot(ctx context.Context, key domain.PairKey) (*domain.Snapshot, error) {
	url := fmt.Sprintf("%s/api/v1/market/orderbook/level2_100?symbol=%s", c.restURL, key.Symbol())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("snapshot request", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("snapshot read", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewNetworkError("snapshot", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var env restEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	var snap level2Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	return parseSnapshot(&snap)
}

func parseSnapshot(snap *level2Snapshot) (*domain.Snapshot, error) {
	seq, err := strconv.ParseUint(snap.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: sequence %q", domain.ErrProtocol, snap.Sequence)
	}
	asks, err := parseLevels(snap.Asks)
	if err != nil {
		return nil, err
	}
	bids, err := parseLevels(snap.Bids)
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{SequenceNo: seq, Asks: asks, Bids: bids}, nil
}

func parseLevels(rows [][]string) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: level row %v", domain.ErrProtocol, row)
		}
		price, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: price %q", domain.ErrProtocol, row[0])
		}
		qty, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, fmt.Errorf("%w: qty %q", domain.ErrProtocol, row[1])
		}
		out[i] = domain.PriceLevel{Price: price, Qty: qty}
	}
	return out, nil
}

// parseDeltas flattens one level2 payload into canonical per-level deltas.
// Each change row carries its own server sequence number.
func parseDeltas(data []byte) ([]domain.Delta, error) {
	var upd level2Data
	if err := json.Unmarshal(data, &upd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	var out []domain.Delta
	for _, row := range upd.Changes.Asks {
		d, err := parseChangeRow(row, domain.SideAsk)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	for _, row := range upd.Changes.Bids {
		d, err := parseChangeRow(row, domain.SideBid)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func parseChangeRow(row []string, side domain.Side) (domain.Delta, error) {
	if len(row) < 3 {
		return domain.Delta{}, fmt.Errorf("%w: change row %v", domain.ErrProtocol, row)
	}
	price, err := decimal.NewFromString(row[0])
	if err != nil {
		return domain.Delta{}, fmt.Errorf("%w: price %q", domain.ErrProtocol, row[0])
	}
	qty, err := decimal.NewFromString(row[1])
	if err != nil {
		return domain.Delta{}, fmt.Errorf("%w: qty %q", domain.ErrProtocol, row[1])
	}
	seq, err := strconv.ParseUint(row[2], 10, 64)
	if err != nil {
		return domain.Delta{}, fmt.Errorf("%w: sequence %q", domain.ErrProtocol, row[2])
	}
	return domain.Delta{SeqBegin: seq, SeqEnd: seq, Side: side, Price: price, Qty: qty}, nil
}

func parseCandles(data []byte) ([]domain.Candle, error) {
	var cd candleData
	if err := json.Unmarshal(data, &cd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	if len(cd.Candles) < 6 {
		return nil, fmt.Errorf("%w: candle row %v", domain.ErrProtocol, cd.Candles)
	}
	ts, err := strconv.ParseInt(cd.Candles[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: candle time %q", domain.ErrProtocol, cd.Candles[0])
	}
	vals := make([]decimal.Decimal, 5)
	for i, raw := range cd.Candles[1:6] {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: candle value %q", domain.ErrProtocol, raw)
		}
		vals[i] = v
	}
	// wire order is open, close, high, low, volume
	return []domain.Candle{{
		OpenTime:   time.Unix(ts, 0),
		Open:       vals[0],
		Close:      vals[1],
		High:       vals[2],
		Low:        vals[3],
		VolumeBase: vals[4],
	}}, nil
}

func parseTicker(data []byte) ([]domain.TickerQuote, error) {
	var td tickerData
	if err := json.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	bid, err := decimal.NewFromString(td.BestBid)
	if err != nil {
		return nil, fmt.Errorf("%w: bestBid %q", domain.ErrProtocol, td.BestBid)
	}
	ask, err := decimal.NewFromString(td.BestAsk)
	if err != nil {
		return nil, fmt.Errorf("%w: bestAsk %q", domain.ErrProtocol, td.BestAsk)
	}
	last, err := decimal.NewFromString(td.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", domain.ErrProtocol, td.Price)
	}
	return []domain.TickerQuote{{
		Bid:  bid,
		Ask:  ask,
		Last: last,
		Time: time.UnixMilli(td.Time),
	}}, nil
}

func (c *Client) parseBalances(data []byte) ([]domain.BalanceUpdate, error) {
	var bd balanceData
	if err := json.Unmarshal(data, &bd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	free, err := decimal.NewFromString(bd.Available)
	if err != nil {
		return nil, fmt.Errorf("%w: available %q", domain.ErrProtocol, bd.Available)
	}
	hold, err := decimal.NewFromString(bd.Hold)
	if err != nil {
		return nil, fmt.Errorf("%w: hold %q", domain.ErrProtocol, bd.Hold)
	}
	// keep the local balance book in step with the account stream
	c.balances.Get(bd.Currency).Set(free.Add(hold), hold)
	return []domain.BalanceUpdate{{
		Symbol:   bd.Currency,
		Free:     free,
		Reserved: hold,
		Time:     time.Now(),
	}}, nil
}

func (c *Client) wsEndpoint(ctx context.Context, private bool) (string, error) {
	path := "/api/v1/bullet-public"
	if private {
		path = "/api/v1/bullet-private"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL+path, nil)
	if err != nil {
		return "", err
	}
	if private {
		c.sign(req, http.MethodPost, path, nil)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", domain.NewNetworkError("ws token", err)
	}
	defer resp.Body.Close()
	var bullet bulletResponse
	if err := json.NewDecoder(resp.Body).Decode(&bullet); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	if len(bullet.Data.InstanceServers) == 0 {
		// fall back to the configured endpoint
		return c.wsURL + "?token=" + bullet.Data.Token, nil
	}
	return bullet.Data.InstanceServers[0].Endpoint + "?token=" + bullet.Data.Token, nil
}

func (c *Client) DepthFeed(ctx context.Context, key domain.PairKey) (domain.Feed[domain.Delta], error) {
	endpoint, err := c.wsEndpoint(ctx, false)
	if err != nil {
		return nil, err
	}
	topic := "/market/level2:" + key.Symbol()
	return dialFeed(ctx, "depth "+key.String(), endpoint, topic, c.pingInterval, c.readTimeout, parseDeltas)
}

func (c *Client) CandleFeed(ctx context.Context, key domain.PairKey, interval string) (domain.Feed[domain.Candle], error) {
	endpoint, err := c.wsEndpoint(ctx, false)
	if err != nil {
		return nil, err
	}
	topic := "/market/candles:" + key.Symbol() + "_" + interval
	return dialFeed(ctx, "candles "+key.String(), endpoint, topic, c.pingInterval, c.readTimeout, parseCandles)
}

func (c *Client) TickerFeed(ctx context.Context, key domain.PairKey) (domain.Feed[domain.TickerQuote], error) {
	endpoint, err := c.wsEndpoint(ctx, false)
	if err != nil {
		return nil, err
	}
	topic := "/market/ticker:" + key.Symbol()
	return dialFeed(ctx, "ticker "+key.String(), endpoint, topic, c.pingInterval, c.readTimeout, parseTicker)
}

func (c *Client) UserDataFeed(ctx context.Context) (domain.Feed[domain.BalanceUpdate], error) {
	endpoint, err := c.wsEndpoint(ctx, true)
	if err != nil {
		return nil, err
	}
	return dialFeed(ctx, "user data "+c.name, endpoint, "/account/balance", c.pingInterval, c.readTimeout, c.parseBalances)
}

// CreateOrder submits a limit order. amountIn is denominated in the spent
// currency; the wire format wants the size in base units, so Q2B converts
// through the price.
func (c *Client) CreateOrder(ctx context.Context, fundID string, tradeType domain.TradeType, key domain.PairKey, amountIn, priceQ2B decimal.Decimal) (*domain.OrderResult, error) {
	side := "sell"
	size := amountIn
	if tradeType == domain.Q2B {
		side = "buy"
		if priceQ2B.IsZero() {
			return nil, fmt.Errorf("%w: zero price", domain.ErrInvalidTradeParameters)
		}
		size = amountIn.Div(priceQ2B)
	}

	clientOid := fundID
	if clientOid == "" {
		clientOid = uuid.NewString()
	}
	payload := createOrderRequest{
		ClientOid: clientOid,
		Side:      side,
		Symbol:    key.Symbol(),
		Type:      "limit",
		Price:     priceQ2B.String(),
		Size:      size.String(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	const path = "/api/v1/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, http.MethodPost, path, body)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("create order", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("create order read", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewFatalNetworkError("create order", fmt.Errorf("status %d: %s", resp.StatusCode, respBody))
	}

	var env restEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	var created createOrderResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	infra.GlobalMetrics.RecordOrderSubmitted()
	return &domain.OrderResult{OrderID: created.OrderID}, nil
}

func (c *Client) CancelOrder(ctx context.Context, key domain.PairKey, orderID string) error {
	path := "/api/v1/orders/" + orderID
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.restURL+path, nil)
	if err != nil {
		return err
	}
	c.sign(req, http.MethodDelete, path, nil)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewNetworkError("cancel order", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.NewFatalNetworkError("cancel order", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}
	return nil
}

// sign adds the API authentication headers: an HMAC-SHA256 over
// timestamp+method+path+body, base64 encoded.
func (c *Client) sign(req *http.Request, method, path string, body []byte) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(ts + method + path))
	mac.Write(body)
	req.Header.Set("KC-API-KEY", c.accessKey)
	req.Header.Set("KC-API-SIGN", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	req.Header.Set("KC-API-TIMESTAMP", ts)
	req.Header.Set("KC-API-PASSPHRASE", c.passphrase)
}
